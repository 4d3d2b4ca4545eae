package command

import (
	"encoding/json"
	"fmt"
)

// Deserialize turns the wire form back into a command. ChangeCurveColor is
// reserved but unimplemented: it yields (nil, nil) and replay skips it.
func Deserialize(s Serialized) (Command, error) {
	unmarshal := func(v any) error {
		if err := json.Unmarshal(s.Payload, v); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", s.Kind, err)
		}
		return nil
	}
	switch s.Kind {
	case KindAddPoint:
		c := &AddPoint{}
		return c, unmarshal(c)
	case KindRemovePoint:
		c := &RemovePoint{}
		return c, unmarshal(c)
	case KindMovePoint:
		c := &MovePoint{}
		return c, unmarshal(c)
	case KindAddCurve:
		c := &AddCurve{}
		return c, unmarshal(c)
	case KindRemoveCurve:
		c := &RemoveCurve{}
		return c, unmarshal(c)
	case KindLoadCurves:
		c := &LoadCurves{}
		return c, unmarshal(c)
	case KindRemoteOverwrite:
		c := &RemoteOverwrite{}
		return c, unmarshal(c)
	case KindChangeCurveColor:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command kind %q", s.Kind)
}
