// Package command defines the closed family of reversible mutations over the
// curve store. Commands hold value copies of their payloads so later mutation
// of the originals cannot alter undo behaviour.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/astromechza/curvesync/pkg/curve"
)

// Kind values for the serialized form.
const (
	KindAddPoint         = "AddPoint"
	KindRemovePoint      = "RemovePoint"
	KindMovePoint        = "MovePoint"
	KindAddCurve         = "AddCurve"
	KindRemoveCurve      = "RemoveCurve"
	KindLoadCurves       = "LoadCurves"
	KindRemoteOverwrite  = "RemoteOverwrite"
	KindChangeCurveColor = "ChangeCurveColor" // reserved, never produced
)

// Serialized is the wire form of a command: a kind tag plus a JSON payload.
type Serialized struct {
	Kind    string `json:"kind"`
	Payload []byte `json:"payload"`
}

// Command is a reversible operation over the curve store.
type Command interface {
	Execute(s *curve.Store)
	Undo(s *curve.Store)
	// AffectedCurveID is the natural target used to update the active
	// selection after undo/redo, or "" if there is none.
	AffectedCurveID() string
	Serialize() Serialized
}

// Describe builds the human readable description for a command, looking up
// the target curve's color name in the given store.
func Describe(c Command, s *curve.Store) string {
	name := func(id string) string {
		if cv := s.CurveByID(id); cv != nil {
			return curve.ColorName(cv.Color)
		}
		return "unknown"
	}
	switch c := c.(type) {
	case *AddPoint:
		return fmt.Sprintf("Add point to %s curve", name(c.CurveID))
	case *RemovePoint:
		return fmt.Sprintf("Remove point from %s curve", name(c.CurveID))
	case *MovePoint:
		return fmt.Sprintf("Move point on %s curve", name(c.CurveID))
	case *AddCurve:
		return fmt.Sprintf("Add %s curve", curve.ColorName(c.Curve.Color))
	case *RemoveCurve:
		return fmt.Sprintf("Remove %s curve", curve.ColorName(c.Curve.Color))
	case *LoadCurves:
		return fmt.Sprintf("Load %d curves", len(c.New))
	case *RemoteOverwrite:
		return "Apply remote update"
	}
	return "Unknown command"
}

func mustMarshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
