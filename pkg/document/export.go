package document

import (
	"encoding/json"
	"fmt"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/curvesync/pkg/curve"
)

// exportValue walks an automerge value into plain Go values so no CRDT
// proxy ever escapes this package.
func exportValue(v *automerge.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind() {
	case automerge.KindVoid, automerge.KindNull:
		return nil, nil
	case automerge.KindMap:
		m := v.Map()
		keys, err := m.Keys()
		if err != nil {
			return nil, fmt.Errorf("failed to list map keys: %w", err)
		}
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			mv, err := m.Get(k)
			if err != nil {
				return nil, fmt.Errorf("failed to read map key %q: %w", k, err)
			}
			if out[k], err = exportValue(mv); err != nil {
				return nil, err
			}
		}
		return out, nil
	case automerge.KindList:
		l := v.List()
		out := make([]any, 0, l.Len())
		for i := 0; i < l.Len(); i++ {
			lv, err := l.Get(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read list index %d: %w", i, err)
			}
			ev, err := exportValue(lv)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	default:
		return v.Interface(), nil
	}
}

// exportJSON serializes one root subtree to canonical JSON.
func (d *Document) exportJSON(key string) ([]byte, error) {
	v, err := d.doc.Path(key).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	plain, err := exportValue(v)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %q: %w", key, err)
	}
	return raw, nil
}

// Curves returns a plain snapshot of the replicated curve sequence.
func (d *Document) Curves() ([]curve.Curve, error) {
	raw, err := d.exportJSON("curves")
	if err != nil {
		return nil, err
	}
	var out []curve.Curve
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode curves: %w", err)
	}
	if out == nil {
		out = []curve.Curve{}
	}
	return out, nil
}

// Users returns a plain snapshot of the presence records.
func (d *Document) Users() (map[string]User, error) {
	raw, err := d.exportJSON("users")
	if err != nil {
		return nil, err
	}
	var out map[string]User
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	if out == nil {
		out = map[string]User{}
	}
	return out, nil
}

// History returns a plain snapshot of the shared history tree.
func (d *Document) History() (SharedHistory, error) {
	raw, err := d.exportJSON("sharedHistory")
	if err != nil {
		return SharedHistory{}, err
	}
	var out SharedHistory
	if err := json.Unmarshal(raw, &out); err != nil {
		return SharedHistory{}, fmt.Errorf("failed to decode shared history: %w", err)
	}
	if out.Nodes == nil {
		out.Nodes = map[string]SharedNode{}
	}
	return out, nil
}
