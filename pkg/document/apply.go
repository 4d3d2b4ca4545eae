package document

import (
	"fmt"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/geom"
)

func pointToAny(p geom.Point) map[string]any {
	return map[string]any{"x": p.X, "y": p.Y}
}

func curveToAny(c curve.Curve) map[string]any {
	points := make([]any, 0, len(c.Points))
	for _, p := range c.Points {
		points = append(points, pointToAny(p))
	}
	return map[string]any{"id": c.ID, "color": c.Color, "points": points}
}

func curvesList(doc *automerge.Doc) (*automerge.List, error) {
	v, err := doc.Path("curves").Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read curves: %w", err)
	}
	if v.Kind() != automerge.KindList {
		return nil, fmt.Errorf("curves container is missing, document not seeded")
	}
	return v.List(), nil
}

func findCurveIndex(list *automerge.List, id string) (int, error) {
	for i := 0; i < list.Len(); i++ {
		v, err := list.Get(i)
		if err != nil {
			return -1, fmt.Errorf("failed to read curve %d: %w", i, err)
		}
		if v.Kind() != automerge.KindMap {
			continue
		}
		idv, err := v.Map().Get("id")
		if err != nil {
			return -1, fmt.Errorf("failed to read curve %d id: %w", i, err)
		}
		if idv.Kind() == automerge.KindStr && idv.Str() == id {
			return i, nil
		}
	}
	return -1, nil
}

func pointsListOf(list *automerge.List, curveIndex int) (*automerge.List, error) {
	v, err := list.Get(curveIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to read curve %d: %w", curveIndex, err)
	}
	pv, err := v.Map().Get("points")
	if err != nil {
		return nil, fmt.Errorf("failed to read curve %d points: %w", curveIndex, err)
	}
	if pv.Kind() != automerge.KindList {
		return nil, fmt.Errorf("curve %d has no points list", curveIndex)
	}
	return pv.List(), nil
}

// spliceCurves replaces the contents of the replicated curves list in place.
// The list object itself is never replaced: that would fork its identity and
// break merging for every peer.
func spliceCurves(doc *automerge.Doc, curves []curve.Curve) error {
	list, err := curvesList(doc)
	if err != nil {
		return err
	}
	for list.Len() > 0 {
		if err := list.Delete(0); err != nil {
			return fmt.Errorf("failed to drop curve: %w", err)
		}
	}
	for _, c := range curves {
		if err := list.Append(curveToAny(c)); err != nil {
			return fmt.Errorf("failed to append curve %q: %w", c.ID, err)
		}
	}
	return nil
}

// applyCommandToCurves mirrors one command's effect onto the replicated
// curves subtree by in-place splicing. Missing targets are silent no-ops,
// matching the command semantics on the local store.
func applyCommandToCurves(doc *automerge.Doc, cmd command.Command) error {
	list, err := curvesList(doc)
	if err != nil {
		return err
	}
	switch cmd := cmd.(type) {
	case *command.AddPoint:
		i, err := findCurveIndex(list, cmd.CurveID)
		if err != nil || i < 0 {
			return err
		}
		points, err := pointsListOf(list, i)
		if err != nil {
			return err
		}
		return points.Append(pointToAny(cmd.Point))
	case *command.RemovePoint:
		i, err := findCurveIndex(list, cmd.CurveID)
		if err != nil || i < 0 {
			return err
		}
		points, err := pointsListOf(list, i)
		if err != nil {
			return err
		}
		if cmd.Index < 0 || cmd.Index >= points.Len() {
			return nil
		}
		return points.Delete(cmd.Index)
	case *command.MovePoint:
		i, err := findCurveIndex(list, cmd.CurveID)
		if err != nil || i < 0 {
			return err
		}
		points, err := pointsListOf(list, i)
		if err != nil {
			return err
		}
		if cmd.Index < 0 || cmd.Index >= points.Len() {
			return nil
		}
		if err := points.Delete(cmd.Index); err != nil {
			return err
		}
		return points.Insert(cmd.Index, pointToAny(cmd.New))
	case *command.AddCurve:
		return list.Append(curveToAny(curve.Curve{ID: cmd.Curve.ID, Color: cmd.Curve.Color}))
	case *command.RemoveCurve:
		i, err := findCurveIndex(list, cmd.Curve.ID)
		if err != nil || i < 0 {
			return err
		}
		if err := list.Delete(i); err != nil {
			return err
		}
		// the curve set never becomes empty through user action: mirror the
		// store's fallback of a fresh empty curve with the next palette color
		if list.Len() == 0 {
			replacement := curve.Curve{ID: curve.NewID(), Color: curve.NextPaletteColor(cmd.Curve.Color)}
			return list.Append(curveToAny(replacement))
		}
		return nil
	case *command.LoadCurves:
		return spliceCurves(doc, cmd.New)
	case *command.RemoteOverwrite:
		return spliceCurves(doc, cmd.New)
	}
	return nil
}
