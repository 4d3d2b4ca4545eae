package command

import (
	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/geom"
)

// AddPoint appends a point to the named curve; undo pops it again. A missing
// curve id makes both directions silent no-ops.
type AddPoint struct {
	CurveID string     `json:"curveId"`
	Point   geom.Point `json:"point"`
}

func NewAddPoint(curveID string, p geom.Point) *AddPoint {
	return &AddPoint{CurveID: curveID, Point: p}
}

func (c *AddPoint) Execute(s *curve.Store) {
	if cv := s.CurveByID(c.CurveID); cv != nil {
		cv.Points = append(cv.Points, c.Point)
	}
}

func (c *AddPoint) Undo(s *curve.Store) {
	if cv := s.CurveByID(c.CurveID); cv != nil && len(cv.Points) > 0 {
		cv.Points = cv.Points[:len(cv.Points)-1]
	}
}

func (c *AddPoint) AffectedCurveID() string { return c.CurveID }

func (c *AddPoint) Serialize() Serialized {
	return Serialized{Kind: KindAddPoint, Payload: mustMarshal(c)}
}

// RemovePoint removes the point at an index; the caller passes the removed
// value so undo can re-insert it.
type RemovePoint struct {
	CurveID string     `json:"curveId"`
	Index   int        `json:"index"`
	Point   geom.Point `json:"point"`
}

func NewRemovePoint(curveID string, index int, p geom.Point) *RemovePoint {
	return &RemovePoint{CurveID: curveID, Index: index, Point: p}
}

func (c *RemovePoint) Execute(s *curve.Store) {
	cv := s.CurveByID(c.CurveID)
	if cv == nil || c.Index < 0 || c.Index >= len(cv.Points) {
		return
	}
	cv.Points = append(cv.Points[:c.Index], cv.Points[c.Index+1:]...)
}

func (c *RemovePoint) Undo(s *curve.Store) {
	cv := s.CurveByID(c.CurveID)
	if cv == nil || c.Index < 0 || c.Index > len(cv.Points) {
		return
	}
	cv.Points = append(cv.Points[:c.Index], append([]geom.Point{c.Point}, cv.Points[c.Index:]...)...)
}

func (c *RemovePoint) AffectedCurveID() string { return c.CurveID }

func (c *RemovePoint) Serialize() Serialized {
	return Serialized{Kind: KindRemovePoint, Payload: mustMarshal(c)}
}

// MovePoint overwrites the point at an index; undo restores the old value.
// A missing curve or index is a no-op.
type MovePoint struct {
	CurveID string     `json:"curveId"`
	Index   int        `json:"index"`
	Old     geom.Point `json:"oldPoint"`
	New     geom.Point `json:"newPoint"`
}

func NewMovePoint(curveID string, index int, old, new geom.Point) *MovePoint {
	return &MovePoint{CurveID: curveID, Index: index, Old: old, New: new}
}

func (c *MovePoint) Execute(s *curve.Store) {
	if cv := s.CurveByID(c.CurveID); cv != nil && c.Index >= 0 && c.Index < len(cv.Points) {
		cv.Points[c.Index] = c.New
	}
}

func (c *MovePoint) Undo(s *curve.Store) {
	if cv := s.CurveByID(c.CurveID); cv != nil && c.Index >= 0 && c.Index < len(cv.Points) {
		cv.Points[c.Index] = c.Old
	}
}

func (c *MovePoint) AffectedCurveID() string { return c.CurveID }

func (c *MovePoint) Serialize() Serialized {
	return Serialized{Kind: KindMovePoint, Payload: mustMarshal(c)}
}

// AddCurve appends a curve carrying the argument's id and color but always
// with empty points, whatever the argument contained. Undo removes it by id.
type AddCurve struct {
	Curve curve.Curve `json:"curve"`
}

func NewAddCurve(c curve.Curve) *AddCurve {
	return &AddCurve{Curve: c.Clone()}
}

func (c *AddCurve) Execute(s *curve.Store) {
	s.InsertCurveAt(s.Len(), curve.Curve{ID: c.Curve.ID, Color: c.Curve.Color})
	s.SetActive(c.Curve.ID)
}

func (c *AddCurve) Undo(s *curve.Store) {
	s.RemoveCurve(c.Curve.ID)
}

func (c *AddCurve) AffectedCurveID() string { return c.Curve.ID }

func (c *AddCurve) Serialize() Serialized {
	return Serialized{Kind: KindAddCurve, Payload: mustMarshal(c)}
}

// RemoveCurve splices out a curve; undo re-inserts the deep-copied original
// at its old index. The active-selection fallback lives in the store, not
// here.
type RemoveCurve struct {
	Curve curve.Curve `json:"curve"`
	Index int         `json:"index"`
}

func NewRemoveCurve(c curve.Curve, index int) *RemoveCurve {
	return &RemoveCurve{Curve: c.Clone(), Index: index}
}

func (c *RemoveCurve) Execute(s *curve.Store) {
	s.RemoveCurve(c.Curve.ID)
}

func (c *RemoveCurve) Undo(s *curve.Store) {
	s.InsertCurveAt(c.Index, c.Curve)
	s.SetActive(c.Curve.ID)
}

func (c *RemoveCurve) AffectedCurveID() string { return c.Curve.ID }

func (c *RemoveCurve) Serialize() Serialized {
	return Serialized{Kind: KindRemoveCurve, Payload: mustMarshal(c)}
}

// LoadCurves atomically replaces the whole curve sequence; undo restores the
// prior sequence. Both sequences are deep copied at construction.
type LoadCurves struct {
	New []curve.Curve `json:"newCurves"`
	Old []curve.Curve `json:"oldCurves"`
}

func NewLoadCurves(newCurves, oldCurves []curve.Curve) *LoadCurves {
	return &LoadCurves{New: curve.CloneAll(newCurves), Old: curve.CloneAll(oldCurves)}
}

func (c *LoadCurves) Execute(s *curve.Store) {
	s.ReplaceCurves(c.New)
	if len(c.New) > 0 {
		s.SetActive(c.New[0].ID)
	}
}

func (c *LoadCurves) Undo(s *curve.Store) {
	s.ReplaceCurves(c.Old)
	if len(c.Old) > 0 {
		s.SetActive(c.Old[0].ID)
	}
}

func (c *LoadCurves) AffectedCurveID() string {
	if len(c.New) > 0 {
		return c.New[0].ID
	}
	return ""
}

func (c *LoadCurves) Serialize() Serialized {
	return Serialized{Kind: KindLoadCurves, Payload: mustMarshal(c)}
}

// RemoteOverwrite replaces the whole curve sequence with remote state. It is
// never stored in the local history tree and has no undo.
type RemoteOverwrite struct {
	New []curve.Curve `json:"newCurves"`
}

func NewRemoteOverwrite(newCurves []curve.Curve) *RemoteOverwrite {
	return &RemoteOverwrite{New: curve.CloneAll(newCurves)}
}

func (c *RemoteOverwrite) Execute(s *curve.Store) {
	s.ReplaceCurves(c.New)
}

func (c *RemoteOverwrite) Undo(s *curve.Store) {
	panic("RemoteOverwrite cannot be undone")
}

func (c *RemoteOverwrite) AffectedCurveID() string {
	if len(c.New) > 0 {
		return c.New[0].ID
	}
	return ""
}

func (c *RemoteOverwrite) Serialize() Serialized {
	return Serialized{Kind: KindRemoteOverwrite, Payload: mustMarshal(c)}
}
