package curve

import (
	"github.com/astromechza/curvesync/pkg/geom"
)

// Store holds the editable set of curves and the active selection. It is
// single-owner: only the coordinator mutates it.
type Store struct {
	curves   []Curve
	activeID string
	palette  int
}

// New creates a store holding one empty curve with the first palette color.
func New() *Store {
	s := NewEmpty()
	s.AddCurve()
	return s
}

// NewEmpty creates a store with no curves at all. Used for history replay;
// the interactive entry point is New.
func NewEmpty() *Store {
	return &Store{curves: []Curve{}}
}

// NewCurve allocates a curve with a fresh id and the next palette color
// without inserting it into the store.
func (s *Store) NewCurve() Curve {
	c := Curve{ID: NewID(), Color: Palette[s.palette%len(Palette)], Points: []geom.Point{}}
	s.palette++
	return c
}

// AddCurve appends a fresh empty curve, makes it active, and returns its id.
func (s *Store) AddCurve() string {
	c := s.NewCurve()
	s.curves = append(s.curves, c)
	s.activeID = c.ID
	return c.ID
}

// RemoveCurve removes the named curve. If it was active the first remaining
// curve becomes active; if nothing remains a fresh empty curve is added so
// the store is never left empty.
func (s *Store) RemoveCurve(id string) {
	i := s.IndexOf(id)
	if i < 0 {
		return
	}
	s.curves = append(s.curves[:i], s.curves[i+1:]...)
	if len(s.curves) == 0 {
		s.AddCurve()
		return
	}
	if s.activeID == id {
		s.activeID = s.curves[0].ID
	}
}

// SetActive selects the named curve, ignoring unknown ids.
func (s *Store) SetActive(id string) {
	if s.IndexOf(id) >= 0 {
		s.activeID = id
	}
}

// ActiveID returns the id of the active curve, or "" if none is set.
func (s *Store) ActiveID() string {
	return s.activeID
}

// Active returns a pointer to the active curve, or nil.
func (s *Store) Active() *Curve {
	return s.CurveByID(s.activeID)
}

// ActivePoints returns a copy of the active curve's points.
func (s *Store) ActivePoints() []geom.Point {
	c := s.Active()
	if c == nil {
		return nil
	}
	points := make([]geom.Point, len(c.Points))
	copy(points, c.Points)
	return points
}

// SetActivePoints replaces the active curve's points with a copy of the
// given sequence.
func (s *Store) SetActivePoints(points []geom.Point) {
	c := s.Active()
	if c == nil {
		return
	}
	c.Points = make([]geom.Point, len(points))
	copy(c.Points, points)
}

// ClearAll drops every curve and starts over with one empty curve.
func (s *Store) ClearAll() {
	s.curves = []Curve{}
	s.AddCurve()
}

// CurveByID returns a pointer into the store for the named curve, or nil.
func (s *Store) CurveByID(id string) *Curve {
	if i := s.IndexOf(id); i >= 0 {
		return &s.curves[i]
	}
	return nil
}

// IndexOf returns the position of the named curve, or -1.
func (s *Store) IndexOf(id string) int {
	for i := range s.curves {
		if s.curves[i].ID == id {
			return i
		}
	}
	return -1
}

// Len returns the number of curves in the store.
func (s *Store) Len() int {
	return len(s.curves)
}

// Curves returns a deep copy of the curve sequence.
func (s *Store) Curves() []Curve {
	return CloneAll(s.curves)
}

// InsertCurveAt splices a deep copy of the curve in at the given index,
// clamped to the valid range.
func (s *Store) InsertCurveAt(i int, c Curve) {
	if i < 0 {
		i = 0
	}
	if i > len(s.curves) {
		i = len(s.curves)
	}
	s.curves = append(s.curves[:i], append([]Curve{c.Clone()}, s.curves[i:]...)...)
}

// RemoveCurveAt splices out the curve at the given index without any of the
// active-selection fallbacks of RemoveCurve.
func (s *Store) RemoveCurveAt(i int) {
	if i < 0 || i >= len(s.curves) {
		return
	}
	s.curves = append(s.curves[:i], s.curves[i+1:]...)
}

// ReplaceCurves atomically swaps the whole curve sequence for a deep copy of
// the given one. The active selection falls back to the first curve when the
// previous active id no longer exists.
func (s *Store) ReplaceCurves(curves []Curve) {
	s.curves = CloneAll(curves)
	if s.IndexOf(s.activeID) < 0 {
		if len(s.curves) > 0 {
			s.activeID = s.curves[0].ID
		} else {
			s.activeID = ""
		}
	}
}

// FindCurveAtPosition samples every curve at 50 parameter steps and returns
// the id of the first curve that comes within threshold of p.
func (s *Store) FindCurveAtPosition(p geom.Point, threshold float64) (string, bool) {
	for i := range s.curves {
		c := &s.curves[i]
		var samples []geom.Point
		if len(c.Points) < 2 {
			samples = c.Points
		} else {
			samples = geom.Sample(c.Points, 50)
		}
		for _, sp := range samples {
			if sp.DistanceTo(p) <= threshold {
				return c.ID, true
			}
		}
	}
	return "", false
}
