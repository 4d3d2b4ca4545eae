package geom

import "math"

// Point is a position in the 2D plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are real finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// DistanceTo returns the euclidean distance between two points.
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Evaluate computes the bezier curve point at parameter t in [0,1] over the
// given control points using de Casteljau's algorithm. A single control point
// evaluates to itself; an empty slice evaluates to the origin.
func Evaluate(points []Point, t float64) Point {
	switch len(points) {
	case 0:
		return Point{}
	case 1:
		return points[0]
	}
	work := make([]Point, len(points))
	copy(work, points)
	for n := len(work) - 1; n > 0; n-- {
		for i := 0; i < n; i++ {
			work[i] = Point{
				X: (1-t)*work[i].X + t*work[i+1].X,
				Y: (1-t)*work[i].Y + t*work[i+1].Y,
			}
		}
	}
	return work[0]
}

// Sample evaluates the curve at steps+1 uniform parameter values from 0 to 1
// inclusive.
func Sample(points []Point, steps int) []Point {
	if steps < 1 || len(points) == 0 {
		return nil
	}
	out := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		out = append(out, Evaluate(points, float64(i)/float64(steps)))
	}
	return out
}
