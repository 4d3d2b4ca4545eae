package curve

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/astromechza/curvesync/pkg/geom"
)

// Palette is the fixed cycle of curve colors, in assignment order.
var Palette = []string{"#4a9eff", "#ff4a9e", "#4aff9e", "#ff9e4a", "#9e4aff", "#4afff9"}

var colorNames = map[string]string{
	"#4a9eff": "blue",
	"#ff4a9e": "pink",
	"#4aff9e": "green",
	"#ff9e4a": "orange",
	"#9e4aff": "purple",
	"#4afff9": "cyan",
}

// ColorName maps a palette hex string to its human readable name.
func ColorName(hex string) string {
	if n, ok := colorNames[hex]; ok {
		return n
	}
	return "unknown"
}

// NextPaletteColor returns the palette color following the given one in the
// cycle. Unknown colors restart the cycle.
func NextPaletteColor(after string) string {
	for i, c := range Palette {
		if c == after {
			return Palette[(i+1)%len(Palette)]
		}
	}
	return Palette[0]
}

// Curve is an ordered sequence of control points with a stable identity.
// Fewer than two points makes the curve inert: it renders but cannot be
// evaluated.
type Curve struct {
	ID     string       `json:"id"`
	Color  string       `json:"color"`
	Points []geom.Point `json:"points"`
}

// Clone returns a deep copy of the curve.
func (c Curve) Clone() Curve {
	points := make([]geom.Point, len(c.Points))
	copy(points, c.Points)
	return Curve{ID: c.ID, Color: c.Color, Points: points}
}

// CloneAll deep copies a sequence of curves.
func CloneAll(curves []Curve) []Curve {
	out := make([]Curve, 0, len(curves))
	for _, c := range curves {
		out = append(out, c.Clone())
	}
	return out
}

// NewID returns a random opaque curve id with 64 bits of entropy.
func NewID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
