// Package render is a reference renderer: it rasterizes curve snapshots to
// PNG. The engine itself only ever sees the Renderer interface.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"

	"github.com/astromechza/curvesync/pkg/editor"
	"github.com/astromechza/curvesync/pkg/geom"
)

const curveSamples = 100

// PNGRenderer keeps the latest frame it receives and rasterizes it to a PNG
// file on save.
type PNGRenderer struct {
	Width  int
	Height int

	last editor.Frame
	has  bool
}

// NewPNGRenderer creates a renderer with the given canvas size.
func NewPNGRenderer(width, height int) *PNGRenderer {
	return &PNGRenderer{Width: width, Height: height}
}

// Render records the frame. Rasterization happens on save.
func (r *PNGRenderer) Render(f editor.Frame) {
	r.last = f
	r.has = true
}

// SavePNG rasterizes the latest frame to the given path.
func (r *PNGRenderer) SavePNG(path string) error {
	if !r.has {
		return fmt.Errorf("no frame rendered yet")
	}
	dc := gg.NewContext(r.Width, r.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, c := range r.last.Curves {
		active := c.ID == r.last.ActiveCurveID
		dc.SetHexColor(c.Color)

		if len(c.Points) >= 2 {
			samples := geom.Sample(c.Points, curveSamples)
			dc.MoveTo(samples[0].X, samples[0].Y)
			for _, p := range samples[1:] {
				dc.LineTo(p.X, p.Y)
			}
			if active {
				dc.SetLineWidth(3)
			} else {
				dc.SetLineWidth(2)
			}
			dc.Stroke()
		}

		for _, p := range c.Points {
			dc.DrawCircle(p.X, p.Y, 4)
			dc.Fill()
		}
	}

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save png: %w", err)
	}
	return nil
}

// SaveToTemp writes the latest frame to a fresh file in the temp dir and
// returns its path.
func (r *PNGRenderer) SaveToTemp() (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("curves-%d.png", time.Now().UnixNano()))
	if err := r.SavePNG(tf); err != nil {
		return "", err
	}
	return tf, nil
}
