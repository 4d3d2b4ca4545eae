package curve

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/astromechza/curvesync/pkg/geom"
)

type storeJSON struct {
	Curves        []Curve `json:"curves"`
	ActiveCurveID string  `json:"activeCurveId,omitempty"`
}

type legacyJSON struct {
	Points []geom.Point `json:"points"`
}

// ToJSON serializes the store to the persistent file format.
func (s *Store) ToJSON() ([]byte, error) {
	return json.Marshal(storeJSON{Curves: s.Curves(), ActiveCurveID: s.activeID})
}

// FromJSON loads the persistent file format, accepting both the current
// multi-curve shape and the legacy single-curve {"points": [...]} shape. On
// any validation failure the store is left untouched and the error names the
// reason.
func (s *Store) FromJSON(raw []byte) error {
	var modern storeJSON
	if err := json.Unmarshal(raw, &modern); err != nil {
		return fmt.Errorf("failed to parse curves file: %w", err)
	}
	if modern.Curves == nil {
		var legacy legacyJSON
		if err := json.Unmarshal(raw, &legacy); err != nil || legacy.Points == nil {
			return fmt.Errorf("unrecognised curves file: no curves or points field")
		}
		c := Curve{
			ID:     fmt.Sprintf("curve-%d", time.Now().UnixMilli()),
			Color:  Palette[0],
			Points: legacy.Points,
		}
		if err := validateCurves([]Curve{c}); err != nil {
			return err
		}
		s.curves = []Curve{c.Clone()}
		s.activeID = c.ID
		return nil
	}
	if err := validateCurves(modern.Curves); err != nil {
		return err
	}
	if modern.ActiveCurveID != "" {
		found := false
		for _, c := range modern.Curves {
			if c.ID == modern.ActiveCurveID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("active curve %q is not in the file", modern.ActiveCurveID)
		}
	}
	s.curves = CloneAll(modern.Curves)
	s.activeID = modern.ActiveCurveID
	if s.activeID == "" && len(s.curves) > 0 {
		s.activeID = s.curves[0].ID
	}
	if len(s.curves) == 0 {
		s.AddCurve()
	}
	return nil
}

func validateCurves(curves []Curve) error {
	seen := map[string]bool{}
	for i, c := range curves {
		if c.ID == "" {
			return fmt.Errorf("curve %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate curve id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Color == "" {
			return fmt.Errorf("curve %q has no color", c.ID)
		}
		for j, p := range c.Points {
			if !p.IsFinite() {
				return fmt.Errorf("curve %q point %d has non-finite coordinates", c.ID, j)
			}
		}
	}
	return nil
}
