package curve

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/curvesync/pkg/geom"
)

func TestJSONRoundTrip(t *testing.T) {
	s := New()
	s.SetActivePoints([]geom.Point{{X: 1.5, Y: 2.5}})
	s.AddCurve()
	raw, err := s.ToJSON()
	require.NoError(t, err)

	loaded := NewEmpty()
	require.NoError(t, loaded.FromJSON(raw))
	assert.Equal(t, s.Curves(), loaded.Curves())
	assert.Equal(t, s.ActiveID(), loaded.ActiveID())
}

func TestFromJSONLegacyShape(t *testing.T) {
	s := NewEmpty()
	require.NoError(t, s.FromJSON([]byte(`{"points":[{"x":1,"y":2},{"x":3,"y":4}]}`)))
	require.Equal(t, 1, s.Len())
	c := s.Curves()[0]
	assert.True(t, strings.HasPrefix(c.ID, "curve-"))
	assert.Equal(t, Palette[0], c.Color)
	assert.Equal(t, []geom.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, c.Points)
	assert.Equal(t, c.ID, s.ActiveID())
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	s := New()
	before := s.Curves()
	assert.Error(t, s.FromJSON([]byte(`not json`)))
	assert.Error(t, s.FromJSON([]byte(`{"something":"else"}`)))
	assert.Equal(t, before, s.Curves())
}

func TestFromJSONRejectsNonFiniteCoordinates(t *testing.T) {
	s := New()
	before := s.Curves()
	// NaN is not representable in JSON so a huge exponent stands in for a
	// malformed number; the decoder rejects it as out of range.
	err := s.FromJSON([]byte(`{"curves":[{"id":"a","color":"#4a9eff","points":[{"x":1e999,"y":0}]}]}`))
	assert.Error(t, err)
	assert.Equal(t, before, s.Curves())
}

func TestFromJSONRejectsDuplicateIDs(t *testing.T) {
	s := New()
	err := s.FromJSON([]byte(`{"curves":[{"id":"a","color":"#4a9eff","points":[]},{"id":"a","color":"#ff4a9e","points":[]}]}`))
	assert.Error(t, err)
}

func TestFromJSONRejectsUnknownActive(t *testing.T) {
	s := New()
	err := s.FromJSON([]byte(`{"curves":[{"id":"a","color":"#4a9eff","points":[]}],"activeCurveId":"b"}`))
	assert.Error(t, err)
}

func TestToJSONShape(t *testing.T) {
	s := New()
	raw, err := s.ToJSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "curves")
	assert.Contains(t, decoded, "activeCurveId")
}
