package viz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/document"
)

func TestRenderHistoryToSvg(t *testing.T) {
	h := document.SharedHistory{
		RootID:        "root",
		CurrentNodeID: "n2",
		Nodes: map[string]document.SharedNode{
			"root": {ID: "root", ChildIDs: []string{"n1"}, Description: "Start"},
			"n1": {
				ID: "n1", ParentID: "root", ChildIDs: []string{"n2"},
				Command:     &command.Serialized{Kind: command.KindAddPoint, Payload: []byte(`{}`)},
				UserID:      "user-a",
				Description: "Add point to blue curve",
			},
			"n2": {
				ID: "n2", ParentID: "n1",
				Command:     &command.Serialized{Kind: command.KindAddPoint, Payload: []byte(`{}`)},
				UserID:      "user-b",
				Description: "Add point to blue curve",
			},
		},
	}
	path := filepath.Join(t.TempDir(), "history.svg")
	require.NoError(t, RenderHistoryToSvg(h, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "svg"))
}
