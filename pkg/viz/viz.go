// Package viz renders the shared history tree to SVG for debugging.
package viz

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/curvesync/pkg/document"
)

// RenderHistoryToSvg draws the shared history tree: one node per history
// entry labelled with its description and originating user, edges from
// parent to child, and the current node filled.
func RenderHistoryToSvg(h document.SharedHistory, outputPath string) error {
	g := graphviz.New()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}

	ids := make([]string, 0, len(h.Nodes))
	for id := range h.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodeMap := make(map[string]*cgraph.Node, len(ids))
	for _, id := range ids {
		hn := h.Nodes[id]
		n, err := graph.CreateNode(id)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		label := hn.Description
		if hn.UserID != "" {
			label = fmt.Sprintf("%s (%s)", hn.Description, shorten(hn.UserID))
		}
		n.SetLabel(fmt.Sprintf("%s %s", shorten(id), label))
		if id == h.CurrentNodeID {
			n.SetStyle(cgraph.FilledNodeStyle)
			n.SetFillColor("#cccccc")
		}
		nodeMap[id] = n
	}

	edgeCounter := 0
	for _, id := range ids {
		hn := h.Nodes[id]
		if hn.ParentID == "" {
			continue
		}
		parent, ok := nodeMap[hn.ParentID]
		if !ok {
			continue
		}
		edgeCounter++
		if _, err := graph.CreateEdge(fmt.Sprintf("%d", edgeCounter), parent, nodeMap[id]); err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
	}

	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	if err := os.WriteFile(outputPath, buff.Bytes(), os.ModePerm); err != nil {
		return fmt.Errorf("failed to write")
	}
	return nil
}

// RenderToTemp writes the tree to a fresh SVG in the temp dir.
func RenderToTemp(h document.SharedHistory) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("history-%d.svg", time.Now().UnixNano()))
	if err := RenderHistoryToSvg(h, tf); err != nil {
		return "", err
	}
	return tf, nil
}

func shorten(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
