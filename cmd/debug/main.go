package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/curvesync/pkg/document"
	"github.com/astromechza/curvesync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the file to read")
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()
	buff, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	if _, err := automerge.Load(buff); err != nil {
		return fmt.Errorf("failed to load doc: %w", err)
	}

	doc := document.New("debug", "debug")
	if err := doc.Load(buff, true); err != nil {
		return err
	}

	curves, err := doc.Curves()
	if err != nil {
		return err
	}
	for i, c := range curves {
		slog.Info("curve", "i", i, "id", c.ID, "color", c.Color, "points", len(c.Points))
	}

	users, err := doc.Users()
	if err != nil {
		return err
	}
	for id, u := range users {
		slog.Info("user", "id", id, "name", u.Name, "lastSeen", u.LastSeen)
	}

	h, err := doc.History()
	if err != nil {
		return err
	}
	slog.Info("history", "nodes", len(h.Nodes), "root", h.RootID, "current", h.CurrentNodeID)
	for id, n := range h.Nodes {
		kind := "root"
		if n.Command != nil {
			kind = n.Command.Kind
		}
		slog.Info("node", "id", id, "kind", kind, "desc", n.Description, "children", len(n.ChildIDs))
	}

	if snapshot, err := document.ReconstructCurves(h, h.CurrentNodeID); err != nil {
		slog.Error("failed to reconstruct", "err", err)
	} else if raw, err := json.Marshal(snapshot); err == nil {
		fmt.Println(string(raw))
	}

	if len(h.Nodes) > 0 {
		if svgPath, err := viz.RenderToTemp(h); err != nil {
			slog.Error("failed to render", "err", err)
		} else {
			slog.Info("rendered", "path", "file://"+svgPath)
		}
	}
	return nil
}
