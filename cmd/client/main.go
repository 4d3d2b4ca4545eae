package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/document"
	"github.com/astromechza/curvesync/pkg/editor"
	"github.com/astromechza/curvesync/pkg/geom"
	"github.com/astromechza/curvesync/pkg/history"
	"github.com/astromechza/curvesync/pkg/render"
	"github.com/astromechza/curvesync/pkg/session"
	"github.com/astromechza/curvesync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// discardInput is the input-source stub for a headless client.
type discardInput struct{}

func (discardInput) SetPoints([]geom.Point) {}

func mainInner() error {
	hubVar := flag.String("hub", "ws://localhost:8080", "the hub url")
	sessionVar := flag.String("session", "default", "the session id to join")
	nameVar := flag.String("name", "", "the display name for presence")
	flag.Parse()

	name := *nameVar
	if name == "" {
		name = fmt.Sprintf("client-%d", os.Getpid())
	}
	userID := uuid.NewString()

	store := curve.New()
	tree := history.New(store)
	doc := document.New(userID, name)
	client := session.NewClient(*hubVar, *sessionVar, userID)
	canvas := render.NewPNGRenderer(800, 600)

	ed := editor.New(editor.Config{
		Store:    store,
		Tree:     tree,
		Document: doc,
		Client:   client,
		Input:    discardInput{},
		Renderer: canvas,
	})
	ed.SetCollaborating(true)
	ed.OnPeersChange = func(users map[string]document.User) {
		slog.Info("peers", "count", len(users))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		client.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		editRandomlyContinuously(ctx, ed)
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()

	wg.Wait()

	tf := filepath.Join(os.TempDir(), userID+".doc")
	if err := os.WriteFile(tf, doc.Save(), 0o644); err != nil {
		return err
	}
	slog.Info("dumped", "dump", tf)

	if pngPath, err := canvas.SaveToTemp(); err != nil {
		slog.Error("failed to render png", "err", err)
	} else {
		slog.Info("rendered", "path", "file://"+pngPath)
	}
	if h, err := doc.History(); err == nil && len(h.Nodes) > 0 {
		if svgPath, err := viz.RenderToTemp(h); err != nil {
			slog.Error("failed to render history", "err", err)
		} else {
			slog.Info("rendered history", "path", "file://"+svgPath)
		}
	}
	return nil
}

func editRandomlyContinuously(ctx context.Context, ed *editor.Editor) {
	for {
		t := time.NewTimer(time.Second + time.Second*time.Duration(rand.Intn(5)))
		select {
		case <-t.C:
			p := geom.Point{X: rand.Float64() * 800, Y: rand.Float64() * 600}
			if err := ed.HandlePointAction(editor.PointAction{Type: editor.ActionAdd, Point: p}); err != nil {
				slog.Error("failed to add point", "err", err)
			} else {
				slog.Info("added point", "x", p.X, "y", p.Y, "canUndo", ed.CanUndo())
			}
		case <-ctx.Done():
			slog.Info("stopping scheduled edits")
			return
		}
	}
}
