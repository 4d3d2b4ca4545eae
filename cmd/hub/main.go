package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/astromechza/curvesync/pkg/hub"
	"github.com/astromechza/curvesync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "localhost:8080", "the address to listen on")
	dbVar := flag.String("db", "curvesync.sqlite3", "the sqlite database for session snapshots")
	flag.Parse()

	slog.Info("Opening database", "path", *dbVar)
	snapshots, err := hub.OpenSnapshotStore(*dbVar)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	h := hub.New(snapshots)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Run(ctx)
	}()

	httpServer := &http.Server{Addr: *addrVar, Handler: h.Router()}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()

	wg.Wait()

	h.BackupAll()
	for _, id := range h.Sessions() {
		if history, ok := h.SessionHistory(id); ok {
			if svgPath, err := viz.RenderToTemp(history); err != nil {
				slog.Error("failed to render", "session", id, "err", err)
			} else {
				slog.Info("rendered", "session", id, "path", "file://"+svgPath)
			}
		}
	}

	return nil
}
