// Package hub implements the per-session server: one authoritative replica
// per session id, plus fan-out of change and presence messages to every
// other connected client.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astromechza/curvesync/pkg/document"
	"github.com/astromechza/curvesync/pkg/session"
)

const (
	// emptySessionGrace is how long a session with zero clients survives
	// before deletion.
	emptySessionGrace = 60 * time.Second
	// inactiveScanInterval and inactiveSessionAge drive the background
	// sweep for long-dead sessions.
	inactiveScanInterval = 10 * time.Minute
	inactiveSessionAge   = time.Hour
	backupInterval       = 5 * time.Second
)

type client struct {
	id   string
	send chan []byte
}

type liveSession struct {
	mu         sync.Mutex
	id         string
	doc        *document.Document
	clients    map[*client]bool
	lastActive time.Time
}

// Hub owns every live session. It never originates commands; it is a relay
// plus a durable replica.
type Hub struct {
	mu        sync.Mutex
	sessions  map[string]*liveSession
	snapshots *SnapshotStore
	upgrader  websocket.Upgrader
}

// New creates a hub. The snapshot store may be nil for a purely in-memory
// hub.
func New(snapshots *SnapshotStore) *Hub {
	return &Hub{
		sessions:  map[string]*liveSession{},
		snapshots: snapshots,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP surface: the websocket endpoint, the latest-blob
// endpoint, and prometheus metrics, wrapped in a logging middleware.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Path("/sessions/{session}/ws").HandlerFunc(h.serveWS)
	r.Methods(http.MethodGet).Path("/sessions/{session}/latest").HandlerFunc(h.getLatest)
	r.Path("/metrics").Handler(promhttp.Handler())
	return r
}

// Run drives the periodic snapshot backup and the inactive-session sweep
// until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	backup := time.NewTicker(backupInterval)
	defer backup.Stop()
	sweep := time.NewTicker(inactiveScanInterval)
	defer sweep.Stop()
	for {
		select {
		case <-backup.C:
			h.BackupAll()
		case <-sweep.C:
			h.sweepInactive()
		case <-ctx.Done():
			return
		}
	}
}

// BackupAll persists every changed session document.
func (h *Hub) BackupAll() {
	if h.snapshots == nil {
		return
	}
	for _, s := range h.snapshotSessions() {
		s.mu.Lock()
		blob := s.doc.Save()
		s.mu.Unlock()
		if changed, err := h.snapshots.Put(s.id, blob); err != nil {
			slog.Error("failed to backup session", "session", s.id, "err", err)
		} else if changed {
			slog.Info("backed up", "session", s.id)
		}
	}
}

func (h *Hub) snapshotSessions() []*liveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*liveSession, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Sessions returns the ids of the live sessions.
func (h *Hub) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		out = append(out, id)
	}
	return out
}

// SessionHistory returns the shared history snapshot of a live session.
func (h *Hub) SessionHistory(id string) (document.SharedHistory, bool) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		return document.SharedHistory{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hist, err := s.doc.History()
	if err != nil {
		return document.SharedHistory{}, false
	}
	return hist, true
}

func (h *Hub) sweepInactive() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.mu.Lock()
		dead := len(s.clients) == 0 && time.Since(s.lastActive) > inactiveSessionAge
		s.mu.Unlock()
		if dead {
			delete(h.sessions, id)
			openSessionsGauge.Dec()
			slog.Info("removed inactive session", "session", id)
		}
	}
}

// getOrCreateSession returns the live session, loading the persisted
// snapshot or seeding a fresh document as needed. The second return reports
// whether the document was created just now, i.e. the joiner is first.
func (h *Hub) getOrCreateSession(id string) (*liveSession, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s, false, nil
	}
	s := &liveSession{
		id:         id,
		doc:        document.New(uuid.NewString(), "hub"),
		clients:    map[*client]bool{},
		lastActive: time.Now(),
	}
	fresh := true
	if h.snapshots != nil {
		if blob, ok, err := h.snapshots.Get(id); err != nil {
			return nil, false, err
		} else if ok {
			if err := s.doc.Load(blob, true); err != nil {
				return nil, false, err
			}
			fresh = false
		}
	}
	if fresh {
		if err := s.doc.Seed(); err != nil {
			return nil, false, err
		}
	}
	h.sessions[id] = s
	sessionsCreatedTotal.Inc()
	openSessionsGauge.Inc()
	slog.Info("created session", "session", id, "fresh", fresh)
	return s, fresh, nil
}

func (h *Hub) getLatest(writer http.ResponseWriter, request *http.Request) {
	vars := mux.Vars(request)
	h.mu.Lock()
	s, ok := h.sessions[vars["session"]]
	h.mu.Unlock()
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	s.mu.Lock()
	blob := s.doc.Save()
	s.mu.Unlock()
	writer.Header().Add("Content-Type", "application/octet-stream")
	if _, err := writer.Write(blob); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

func (h *Hub) serveWS(writer http.ResponseWriter, request *http.Request) {
	vars := mux.Vars(request)
	sessionID := vars["session"]
	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	cl := &client{send: make(chan []byte, 256)}
	connectedClientsGauge.Inc()
	defer connectedClientsGauge.Dec()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for message := range cl.send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	var joined *liveSession
	defer func() {
		if joined != nil {
			h.leave(joined, cl)
		}
		close(cl.send)
		<-writeDone
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg session.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Error("failed to parse message", "session", sessionID, "err", err)
			messagesDroppedTotal.Inc()
			continue
		}
		switch msg.Type {
		case session.TypeSyncRequest:
			s, first, err := h.getOrCreateSession(sessionID)
			if err != nil {
				slog.Error("failed to create session", "session", sessionID, "err", err)
				return
			}
			cl.id = msg.SenderID
			s.mu.Lock()
			s.clients[cl] = true
			s.lastActive = time.Now()
			state := s.doc.Save()
			s.mu.Unlock()
			joined = s
			reply, err := json.Marshal(session.Message{
				Type:          session.TypeSyncResponse,
				SessionID:     sessionID,
				DocumentState: state,
				IsFirstUser:   first,
			})
			if err != nil {
				slog.Error("failed to encode sync response", "err", err)
				return
			}
			cl.send <- reply
		case session.TypeChange:
			if joined == nil {
				continue
			}
			joined.mu.Lock()
			if err := joined.doc.ApplyRemoteChanges(msg.Changes); err != nil {
				joined.mu.Unlock()
				slog.Error("failed to apply changes", "session", sessionID, "err", err)
				messagesDroppedTotal.Inc()
				continue
			}
			joined.lastActive = time.Now()
			joined.mu.Unlock()
			h.fanOut(joined, cl, raw)
			changesRelayedTotal.Inc()
		case session.TypePresence:
			if joined == nil {
				continue
			}
			joined.mu.Lock()
			joined.lastActive = time.Now()
			joined.mu.Unlock()
			h.fanOut(joined, cl, raw)
			presenceRelayedTotal.Inc()
		default:
			slog.Info("ignoring unknown message", "session", sessionID, "type", msg.Type)
		}
	}
}

func (h *Hub) fanOut(s *liveSession, origin *client, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		if cl == origin {
			continue
		}
		select {
		case cl.send <- raw:
		default:
			messagesDroppedTotal.Inc()
		}
	}
}

func (h *Hub) leave(s *liveSession, cl *client) {
	s.mu.Lock()
	delete(s.clients, cl)
	empty := len(s.clients) == 0
	s.lastActive = time.Now()
	s.mu.Unlock()
	if !empty {
		return
	}
	time.AfterFunc(emptySessionGrace, func() {
		s.mu.Lock()
		stillEmpty := len(s.clients) == 0
		blob := s.doc.Save()
		s.mu.Unlock()
		if !stillEmpty {
			return
		}
		if h.snapshots != nil {
			if _, err := h.snapshots.Put(s.id, blob); err != nil {
				slog.Error("failed to backup session before removal", "session", s.id, "err", err)
			}
		}
		h.mu.Lock()
		if h.sessions[s.id] == s {
			delete(h.sessions, s.id)
			openSessionsGauge.Dec()
			slog.Info("removed idle session", "session", s.id)
		}
		h.mu.Unlock()
	})
}
