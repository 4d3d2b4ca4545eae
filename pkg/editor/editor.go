// Package editor glues the engine together: it ingests input actions,
// decides between the local and shared history paths, keeps presence fresh,
// and triggers re-renders.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/document"
	"github.com/astromechza/curvesync/pkg/geom"
	"github.com/astromechza/curvesync/pkg/history"
	"github.com/astromechza/curvesync/pkg/session"
)

// PointAction is one abstract pointer event from the input source.
type PointAction struct {
	Type     string // "add", "remove" or "move"
	Point    geom.Point
	Index    int
	OldPoint geom.Point
}

// Point action types.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionMove   = "move"
)

// InputSource is the external producer of point actions. The editor pushes
// point sequences back into it whenever history changes under its feet.
type InputSource interface {
	SetPoints(points []geom.Point)
}

// Frame is the snapshot handed to the renderer. It carries no mutation path.
type Frame struct {
	Curves            []curve.Curve
	ActiveCurveID     string
	AnimatedPoints    []geom.Point
	VisualizationMode string
	AnimationProgress float64
}

// Renderer consumes frames.
type Renderer interface {
	Render(f Frame)
}

// Editor is the per-replica state coordinator.
type Editor struct {
	store    *curve.Store
	tree     *history.Tree
	doc      *document.Document
	client   *session.Client
	input    InputSource
	renderer Renderer

	collaborating bool
	// pending holds change blobs that could not be sent yet; they go out
	// together with the next change.
	pending []byte
	// isApplyingRemoteChange drops local-command callbacks triggered while
	// a remote change is being applied, breaking echo loops.
	isApplyingRemoteChange bool

	// OnPeersChange, when set, receives presence snapshots.
	OnPeersChange func(users map[string]document.User)
}

// Config wires an editor together. Store, Tree and Document are required;
// Client may be nil for an offline editor.
type Config struct {
	Store    *curve.Store
	Tree     *history.Tree
	Document *document.Document
	Client   *session.Client
	Input    InputSource
	Renderer Renderer
}

// New builds the coordinator and registers all cross-component callbacks.
func New(cfg Config) *Editor {
	e := &Editor{
		store:    cfg.Store,
		tree:     cfg.Tree,
		doc:      cfg.Document,
		client:   cfg.Client,
		input:    cfg.Input,
		renderer: cfg.Renderer,
	}
	e.tree.OnExecute = e.onLocalCommand
	e.doc.OnRemoteChange = e.onRemoteChange
	e.doc.OnPresenceUpdate = e.onPresenceUpdate
	if e.client != nil {
		e.client.OnSyncResponse = e.onSyncResponse
		e.client.OnChange = e.onChange
	}
	return e
}

// SetCollaborating toggles the runtime collaboration switch.
func (e *Editor) SetCollaborating(on bool) {
	e.collaborating = on
}

// Collaborating reports whether the shared path is in use: collaboration
// must be enabled and the transport connected.
func (e *Editor) Collaborating() bool {
	return e.collaborating && e.client != nil && e.client.Connected()
}

// Store exposes the curve store for read access.
func (e *Editor) Store() *curve.Store { return e.store }

// Tree exposes the local history tree.
func (e *Editor) Tree() *history.Tree { return e.tree }

// HandlePointAction turns an input action into a command on the active
// curve, executes it through the local tree, and syncs selection, input
// source and presence.
func (e *Editor) HandlePointAction(a PointAction) error {
	activeID := e.store.ActiveID()
	if activeID == "" && e.store.Len() > 0 {
		activeID = e.store.Curves()[0].ID
		e.store.SetActive(activeID)
	}
	var cmd command.Command
	switch a.Type {
	case ActionAdd:
		cmd = command.NewAddPoint(activeID, a.Point)
	case ActionRemove:
		cmd = command.NewRemovePoint(activeID, a.Index, a.Point)
	case ActionMove:
		cmd = command.NewMovePoint(activeID, a.Index, a.OldPoint, a.Point)
	default:
		return fmt.Errorf("unknown point action %q", a.Type)
	}
	affected := e.tree.ExecuteCommand(cmd)
	e.afterHistoryChange(affected)
	if e.collaborating {
		e.sendPresence(&a.Point, e.store.ActiveID())
	}
	return nil
}

// AddCurve creates a fresh curve through the command pathway.
func (e *Editor) AddCurve() string {
	c := e.store.NewCurve()
	e.tree.ExecuteCommand(command.NewAddCurve(c))
	e.afterHistoryChange(c.ID)
	return c.ID
}

// RemoveCurve removes a curve through the command pathway.
func (e *Editor) RemoveCurve(id string) {
	i := e.store.IndexOf(id)
	c := e.store.CurveByID(id)
	if c == nil {
		return
	}
	e.tree.ExecuteCommand(command.NewRemoveCurve(*c, i))
	e.afterHistoryChange(e.store.ActiveID())
}

// Undo picks the shared path when collaborating, the local tree otherwise.
func (e *Editor) Undo() {
	if e.Collaborating() {
		ok, blob, err := e.doc.SharedUndo()
		if err != nil {
			slog.Error("shared undo failed", "err", err)
			return
		}
		if ok {
			e.broadcast(blob)
		}
		return
	}
	affected := e.tree.Undo()
	e.afterHistoryChange(affected)
}

// Redo mirrors Undo's path selection.
func (e *Editor) Redo() {
	if e.Collaborating() {
		ok, blob, err := e.doc.SharedRedo()
		if err != nil {
			slog.Error("shared redo failed", "err", err)
			return
		}
		if ok {
			e.broadcast(blob)
		}
		return
	}
	affected := e.tree.Redo()
	e.afterHistoryChange(affected)
}

// CanUndo follows the same branch as Undo.
func (e *Editor) CanUndo() bool {
	if e.Collaborating() {
		return e.doc.CanSharedUndo()
	}
	return e.tree.CanUndo()
}

// CanRedo follows the same branch as Redo.
func (e *Editor) CanRedo() bool {
	if e.Collaborating() {
		return e.doc.CanSharedRedo()
	}
	return e.tree.CanRedo()
}

// SetCursor broadcasts an ephemeral cursor position without touching any
// history.
func (e *Editor) SetCursor(p geom.Point) {
	if !e.Collaborating() {
		return
	}
	if err := e.client.SendPresence(session.Presence{
		Type:          "cursor",
		UserID:        e.doc.UserID(),
		Cursor:        &p,
		ActiveCurveID: e.store.ActiveID(),
	}); err != nil {
		slog.Error("failed to send presence", "err", err)
	}
}

// LoadJSON replaces the document contents from a persisted file through the
// command pathway, so the load is undoable. Validation failures leave the
// store untouched and are surfaced to the caller.
func (e *Editor) LoadJSON(raw []byte) error {
	incoming := curve.NewEmpty()
	if err := incoming.FromJSON(raw); err != nil {
		return err
	}
	old := e.store.Curves()
	cmd := command.NewLoadCurves(incoming.Curves(), old)
	affected := e.tree.ExecuteCommand(cmd)
	e.afterHistoryChange(affected)
	return nil
}

// SaveJSON serializes the store to the persistent file format.
func (e *Editor) SaveJSON() ([]byte, error) {
	return e.store.ToJSON()
}

// afterHistoryChange syncs the selection and the external surfaces after
// any history traversal.
func (e *Editor) afterHistoryChange(affected string) {
	if affected != "" && e.store.IndexOf(affected) >= 0 {
		e.store.SetActive(affected)
	} else if e.store.IndexOf(e.store.ActiveID()) < 0 && e.store.Len() > 0 {
		e.store.SetActive(e.store.Curves()[0].ID)
	}
	if e.input != nil {
		e.input.SetPoints(e.store.ActivePoints())
	}
	e.render()
}

func (e *Editor) render() {
	if e.renderer == nil {
		return
	}
	e.renderer.Render(Frame{
		Curves:            e.store.Curves(),
		ActiveCurveID:     e.store.ActiveID(),
		VisualizationMode: "curve",
	})
}

// onLocalCommand is the tree's collaboration callback: it mirrors the
// command into the replicated document and broadcasts the delta.
func (e *Editor) onLocalCommand(cmd command.Command, description string) {
	if !e.collaborating || e.isApplyingRemoteChange {
		return
	}
	blob, err := e.doc.ApplyCommand(cmd, description)
	if err != nil {
		slog.Error("failed to mirror command", "err", err)
		return
	}
	e.broadcast(blob)
}

func (e *Editor) broadcast(blob []byte) {
	if blob == nil || e.client == nil {
		return
	}
	// incremental saves concatenate, so unsent deltas ride along with this one
	e.pending = append(e.pending, blob...)
	if !e.client.Connected() {
		return
	}
	if err := e.client.SendChange(e.pending); err != nil {
		slog.Error("failed to send change", "err", err)
		return
	}
	e.pending = nil
}

func (e *Editor) sendPresence(cursor *geom.Point, activeCurveID string) {
	blob, err := e.doc.UpdatePresence(cursor, activeCurveID, "")
	if err != nil {
		slog.Error("failed to update presence", "err", err)
		return
	}
	e.broadcast(blob)
}

// Rename changes the local user's display name and propagates it through
// the presence record.
func (e *Editor) Rename(name string) {
	blob, err := e.doc.UpdatePresence(nil, e.store.ActiveID(), name)
	if err != nil {
		slog.Error("failed to rename", "err", err)
		return
	}
	e.broadcast(blob)
}

// onRemoteChange ingests a converged remote curve state: it overwrites the
// store without adding a local history node. The local and shared histories
// diverge at that point, which is accepted.
func (e *Editor) onRemoteChange(curves []curve.Curve) {
	e.isApplyingRemoteChange = true
	defer func() { e.isApplyingRemoteChange = false }()
	cmd := command.NewRemoteOverwrite(curves)
	e.tree.ExecuteRemoteCommand(cmd)
	if e.store.IndexOf(e.store.ActiveID()) < 0 && e.store.Len() > 0 {
		e.store.SetActive(e.store.Curves()[0].ID)
	}
	if e.input != nil {
		e.input.SetPoints(e.store.ActivePoints())
	}
	e.render()
}

func (e *Editor) onPresenceUpdate(users map[string]document.User) {
	if e.OnPeersChange != nil {
		e.OnPeersChange(users)
	}
}

// onSyncResponse loads the authoritative state before anything else. A first
// joiner then replays its pre-existing local store into the shared document
// as a single transaction and broadcasts it; loading must not fire the
// remote-change callback there or the local curves would be wiped before the
// replay. Everyone else adopts the session's curves.
func (e *Editor) onSyncResponse(state []byte, isFirstUser bool) {
	if err := e.doc.Load(state, true); err != nil {
		slog.Error("failed to load session state", "err", err)
		return
	}
	if isFirstUser {
		cmd := command.NewLoadCurves(e.store.Curves(), nil)
		blob, err := e.doc.ApplyCommand(cmd, "Load initial curves")
		if err != nil {
			slog.Error("failed to seed session curves", "err", err)
			return
		}
		e.broadcast(blob)
		return
	}
	curves, err := e.doc.Curves()
	if err != nil {
		slog.Error("failed to read session curves", "err", err)
		return
	}
	e.onRemoteChange(curves)
}

func (e *Editor) onChange(changes []byte) {
	if err := e.doc.ApplyRemoteChanges(changes); err != nil {
		slog.Error("failed to apply remote changes", "err", err)
	}
}
