package editor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/document"
	"github.com/astromechza/curvesync/pkg/geom"
	"github.com/astromechza/curvesync/pkg/history"
)

type recordingInput struct {
	sets [][]geom.Point
}

func (r *recordingInput) SetPoints(points []geom.Point) {
	r.sets = append(r.sets, points)
}

type recordingRenderer struct {
	frames []Frame
}

func (r *recordingRenderer) Render(f Frame) {
	r.frames = append(r.frames, f)
}

func newTestEditor(t *testing.T) (*Editor, *recordingInput, *recordingRenderer) {
	t.Helper()
	ed, input, renderer := newUnseededEditor(t)
	require.NoError(t, ed.doc.Seed())
	return ed, input, renderer
}

// newUnseededEditor mirrors a real client before its sync handshake: the
// replicated document has no containers until the hub state is loaded.
func newUnseededEditor(t *testing.T) (*Editor, *recordingInput, *recordingRenderer) {
	t.Helper()
	store := curve.New()
	tree := history.New(store)
	doc := document.New(uuid.NewString(), "alice")
	input := &recordingInput{}
	renderer := &recordingRenderer{}
	ed := New(Config{
		Store:    store,
		Tree:     tree,
		Document: doc,
		Input:    input,
		Renderer: renderer,
	})
	return ed, input, renderer
}

func TestHandlePointActionAdd(t *testing.T) {
	ed, input, renderer := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 10, Y: 20}}))
	assert.Equal(t, []geom.Point{{X: 10, Y: 20}}, ed.Store().ActivePoints())
	require.NotEmpty(t, input.sets)
	assert.Equal(t, []geom.Point{{X: 10, Y: 20}}, input.sets[len(input.sets)-1])
	require.NotEmpty(t, renderer.frames)
	last := renderer.frames[len(renderer.frames)-1]
	assert.Equal(t, ed.Store().ActiveID(), last.ActiveCurveID)
	assert.Equal(t, "curve", last.VisualizationMode)
}

func TestHandlePointActionRemoveAndMove(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 2, Y: 2}}))

	require.NoError(t, ed.HandlePointAction(PointAction{
		Type: ActionMove, Index: 1, OldPoint: geom.Point{X: 2, Y: 2}, Point: geom.Point{X: 9, Y: 9},
	}))
	assert.Equal(t, []geom.Point{{X: 1, Y: 1}, {X: 9, Y: 9}}, ed.Store().ActivePoints())

	require.NoError(t, ed.HandlePointAction(PointAction{
		Type: ActionRemove, Index: 0, Point: geom.Point{X: 1, Y: 1},
	}))
	assert.Equal(t, []geom.Point{{X: 9, Y: 9}}, ed.Store().ActivePoints())
}

func TestUnknownActionErrors(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	assert.Error(t, ed.HandlePointAction(PointAction{Type: "wiggle"}))
}

func TestLocalUndoRedo(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))
	assert.True(t, ed.CanUndo())

	ed.Undo()
	assert.Empty(t, ed.Store().ActivePoints())
	assert.True(t, ed.CanRedo())

	ed.Redo()
	assert.Equal(t, []geom.Point{{X: 1, Y: 1}}, ed.Store().ActivePoints())
}

func TestAddRemoveCurve(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	first := ed.Store().ActiveID()
	id := ed.AddCurve()
	assert.Equal(t, 2, ed.Store().Len())
	assert.Equal(t, id, ed.Store().ActiveID())

	ed.RemoveCurve(id)
	assert.Equal(t, 1, ed.Store().Len())
	assert.Equal(t, first, ed.Store().ActiveID())

	// both operations went through the history tree
	assert.True(t, ed.CanUndo())
	ed.Undo()
	assert.Equal(t, 2, ed.Store().Len())
}

func TestRemoteChangeOverwritesWithoutHistoryNode(t *testing.T) {
	ed, input, renderer := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))
	nodeBefore := ed.Tree().Current()

	remote := []curve.Curve{{ID: "remote1", Color: curve.Palette[1], Points: []geom.Point{{X: 5, Y: 5}}}}
	renders := len(renderer.frames)
	sets := len(input.sets)
	ed.onRemoteChange(remote)

	assert.Same(t, nodeBefore, ed.Tree().Current())
	assert.Equal(t, "remote1", ed.Store().ActiveID())
	assert.Greater(t, len(renderer.frames), renders)
	assert.Greater(t, len(input.sets), sets)
}

func TestRemoteChangeGuardDropsLocalCallbacks(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	ed.SetCollaborating(true)

	fired := 0
	inner := ed.tree.OnExecute
	ed.tree.OnExecute = func(cmd command.Command, description string) {
		fired++
		inner(cmd, description)
	}

	// a command executed while a remote change is being applied must not be
	// mirrored into the document
	ed.isApplyingRemoteChange = true
	before, err := ed.doc.History()
	require.NoError(t, err)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))
	after, err := ed.doc.History()
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, len(before.Nodes), len(after.Nodes))
}

func TestCollaboratingMirrorsCommandsIntoDocument(t *testing.T) {
	ed, _, _ := newUnseededEditor(t)
	ed.SetCollaborating(true)

	// join a brand new session as its first user so the document holds the
	// store's curve before the edit
	hubDoc := document.New(uuid.NewString(), "hub")
	require.NoError(t, hubDoc.Seed())
	ed.onSyncResponse(hubDoc.Save(), true)

	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 3, Y: 4}}))

	h, err := ed.doc.History()
	require.NoError(t, err)
	assert.Len(t, h.Nodes, 3) // root + initial load + add
	cur := h.Nodes[h.CurrentNodeID]
	require.NotNil(t, cur.Command)
	assert.Equal(t, command.KindAddPoint, cur.Command.Kind)

	curves, err := ed.doc.Curves()
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.Equal(t, []geom.Point{{X: 3, Y: 4}}, curves[0].Points)
}

func TestOfflineDoesNotTouchDocument(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 3, Y: 4}}))
	curves, err := ed.doc.Curves()
	require.NoError(t, err)
	assert.Empty(t, curves)
}

func TestLoadJSONThroughHistory(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))
	beforeActive := ed.Store().ActiveID()

	require.NoError(t, ed.LoadJSON([]byte(`{"curves":[{"id":"f1","color":"#ff4a9e","points":[{"x":7,"y":8}]}],"activeCurveId":"f1"}`)))
	assert.Equal(t, "f1", ed.Store().ActiveID())
	assert.Equal(t, []geom.Point{{X: 7, Y: 8}}, ed.Store().ActivePoints())

	ed.Undo()
	assert.Equal(t, beforeActive, ed.Store().ActiveID())
	assert.Equal(t, []geom.Point{{X: 1, Y: 1}}, ed.Store().ActivePoints())
}

func TestLoadJSONInvalidLeavesStoreUntouched(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))
	before := ed.Store().Curves()
	canUndoBefore := ed.CanUndo()

	assert.Error(t, ed.LoadJSON([]byte(`{"curves":[{"id":"","color":"","points":[]}]}`)))
	assert.Equal(t, before, ed.Store().Curves())
	assert.Equal(t, canUndoBefore, ed.CanUndo())
}

func TestSaveJSON(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	raw, err := ed.SaveJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "curves")
}

func TestFirstUserReplaySeedsDocument(t *testing.T) {
	ed, _, _ := newUnseededEditor(t)
	ed.SetCollaborating(true)
	require.NoError(t, ed.HandlePointAction(PointAction{Type: ActionAdd, Point: geom.Point{X: 1, Y: 1}}))

	// simulate the hub's sync-response for a brand new session
	hubDoc := document.New(uuid.NewString(), "hub")
	require.NoError(t, hubDoc.Seed())
	ed.onSyncResponse(hubDoc.Save(), true)

	curves, err := ed.doc.Curves()
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.Equal(t, ed.Store().Curves(), curves)
}

func TestCollaborativeRemoveLastCurveKeepsPeersNonEmpty(t *testing.T) {
	hubDoc := document.New(uuid.NewString(), "hub")
	require.NoError(t, hubDoc.Seed())

	// A joins an empty session and replays its single blue curve
	edA, _, _ := newUnseededEditor(t)
	edA.SetCollaborating(true)
	edA.onSyncResponse(hubDoc.Save(), true)

	// B joins once A's state is the session state; a full save is a valid
	// change blob so the transfer needs no transport here
	edB, _, _ := newUnseededEditor(t)
	edB.SetCollaborating(true)
	edB.onSyncResponse(edA.doc.Save(), false)
	require.Equal(t, edA.Store().Curves(), edB.Store().Curves())
	lastID := edA.Store().Curves()[0].ID

	edA.RemoveCurve(lastID)
	require.NoError(t, edB.doc.ApplyRemoteChanges(edA.doc.Save()))

	// the peer's store must never be left empty by a remote removal
	assert.GreaterOrEqual(t, edB.Store().Len(), 1)
	assert.NotEmpty(t, edB.Store().ActiveID())
	for _, c := range edB.Store().Curves() {
		assert.NotEqual(t, lastID, c.ID)
	}
}

func TestRenamePropagatesThroughPresence(t *testing.T) {
	ed, _, _ := newTestEditor(t)
	ed.SetCollaborating(true)
	ed.Rename("carol")

	users, err := ed.doc.Users()
	require.NoError(t, err)
	require.Contains(t, users, ed.doc.UserID())
	assert.Equal(t, "carol", users[ed.doc.UserID()].Name)
}

func TestSyncResponseNonFirstUserLoadsRemoteState(t *testing.T) {
	ed, _, _ := newUnseededEditor(t)
	ed.SetCollaborating(true)

	hubDoc := document.New(uuid.NewString(), "hub")
	require.NoError(t, hubDoc.Seed())
	blob, err := hubDoc.ApplyCommand(command.NewLoadCurves([]curve.Curve{{ID: "h1", Color: curve.Palette[2], Points: []geom.Point{{X: 9, Y: 9}}}}, nil), "Load 1 curves")
	require.NoError(t, err)
	require.NotNil(t, blob)

	ed.onSyncResponse(hubDoc.Save(), false)

	// the coordinator sees the session's curves after load
	assert.Equal(t, "h1", ed.Store().Curves()[0].ID)
	assert.Equal(t, []geom.Point{{X: 9, Y: 9}}, ed.Store().Curves()[0].Points)
}
