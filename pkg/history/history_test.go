package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/geom"
)

func newFixture() (*curve.Store, *Tree, string) {
	s := curve.New()
	return s, New(s), s.ActiveID()
}

func points(s *curve.Store) []geom.Point {
	return s.ActivePoints()
}

func TestExecuteUndoRedo(t *testing.T) {
	s, tree, blue := newFixture()
	assert.False(t, tree.CanUndo())
	assert.False(t, tree.CanRedo())

	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 1}))
	assert.True(t, tree.CanUndo())
	assert.False(t, tree.CanRedo())

	tree.Undo()
	assert.Empty(t, points(s))
	assert.False(t, tree.CanUndo())
	assert.True(t, tree.CanRedo())

	tree.Redo()
	assert.Equal(t, []geom.Point{{X: 1, Y: 1}}, points(s))
}

func TestUndoAtRootIsNoOp(t *testing.T) {
	_, tree, _ := newFixture()
	assert.Equal(t, "", tree.Undo())
	assert.Same(t, tree.Root(), tree.Current())
}

// The literal branching scenario: three adds, two undos, a divergent add,
// then a switch back to the original branch.
func TestBranchingUndoRedo(t *testing.T) {
	s, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 10, Y: 20}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 30, Y: 40}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 50, Y: 60}))

	tree.Undo()
	tree.Undo()
	require.Equal(t, []geom.Point{{X: 10, Y: 20}}, points(s))

	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 100, Y: 100}))
	require.Equal(t, []geom.Point{{X: 10, Y: 20}, {X: 100, Y: 100}}, points(s))

	branches := tree.Branches()
	require.Len(t, branches, 2)

	var current, other *Branch
	for i := range branches {
		if branches[i].IsCurrent {
			current = &branches[i]
		} else {
			other = &branches[i]
		}
	}
	require.NotNil(t, current)
	require.NotNil(t, other)
	cmd := current.Child.Command.(*command.AddPoint)
	assert.Equal(t, geom.Point{X: 100, Y: 100}, cmd.Point)

	tree.SwitchToBranch(other.Tip)
	assert.Equal(t, []geom.Point{{X: 10, Y: 20}, {X: 30, Y: 40}, {X: 50, Y: 60}}, points(s))
}

// The literal intersection scenario: cycling selections at a fork does not
// change state until the next redo.
func TestIntersectionCycling(t *testing.T) {
	s, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 10, Y: 20}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 30, Y: 40}))
	tree.Undo()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 100, Y: 100}))

	// walk back to the fork
	tree.JumpToPreviousIntersectionOrStart()
	require.Equal(t, []geom.Point{{X: 10, Y: 20}}, points(s))
	require.True(t, tree.IsAtIntersection())

	info, ok := tree.Intersection()
	require.True(t, ok)
	assert.Equal(t, 2, info.TotalBranches)

	before := points(s)
	tree.SwitchToNextBranch()
	tree.SwitchToNextBranch()
	assert.Equal(t, before, points(s))

	// two cycles from selected=1 lands back on the (100,100) child
	tree.Redo()
	assert.Equal(t, []geom.Point{{X: 10, Y: 20}, {X: 100, Y: 100}}, points(s))
}

func TestSwitchToPreviousBranch(t *testing.T) {
	_, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 1}))
	tree.Undo()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 2, Y: 2}))
	tree.JumpToPreviousIntersectionOrStart()
	require.True(t, tree.IsAtIntersection())

	info, _ := tree.Intersection()
	first := info.CurrentBranch
	tree.SwitchToPreviousBranch()
	info, _ = tree.Intersection()
	assert.NotEqual(t, first, info.CurrentBranch)
}

// The literal LoadCurves scenario.
func TestLoadCurvesRoundTrip(t *testing.T) {
	s, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 1}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 2, Y: 2}))

	red := curve.Curve{ID: "red1", Color: curve.Palette[1], Points: []geom.Point{{X: 100, Y: 200}, {X: 300, Y: 400}}}
	affected := tree.ExecuteCommand(command.NewLoadCurves([]curve.Curve{red}, s.Curves()))
	assert.Equal(t, "red1", affected)
	s.SetActive(affected)
	assert.Equal(t, []geom.Point{{X: 100, Y: 200}, {X: 300, Y: 400}}, points(s))

	tree.Undo()
	assert.Equal(t, blue, s.ActiveID())
	assert.Equal(t, []geom.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, points(s))
}

func TestCurrentReachableFromRoot(t *testing.T) {
	_, tree, blue := newFixture()
	for i := 0; i < 5; i++ {
		tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: float64(i), Y: 0}))
		if i%2 == 0 {
			tree.Undo()
		}
	}
	n := tree.Current()
	for n.Parent != nil {
		idx := n.Parent.childIndex(n)
		require.GreaterOrEqual(t, idx, 0, "current must be reachable through parent children")
		n = n.Parent
	}
	assert.Same(t, tree.Root(), n)
}

func TestJumpToNextIntersectionOrEnd(t *testing.T) {
	s, tree, blue := newFixture()
	for i := 1; i <= 4; i++ {
		tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: float64(i), Y: 0}))
	}
	for tree.CanUndo() {
		tree.Undo()
	}
	require.Empty(t, points(s))

	tree.JumpToNextIntersectionOrEnd()
	assert.Len(t, points(s), 4)
	assert.False(t, tree.CanRedo())
}

func TestJumpStopsAtIntersection(t *testing.T) {
	s, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 0}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 2, Y: 0}))
	tree.Undo()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 3, Y: 0}))
	// tree: root -> a1 -> {a2, a3}; rewind fully and jump forward
	for tree.CanUndo() {
		tree.Undo()
	}
	tree.JumpToNextIntersectionOrEnd()
	assert.Equal(t, []geom.Point{{X: 1, Y: 0}}, points(s))
	assert.True(t, tree.IsAtIntersection())
}

func TestClearRewindsAndDropsChildren(t *testing.T) {
	s, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 1}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 2, Y: 2}))
	tree.Clear()
	assert.Empty(t, points(s))
	assert.Same(t, tree.Root(), tree.Current())
	assert.Empty(t, tree.Root().Children)
	assert.False(t, tree.CanUndo())
	assert.False(t, tree.CanRedo())
}

func TestExecuteRemoteCommandAddsNoNode(t *testing.T) {
	s, tree, _ := newFixture()
	before := tree.Current()
	tree.ExecuteRemoteCommand(command.NewRemoteOverwrite([]curve.Curve{{ID: "r", Color: curve.Palette[0]}}))
	assert.Same(t, before, tree.Current())
	assert.Equal(t, "r", s.Curves()[0].ID)
}

func TestOnExecuteCallback(t *testing.T) {
	_, tree, blue := newFixture()
	var gotDesc string
	tree.OnExecute = func(cmd command.Command, description string) {
		gotDesc = description
	}
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 1}))
	assert.Equal(t, "Add point to blue curve", gotDesc)
}

func TestReplayEquivalence(t *testing.T) {
	s, tree, blue := newFixture()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 1, Y: 1}))
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 2, Y: 2}))
	tree.Undo()
	tree.ExecuteCommand(command.NewAddPoint(blue, geom.Point{X: 3, Y: 3}))

	// replay the root-to-current path against a copy of the initial store
	replayStore := curve.NewEmpty()
	replayStore.InsertCurveAt(0, curve.Curve{ID: blue, Color: curve.Palette[0]})
	replayStore.SetActive(blue)
	var path []*Node
	for n := tree.Current(); n.Parent != nil; n = n.Parent {
		path = append(path, n)
	}
	for i := len(path) - 1; i >= 0; i-- {
		path[i].Command.Execute(replayStore)
	}
	assert.Equal(t, s.Curves(), replayStore.Curves())
}
