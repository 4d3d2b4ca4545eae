// Package history implements the local branching undo/redo tree. Executing a
// command at a node that already has children appends a sibling instead of
// truncating, so every edit preserves prior futures.
package history

import (
	"time"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/curve"
)

// Node is one executed command and its place in the tree. The root carries no
// command. Identity is by reference; nodes live for the engine's lifetime.
type Node struct {
	Command     command.Command
	Parent      *Node
	Children    []*Node
	Timestamp   time.Time
	Description string

	// selected disambiguates which child redo follows when several exist.
	selected int
}

func (n *Node) childIndex(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Branch is one alternative child at a junction along the root-to-current
// path. Tip is the end of that branch when following each node's selected
// child, which is where SwitchToBranch navigates to.
type Branch struct {
	Child       *Node
	Tip         *Node
	Description string
	IsCurrent   bool
}

// IntersectionInfo describes the fork at the current node.
type IntersectionInfo struct {
	CurrentBranch int
	TotalBranches int
	Description   string
}

// Tree is the local history over a single curve store.
type Tree struct {
	store   *curve.Store
	root    *Node
	current *Node

	// OnExecute, when set, is invoked after every locally executed command
	// so the collaboration layer can mirror it into the shared document.
	OnExecute func(cmd command.Command, description string)
}

// New creates an empty tree rooted alongside the given store.
func New(store *curve.Store) *Tree {
	root := &Node{Timestamp: time.Now(), Description: "Start"}
	return &Tree{store: store, root: root, current: root}
}

// Store returns the store the tree executes against.
func (t *Tree) Store() *curve.Store { return t.store }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Current returns the node designating the live state.
func (t *Tree) Current() *Node { return t.current }

// ExecuteCommand appends a new node as a child of current, runs the command,
// and moves current onto it. Returns the command's affected curve id.
func (t *Tree) ExecuteCommand(cmd command.Command) string {
	desc := command.Describe(cmd, t.store)
	node := &Node{
		Command:     cmd,
		Parent:      t.current,
		Timestamp:   time.Now(),
		Description: desc,
	}
	t.current.Children = append(t.current.Children, node)
	t.current.selected = len(t.current.Children) - 1
	cmd.Execute(t.store)
	t.current = node
	node.selected = 0
	if t.OnExecute != nil {
		t.OnExecute(cmd, desc)
	}
	return cmd.AffectedCurveID()
}

// ExecuteRemoteCommand applies a command to the store without touching the
// tree. Used for remote overwrites, which have no local undo.
func (t *Tree) ExecuteRemoteCommand(cmd command.Command) string {
	cmd.Execute(t.store)
	return cmd.AffectedCurveID()
}

// CanUndo reports whether current has a parent.
func (t *Tree) CanUndo() bool { return t.current.Parent != nil }

// CanRedo reports whether current has children.
func (t *Tree) CanRedo() bool { return len(t.current.Children) > 0 }

// Undo reverses the current command and moves to its parent. Returns the new
// current's affected curve id, or "" at the root.
func (t *Tree) Undo() string {
	if t.current.Parent == nil {
		return ""
	}
	t.current.Command.Undo(t.store)
	t.current = t.current.Parent
	if t.current.Command != nil {
		return t.current.Command.AffectedCurveID()
	}
	return ""
}

// Redo re-executes the selected child and moves onto it.
func (t *Tree) Redo() string {
	if len(t.current.Children) == 0 {
		return ""
	}
	idx := t.current.selected
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.current.Children) {
		idx = len(t.current.Children) - 1
	}
	child := t.current.Children[idx]
	child.Command.Execute(t.store)
	t.current = child
	return child.Command.AffectedCurveID()
}

// Branches enumerates, in root-to-current order, every child of every
// junction along the current path, tagging the child that lies on the path.
func (t *Tree) Branches() []Branch {
	path := t.pathFromRoot(t.current)
	onPath := make(map[*Node]bool, len(path))
	for _, n := range path {
		onPath[n] = true
	}
	var out []Branch
	for _, n := range path {
		if len(n.Children) < 2 {
			continue
		}
		for _, child := range n.Children {
			out = append(out, Branch{
				Child:       child,
				Tip:         tipOf(child),
				Description: child.Description,
				IsCurrent:   onPath[child],
			})
		}
	}
	return out
}

func tipOf(n *Node) *Node {
	for len(n.Children) > 0 {
		idx := n.selected
		if idx < 0 || idx >= len(n.Children) {
			idx = 0
		}
		n = n.Children[idx]
	}
	return n
}

// SwitchToBranch undoes up to the common ancestor of current and target then
// replays down to target. An unreachable ancestor falls back to the root.
func (t *Tree) SwitchToBranch(target *Node) string {
	if target == nil || target == t.current {
		return ""
	}
	ancestor := t.commonAncestor(t.current, target)
	if ancestor == nil {
		ancestor = t.root
	}
	for t.current != ancestor && t.current.Parent != nil {
		t.current.Command.Undo(t.store)
		t.current = t.current.Parent
	}
	var down []*Node
	for n := target; n != ancestor && n != nil; n = n.Parent {
		down = append(down, n)
	}
	for i := len(down) - 1; i >= 0; i-- {
		n := down[i]
		if idx := t.current.childIndex(n); idx >= 0 {
			t.current.selected = idx
		}
		n.Command.Execute(t.store)
		t.current = n
	}
	if t.current.Command != nil {
		return t.current.Command.AffectedCurveID()
	}
	return ""
}

// JumpToNextIntersectionOrEnd redoes forward, following the selected child
// first and the first child thereafter, stopping at a node with zero or
// multiple children.
func (t *Tree) JumpToNextIntersectionOrEnd() string {
	affected := ""
	first := true
	for len(t.current.Children) > 0 {
		idx := 0
		if first {
			idx = t.current.selected
			if idx < 0 || idx >= len(t.current.Children) {
				idx = 0
			}
			first = false
		}
		child := t.current.Children[idx]
		child.Command.Execute(t.store)
		t.current = child
		affected = child.Command.AffectedCurveID()
		if len(t.current.Children) != 1 {
			break
		}
	}
	return affected
}

// JumpToPreviousIntersectionOrStart undoes backward, stopping the first time
// a junction is crossed, or at the root.
func (t *Tree) JumpToPreviousIntersectionOrStart() string {
	for t.current.Parent != nil {
		n := t.current
		n.Command.Undo(t.store)
		t.current = n.Parent
		if idx := t.current.childIndex(n); idx >= 0 {
			t.current.selected = idx
		}
		if len(t.current.Children) > 1 {
			break
		}
	}
	if t.current.Command != nil {
		return t.current.Command.AffectedCurveID()
	}
	return ""
}

// IsAtIntersection reports whether current has more than one child.
func (t *Tree) IsAtIntersection() bool { return len(t.current.Children) > 1 }

// SwitchToNextBranch cycles the selected child forward without executing
// anything; the choice takes effect on the next redo or jump.
func (t *Tree) SwitchToNextBranch() {
	if t.IsAtIntersection() {
		t.current.selected = (t.current.selected + 1) % len(t.current.Children)
	}
}

// SwitchToPreviousBranch cycles the selected child backward.
func (t *Tree) SwitchToPreviousBranch() {
	if t.IsAtIntersection() {
		n := len(t.current.Children)
		t.current.selected = (t.current.selected - 1 + n) % n
	}
}

// Intersection reports the fork at the current node, if any.
func (t *Tree) Intersection() (IntersectionInfo, bool) {
	if !t.IsAtIntersection() {
		return IntersectionInfo{}, false
	}
	idx := t.current.selected
	if idx < 0 || idx >= len(t.current.Children) {
		idx = 0
	}
	return IntersectionInfo{
		CurrentBranch: idx + 1,
		TotalBranches: len(t.current.Children),
		Description:   t.current.Children[idx].Description,
	}, true
}

// Clear rewinds to the root by undoing the whole current path and drops all
// children; the root remains.
func (t *Tree) Clear() {
	for t.current.Parent != nil {
		t.current.Command.Undo(t.store)
		t.current = t.current.Parent
	}
	t.root.Children = nil
	t.root.selected = 0
}

func (t *Tree) pathFromRoot(n *Node) []*Node {
	var rev []*Node
	for ; n != nil; n = n.Parent {
		rev = append(rev, n)
	}
	out := make([]*Node, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}

func (t *Tree) commonAncestor(a, b *Node) *Node {
	seen := map[*Node]bool{}
	for n := a; n != nil; n = n.Parent {
		seen[n] = true
	}
	for n := b; n != nil; n = n.Parent {
		if seen[n] {
			return n
		}
	}
	return nil
}
