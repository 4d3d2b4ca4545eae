package document

import (
	"fmt"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/google/uuid"

	"github.com/astromechza/curvesync/pkg/command"
	"github.com/astromechza/curvesync/pkg/curve"
)

// SharedNode mirrors one local history node inside the replicated document.
// The root carries no command.
type SharedNode struct {
	ID          string              `json:"id"`
	ParentID    string              `json:"parentId"`
	ChildIDs    []string            `json:"childIds"`
	Command     *command.Serialized `json:"command,omitempty"`
	UserID      string              `json:"userId"`
	Timestamp   int64               `json:"timestamp"`
	Description string              `json:"description"`
}

// SharedHistory is the plain snapshot of the replicated history tree.
type SharedHistory struct {
	Nodes         map[string]SharedNode `json:"nodes"`
	RootID        string                `json:"rootId"`
	CurrentNodeID string                `json:"currentNodeId"`
}

func seedSharedHistory(doc *automerge.Doc) error {
	rootID := uuid.NewString()
	if err := doc.Path("sharedHistory").Set(map[string]any{}); err != nil {
		return fmt.Errorf("failed to seed shared history: %w", err)
	}
	if err := doc.Path("sharedHistory", "nodes").Set(map[string]any{}); err != nil {
		return fmt.Errorf("failed to seed shared history nodes: %w", err)
	}
	root := map[string]any{
		"id":          rootID,
		"parentId":    "",
		"childIds":    []any{},
		"userId":      "",
		"timestamp":   time.Now().UnixMilli(),
		"description": "Start",
	}
	if err := doc.Path("sharedHistory", "nodes", rootID).Set(root); err != nil {
		return fmt.Errorf("failed to seed shared history root: %w", err)
	}
	if err := doc.Path("sharedHistory", "rootId").Set(rootID); err != nil {
		return fmt.Errorf("failed to set shared history root id: %w", err)
	}
	if err := doc.Path("sharedHistory", "currentNodeId").Set(rootID); err != nil {
		return fmt.Errorf("failed to set shared history current id: %w", err)
	}
	return nil
}

func currentNodeID(doc *automerge.Doc) (string, error) {
	v, err := doc.Path("sharedHistory", "currentNodeId").Get()
	if err != nil {
		return "", fmt.Errorf("failed to read current history node: %w", err)
	}
	if v.Kind() != automerge.KindStr {
		return "", fmt.Errorf("shared history is missing, document not seeded")
	}
	return v.Str(), nil
}

// appendSharedNode mirrors one locally executed command into the shared
// tree: fresh uuid, parent = currentNodeId, registered in the parent's
// childIds, and the current pointer advanced onto it.
func appendSharedNode(doc *automerge.Doc, ser command.Serialized, description, userID string) error {
	parentID, err := currentNodeID(doc)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	node := map[string]any{
		"id":          id,
		"parentId":    parentID,
		"childIds":    []any{},
		"command":     map[string]any{"kind": ser.Kind, "payload": ser.Payload},
		"userId":      userID,
		"timestamp":   time.Now().UnixMilli(),
		"description": description,
	}
	if err := doc.Path("sharedHistory", "nodes", id).Set(node); err != nil {
		return fmt.Errorf("failed to store history node: %w", err)
	}
	cv, err := doc.Path("sharedHistory", "nodes", parentID, "childIds").Get()
	if err != nil || cv.Kind() != automerge.KindList {
		return fmt.Errorf("failed to read parent %q childIds: %w", parentID, err)
	}
	if err := cv.List().Append(id); err != nil {
		return fmt.Errorf("failed to link history node: %w", err)
	}
	if err := doc.Path("sharedHistory", "currentNodeId").Set(id); err != nil {
		return fmt.Errorf("failed to advance history pointer: %w", err)
	}
	return nil
}

// ApplyCommand is the standard collaborative transaction for one locally
// executed command: it splices the command's effect into the curves subtree
// and appends the mirrored history node, in a single commit. Returns the
// change blob for broadcast.
func (d *Document) ApplyCommand(cmd command.Command, description string) ([]byte, error) {
	return d.ExecuteLocalCommand(description, func(doc *automerge.Doc) error {
		if err := applyCommandToCurves(doc, cmd); err != nil {
			return err
		}
		return appendSharedNode(doc, cmd.Serialize(), description, d.userID)
	})
}

// ReconstructCurves replays the deserialized commands on the path from the
// root to the given node against an empty store, yielding the curve snapshot
// for that point in history. Unimplemented command kinds are skipped.
func ReconstructCurves(h SharedHistory, nodeID string) ([]curve.Curve, error) {
	var path []string
	for id := nodeID; ; {
		n, ok := h.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("history node %q is missing", id)
		}
		path = append(path, id)
		if id == h.RootID || n.ParentID == "" {
			break
		}
		id = n.ParentID
	}
	st := curve.NewEmpty()
	for i := len(path) - 1; i >= 0; i-- {
		n := h.Nodes[path[i]]
		if n.Command == nil {
			continue
		}
		cmd, err := command.Deserialize(*n.Command)
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			continue
		}
		cmd.Execute(st)
	}
	return st.Curves(), nil
}

// CanSharedUndo reports whether the shared current node has a parent.
func (d *Document) CanSharedUndo() bool {
	if !d.ready {
		return false
	}
	h, err := d.History()
	if err != nil {
		return false
	}
	n, ok := h.Nodes[h.CurrentNodeID]
	return ok && n.ParentID != ""
}

// CanSharedRedo reports whether the shared current node has children.
func (d *Document) CanSharedRedo() bool {
	if !d.ready {
		return false
	}
	h, err := d.History()
	if err != nil {
		return false
	}
	n, ok := h.Nodes[h.CurrentNodeID]
	return ok && len(n.ChildIDs) > 0
}

// SharedUndo moves the shared history pointer to the parent node and splices
// the reconstructed curve state into the document. Reports whether anything
// happened and returns the change blob for broadcast. The local replica is
// updated through the same diff callbacks a remote change would fire.
func (d *Document) SharedUndo() (bool, []byte, error) {
	return d.moveSharedPointer(func(h SharedHistory, n SharedNode) string {
		return n.ParentID
	}, "Shared undo")
}

// SharedRedo moves the pointer to the first child. Shared mode deliberately
// has no branch choice: childIds[0] always wins.
func (d *Document) SharedRedo() (bool, []byte, error) {
	return d.moveSharedPointer(func(h SharedHistory, n SharedNode) string {
		if len(n.ChildIDs) == 0 {
			return ""
		}
		return n.ChildIDs[0]
	}, "Shared redo")
}

func (d *Document) moveSharedPointer(pick func(SharedHistory, SharedNode) string, description string) (bool, []byte, error) {
	if !d.ready {
		return false, nil, nil
	}
	h, err := d.History()
	if err != nil {
		return false, nil, err
	}
	n, ok := h.Nodes[h.CurrentNodeID]
	if !ok {
		return false, nil, fmt.Errorf("current history node %q is missing", h.CurrentNodeID)
	}
	target := pick(h, n)
	if target == "" {
		return false, nil, nil
	}
	curves, err := ReconstructCurves(h, target)
	if err != nil {
		return false, nil, err
	}
	if err := d.doc.Path("sharedHistory", "currentNodeId").Set(target); err != nil {
		return false, nil, fmt.Errorf("failed to move history pointer: %w", err)
	}
	if err := spliceCurves(d.doc, curves); err != nil {
		return false, nil, err
	}
	if _, err := d.doc.Commit(description); err != nil {
		return false, nil, fmt.Errorf("failed to commit %q: %w", description, err)
	}
	blob := d.doc.SaveIncremental()
	if err := d.diffAndNotify(); err != nil {
		return false, nil, err
	}
	return true, blob, nil
}
