// Package document wraps an automerge document holding the replicated state:
// the curves, the per-user presence records, and the shared history tree.
// Change blobs are automerge incremental saves, so applying the same set of
// blobs in any order converges every replica to the same bytes.
package document

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/curvesync/pkg/curve"
	"github.com/astromechza/curvesync/pkg/geom"
)

// PresencePalette is the fixed set of user colors, distinct from the curve
// palette, assigned uniformly at random per user.
var PresencePalette = []string{"#ff6b6b", "#4ecdc4", "#45b7d1", "#96ceb4", "#ffeaa7", "#dfe6e9"}

// User is one collaborator's presence record.
type User struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Color         string      `json:"color"`
	Cursor        *geom.Point `json:"cursor,omitempty"`
	ActiveCurveID string      `json:"activeCurveId,omitempty"`
	LastSeen      int64       `json:"lastSeen"`
}

// Document is the replicated document for one replica. It is single-owner:
// only the coordinator (or the hub's own loop) may call into it.
type Document struct {
	doc    *automerge.Doc
	userID string
	name   string
	color  string
	ready  bool

	lastCurves  []byte
	lastUsers   []byte
	lastHistory []byte

	// Diff-driven callbacks, fired with plain values after a subtree
	// actually changed.
	OnRemoteChange   func(curves []curve.Curve)
	OnPresenceUpdate func(users map[string]User)
	OnHistoryChange  func(h SharedHistory)
}

// New creates an empty, unseeded document for the given local user. The
// document becomes usable after Seed (session owner) or Load (joiner).
func New(userID, name string) *Document {
	doc := automerge.New()
	_ = doc.SetActorID(hex.EncodeToString([]byte(userID)))
	return &Document{
		doc:    doc,
		userID: userID,
		name:   name,
		color:  PresencePalette[rand.Intn(len(PresencePalette))],
	}
}

// UserID returns the local user id.
func (d *Document) UserID() string { return d.userID }

// Ready reports whether the base containers exist, i.e. Seed or Load ran.
func (d *Document) Ready() bool { return d.ready }

// Seed creates the base containers in a single commit. Every replica of a
// session must descend from the same seed so the container objects merge
// rather than conflict.
func (d *Document) Seed() error {
	if d.ready {
		return nil
	}
	if err := d.doc.Path("curves").Set([]any{}); err != nil {
		return fmt.Errorf("failed to seed curves: %w", err)
	}
	if err := d.doc.Path("users").Set(map[string]any{}); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if err := seedSharedHistory(d.doc); err != nil {
		return err
	}
	if _, err := d.doc.Commit("seed"); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	d.ready = true
	return d.refreshSnapshots()
}

// ExecuteLocalCommand records one named transaction and returns the delta
// from the previous revision, or nil if the mutator had no effect.
func (d *Document) ExecuteLocalCommand(description string, mutate func(doc *automerge.Doc) error) ([]byte, error) {
	if !d.ready {
		return nil, nil
	}
	if err := mutate(d.doc); err != nil {
		return nil, err
	}
	if _, err := d.doc.Commit(description); err != nil {
		return nil, fmt.Errorf("failed to commit %q: %w", description, err)
	}
	blob := d.doc.SaveIncremental()
	if err := d.refreshSnapshots(); err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, nil
	}
	return blob, nil
}

// ApplyRemoteChanges merges a peer's delta, then fires the diff-driven
// callbacks for every subtree that changed. A blob that is not automerge
// data is rejected with an error and nothing is applied.
func (d *Document) ApplyRemoteChanges(blob []byte) error {
	// every automerge chunk starts with these magic bytes
	if len(blob) > 0 && !bytes.HasPrefix(blob, []byte{0x85, 0x6f, 0x4a, 0x83}) {
		return fmt.Errorf("failed to apply remote changes: not an automerge change blob")
	}
	if err := d.doc.LoadIncremental(blob); err != nil {
		return fmt.Errorf("failed to apply remote changes: %w", err)
	}
	d.ready = true
	return d.diffAndNotify()
}

// Save serializes the full document state.
func (d *Document) Save() []byte {
	return d.doc.Save()
}

// Load merges a full state blob into this document. Loading is incremental
// so pending local changes survive a reconnect. When skipRebroadcast is
// false the diff callbacks fire for whatever the load changed.
func (d *Document) Load(blob []byte, skipRebroadcast bool) error {
	if err := d.doc.LoadIncremental(blob); err != nil {
		return fmt.Errorf("failed to load document state: %w", err)
	}
	d.ready = true
	if skipRebroadcast {
		return d.refreshSnapshots()
	}
	return d.diffAndNotify()
}

// UpdatePresence upserts the local user's presence record and returns the
// delta, or nil before the document is ready. A non-empty name renames the
// local user; "" keeps the current name.
func (d *Document) UpdatePresence(cursor *geom.Point, activeCurveID, name string) ([]byte, error) {
	if !d.ready {
		return nil, nil
	}
	if name != "" {
		d.name = name
	}
	record := map[string]any{
		"id":       d.userID,
		"name":     d.name,
		"color":    d.color,
		"lastSeen": time.Now().UnixMilli(),
	}
	if cursor != nil {
		record["cursor"] = map[string]any{"x": cursor.X, "y": cursor.Y}
	}
	if activeCurveID != "" {
		record["activeCurveId"] = activeCurveID
	}
	if err := d.doc.Path("users", d.userID).Set(record); err != nil {
		return nil, fmt.Errorf("failed to update presence: %w", err)
	}
	if _, err := d.doc.Commit("presence"); err != nil {
		return nil, fmt.Errorf("failed to commit presence: %w", err)
	}
	blob := d.doc.SaveIncremental()
	if err := d.refreshSnapshots(); err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, nil
	}
	return blob, nil
}

// refreshSnapshots re-caches the serialized subtrees without firing
// callbacks. Used after local transactions so only remote changes notify.
func (d *Document) refreshSnapshots() error {
	var err error
	if d.lastCurves, err = d.exportJSON("curves"); err != nil {
		return err
	}
	if d.lastUsers, err = d.exportJSON("users"); err != nil {
		return err
	}
	if d.lastHistory, err = d.exportJSON("sharedHistory"); err != nil {
		return err
	}
	return nil
}

func (d *Document) diffAndNotify() error {
	curvesJSON, err := d.exportJSON("curves")
	if err != nil {
		return err
	}
	usersJSON, err := d.exportJSON("users")
	if err != nil {
		return err
	}
	historyJSON, err := d.exportJSON("sharedHistory")
	if err != nil {
		return err
	}

	curvesChanged := !bytes.Equal(curvesJSON, d.lastCurves)
	usersChanged := !bytes.Equal(usersJSON, d.lastUsers)
	historyChanged := !bytes.Equal(historyJSON, d.lastHistory)
	d.lastCurves, d.lastUsers, d.lastHistory = curvesJSON, usersJSON, historyJSON

	if curvesChanged && d.OnRemoteChange != nil {
		curves, err := d.Curves()
		if err != nil {
			return err
		}
		d.OnRemoteChange(curves)
	}
	if usersChanged && d.OnPresenceUpdate != nil {
		users, err := d.Users()
		if err != nil {
			return err
		}
		d.OnPresenceUpdate(users)
	}
	if historyChanged && d.OnHistoryChange != nil {
		h, err := d.History()
		if err != nil {
			return err
		}
		d.OnHistoryChange(h)
	}
	return nil
}
