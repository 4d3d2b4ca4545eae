// Package session implements the client side of the hub protocol: the wire
// schema and a reconnecting websocket client.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/astromechza/curvesync/pkg/document"
	"github.com/astromechza/curvesync/pkg/geom"
)

// Message types exchanged between clients and the hub.
const (
	TypeSyncRequest  = "sync-request"
	TypeSyncResponse = "sync-response"
	TypeChange       = "change"
	TypePresence     = "presence"
)

// ByteSlice is a byte sequence that marshals to a JSON array of integers in
// [0,255] rather than base64, matching the wire protocol.
type ByteSlice []byte

func (b ByteSlice) MarshalJSON() ([]byte, error) {
	ints := make([]uint16, len(b))
	for i, v := range b {
		ints[i] = uint16(v)
	}
	return json.Marshal(ints)
}

func (b *ByteSlice) UnmarshalJSON(raw []byte) error {
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return fmt.Errorf("failed to decode byte array: %w", err)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte array element %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Presence is the ephemeral presence payload fanned out by the hub without
// interpretation.
type Presence struct {
	Type          string         `json:"type"`
	UserID        string         `json:"userId"`
	Cursor        *geom.Point    `json:"cursor,omitempty"`
	ActiveCurveID string         `json:"activeCurveId,omitempty"`
	User          *document.User `json:"user,omitempty"`
}

// Message is the single envelope for every protocol exchange.
type Message struct {
	Type          string    `json:"type"`
	SenderID      string    `json:"senderId,omitempty"`
	SessionID     string    `json:"sessionId,omitempty"`
	DocumentState ByteSlice `json:"documentState,omitempty"`
	IsFirstUser   bool      `json:"isFirstUser,omitempty"`
	Changes       ByteSlice `json:"changes,omitempty"`
	Presence      *Presence `json:"presence,omitempty"`
}
