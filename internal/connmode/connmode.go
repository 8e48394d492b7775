// Package connmode classifies users as UI-attached or backend-only from
// their heartbeat age: UI mode drives live chunk streaming, backend mode
// only persists to the transcript store for replay on reconnect.
package connmode

import (
	"context"
	"time"

	"github.com/kabsikabs/pinnokio/internal/store"
)

// Mode is the classification a callback or user-turn continuation uses to
// decide whether to stream chunks over WS or persist silently.
type Mode string

const (
	ModeUI      Mode = "ui"
	ModeBackend Mode = "backend"
)

// FreshnessWindow is the heartbeat age under which a user_id is
// considered actively connected. The comparison is strict: a heartbeat
// exactly this old counts as detached.
const FreshnessWindow = 300 * time.Second

// Oracle classifies a user_id's current connection mode from its most
// recent heartbeat.
type Oracle struct {
	ephemeral store.EphemeralStore
	now       func() time.Time
}

func NewOracle(ephemeral store.EphemeralStore) *Oracle {
	return &Oracle{ephemeral: ephemeral, now: time.Now}
}

// Classify returns ModeUI if userID has a heartbeat younger than
// FreshnessWindow, ModeBackend otherwise (absent heartbeat included).
func (o *Oracle) Classify(ctx context.Context, userID string) Mode {
	hb, ok := o.ephemeral.GetHeartbeat(ctx, userID)
	if !ok {
		return ModeBackend
	}
	if o.now().Sub(hb.LastHeartbeat) < FreshnessWindow {
		return ModeUI
	}
	return ModeBackend
}

// RecordHeartbeat refreshes a user_id's heartbeat, called on every auth,
// chat and dashboard WS message.
func (o *Oracle) RecordHeartbeat(ctx context.Context, userID string) error {
	return o.ephemeral.SetHeartbeat(ctx, userID)
}
