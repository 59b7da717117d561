package store

import (
	"context"
	"errors"

	"github.com/fathima-sithara/support-chat/internal/domain"
)

var ErrNotFound = errors.New("session not found")

// NewMessage carries the caller-supplied fields of an append; ids and
// timestamps are assigned by the store.
type NewMessage struct {
	Text    string
	IsBot   bool
	IsAdmin bool
	AdminID string
}

// Unsubscribe cancels a subscription. Dropping it without calling leaks the
// listener for the process lifetime.
type Unsubscribe func()

// nextTimestamp picks the append timestamp: wall clock, bumped past the
// session's lastActivity so same-millisecond appends keep per-session ordering
// and the activity clock strictly increasing.
func nextTimestamp(nowMs, lastActivity int64) int64 {
	if nowMs <= lastActivity {
		return lastActivity + 1
	}
	return nowMs
}

// Store is the session/message data layer over chatSessions/{sessionId}.
//
// Message append and the lastActivity bump are two writes, not one
// transaction: the bump can fail with the message already persisted, and
// callers must tolerate that partial state.
type Store interface {
	// CreateSession writes the session record. A repeated id overwrites the
	// prior record wholesale, messages included; there is no merge.
	CreateSession(ctx context.Context, sessionID string, info *domain.SealedUserInfo) (*domain.Session, error)

	// GetSession strips the userInfo field entirely (not masked) unless
	// includeUserInfo is set.
	GetSession(ctx context.Context, sessionID string, includeUserInfo bool) (*domain.Session, error)

	// ListSessions returns all sessions ordered by lastActivity descending,
	// with the same stripping rule.
	ListSessions(ctx context.Context, includeUserInfo bool) ([]*domain.Session, error)

	// UpdateStatus sets status and lastActivity together.
	UpdateStatus(ctx context.Context, sessionID string, status domain.Status) error

	// AppendMessage assigns a push key and server timestamp, bumps
	// lastActivity, and latches adminReplied when the message is an admin
	// reply. The latch is one-way.
	AppendMessage(ctx context.Context, sessionID string, msg NewMessage) (*domain.Message, error)

	// ListMessages returns the session's messages ordered by timestamp
	// ascending.
	ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// SubscribeMessages delivers the full ordered message snapshot once on
	// attach and again on every change. Consumers must be idempotent against
	// repeated snapshots.
	SubscribeMessages(ctx context.Context, sessionID string, fn func([]*domain.Message)) (Unsubscribe, error)

	// SubscribeSessions delivers the full session list (userInfo stripped) on
	// attach and on every session mutation.
	SubscribeSessions(ctx context.Context, fn func([]*domain.Session)) (Unsubscribe, error)
}
