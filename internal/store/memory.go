package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fathima-sithara/support-chat/internal/domain"
)

// Memory keeps everything in process memory. It backs the dev configuration
// and the test suite; semantics mirror the Mongo store.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	ids      *domain.PushIDGenerator
	sessions map[string]*domain.Session
	messages map[string][]*domain.Message

	nextSub int
	msgSubs map[string]map[int]func([]*domain.Message)
	sesSubs map[int]func([]*domain.Session)

	// test hook: next lastActivity bump fails with this error while the
	// message write has already landed, mimicking the two-write gap
	failBump error
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		now:      now,
		ids:      domain.NewPushIDGenerator(now),
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]*domain.Message),
		msgSubs:  make(map[string]map[int]func([]*domain.Message)),
		sesSubs:  make(map[int]func([]*domain.Session)),
	}
}

func (m *Memory) CreateSession(_ context.Context, sessionID string, info *domain.SealedUserInfo) (*domain.Session, error) {
	m.mu.Lock()
	now := m.now().UnixMilli()
	s := &domain.Session{
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActivity: now,
		Status:       domain.StatusActive,
		UserInfo:     info,
	}
	m.sessions[sessionID] = s
	m.messages[sessionID] = nil
	out := s.Clone()
	m.mu.Unlock()

	m.notifySessions()
	m.notifyMessages(sessionID)
	return out, nil
}

func (m *Memory) GetSession(_ context.Context, sessionID string, includeUserInfo bool) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.Clone()
	if !includeUserInfo {
		out.UserInfo = nil
	}
	return out, nil
}

func (m *Memory) ListSessions(_ context.Context, includeUserInfo bool) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotSessions(includeUserInfo), nil
}

// snapshotSessions must be called with the lock held.
func (m *Memory) snapshotSessions(includeUserInfo bool) []*domain.Session {
	out := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := s.Clone()
		if !includeUserInfo {
			cp.UserInfo = nil
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity != out[j].LastActivity {
			return out[i].LastActivity > out[j].LastActivity
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

func (m *Memory) UpdateStatus(_ context.Context, sessionID string, status domain.Status) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	s.Status = status
	s.LastActivity = m.now().UnixMilli()
	m.mu.Unlock()

	m.notifySessions()
	return nil
}

func (m *Memory) AppendMessage(_ context.Context, sessionID string, msg NewMessage) (*domain.Message, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	now := m.now()
	ts := nextTimestamp(now.UnixMilli(), s.LastActivity)

	rec := &domain.Message{
		ID:        m.ids.NextID(),
		SessionID: sessionID,
		Text:      msg.Text,
		IsBot:     msg.IsBot,
		IsAdmin:   msg.IsAdmin,
		AdminID:   msg.AdminID,
		Timestamp: ts,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	m.messages[sessionID] = append(m.messages[sessionID], rec)

	if err := m.failBump; err != nil {
		m.failBump = nil
		out := rec.Clone()
		m.mu.Unlock()
		m.notifyMessages(sessionID)
		return out, err
	}

	s.LastActivity = ts
	if msg.IsAdmin {
		s.AdminReplied = true
	}
	out := rec.Clone()
	m.mu.Unlock()

	m.notifyMessages(sessionID)
	m.notifySessions()
	return out, nil
}

func (m *Memory) ListMessages(_ context.Context, sessionID string) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	return m.snapshotMessages(sessionID), nil
}

// snapshotMessages must be called with the lock held.
func (m *Memory) snapshotMessages(sessionID string) []*domain.Message {
	msgs := m.messages[sessionID]
	out := make([]*domain.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) SubscribeMessages(_ context.Context, sessionID string, fn func([]*domain.Message)) (Unsubscribe, error) {
	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	id := m.nextSub
	m.nextSub++
	if m.msgSubs[sessionID] == nil {
		m.msgSubs[sessionID] = make(map[int]func([]*domain.Message))
	}
	m.msgSubs[sessionID][id] = fn
	initial := m.snapshotMessages(sessionID)
	m.mu.Unlock()

	fn(initial)
	return func() {
		m.mu.Lock()
		delete(m.msgSubs[sessionID], id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) SubscribeSessions(_ context.Context, fn func([]*domain.Session)) (Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.sesSubs[id] = fn
	initial := m.snapshotSessions(false)
	m.mu.Unlock()

	fn(initial)
	return func() {
		m.mu.Lock()
		delete(m.sesSubs, id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) notifyMessages(sessionID string) {
	m.mu.Lock()
	subs := make([]func([]*domain.Message), 0, len(m.msgSubs[sessionID]))
	for _, fn := range m.msgSubs[sessionID] {
		subs = append(subs, fn)
	}
	snapshot := m.snapshotMessages(sessionID)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func (m *Memory) notifySessions() {
	m.mu.Lock()
	subs := make([]func([]*domain.Session), 0, len(m.sesSubs))
	for _, fn := range m.sesSubs {
		subs = append(subs, fn)
	}
	snapshot := m.snapshotSessions(false)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
