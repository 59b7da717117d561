package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/crypto"
	"github.com/fathima-sithara/support-chat/internal/domain"
	"github.com/fathima-sithara/support-chat/internal/events"
	"github.com/fathima-sithara/support-chat/internal/metrics"
	"github.com/fathima-sithara/support-chat/internal/relay"
	"github.com/fathima-sithara/support-chat/internal/store"
)

var (
	ErrEmptyText     = errors.New("message text required")
	ErrInvalidStatus = errors.New("invalid status")
)

// Service ties the store, field encryption, relay bridge and event stream
// together; handlers stay thin on top of it.
type Service struct {
	store  store.Store
	crypto *crypto.Service
	bridge *relay.Bridge
	events *events.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewService(st store.Store, cs *crypto.Service, bridge *relay.Bridge, pub *events.Publisher, log *zap.Logger) *Service {
	return &Service{
		store:  st,
		crypto: cs,
		bridge: bridge,
		events: pub,
		log:    log,
		now:    time.Now,
	}
}

// SessionView is a session as handed to API callers: the sealed blob never
// leaves the service, userInfo is either absent or already decrypted.
type SessionView struct {
	*domain.Session
	UserInfo *domain.UserInfo `json:"userInfo,omitempty"`
}

func (s *Service) view(sess *domain.Session, includeUserInfo bool) *SessionView {
	v := &SessionView{Session: sess}
	if includeUserInfo && sess.UserInfo != nil {
		v.UserInfo = s.OpenUserInfo(sess.UserInfo)
	}
	sess.UserInfo = nil
	return v
}

func (s *Service) CreateSession(ctx context.Context, sessionID string, info *domain.UserInfo) (*SessionView, error) {
	sealed, err := s.SealUserInfo(info)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.CreateSession(ctx, sessionID, sealed)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()
	return s.view(sess, true), nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string, includeUserInfo bool) (*SessionView, error) {
	sess, err := s.store.GetSession(ctx, sessionID, includeUserInfo)
	if err != nil {
		return nil, err
	}
	return s.view(sess, includeUserInfo), nil
}

func (s *Service) ListSessions(ctx context.Context, includeUserInfo bool) ([]*SessionView, error) {
	sessions, err := s.store.ListSessions(ctx, includeUserInfo)
	if err != nil {
		return nil, err
	}
	out := make([]*SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, s.view(sess, includeUserInfo))
	}
	return out, nil
}

func (s *Service) UpdateStatus(ctx context.Context, sessionID string, status domain.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return s.store.UpdateStatus(ctx, sessionID, status)
}

// AppendMessage sanitizes the text and writes the message; an admin append
// latches adminReplied on the session.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, in store.NewMessage) (*domain.Message, error) {
	in.Text = crypto.SanitizeMessage(in.Text)
	if in.Text == "" {
		return nil, ErrEmptyText
	}
	msg, err := s.store.AppendMessage(ctx, sessionID, in)
	if err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(messageKind(msg)).Inc()
	s.events.PublishMessageCreated(sessionID, msg)
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

func (s *Service) SubscribeMessages(ctx context.Context, sessionID string, fn func([]*domain.Message)) (store.Unsubscribe, error) {
	return s.store.SubscribeMessages(ctx, sessionID, fn)
}

func (s *Service) SubscribeSessions(ctx context.Context, fn func([]*domain.Session)) (store.Unsubscribe, error) {
	return s.store.SubscribeSessions(ctx, fn)
}

// Relay persists the user message, asks the bot endpoint, persists the reply
// and returns both sides of the exchange. On transport failure the apology is
// still written best effort before the error surfaces.
func (s *Service) Relay(ctx context.Context, sessionID, text string) (string, string, error) {
	userMsg, err := s.AppendMessage(ctx, sessionID, store.NewMessage{Text: text})
	if err != nil {
		return "", "", err
	}

	reply, err := s.bridge.Ask(ctx, sessionID, userMsg.Text)
	if err != nil {
		metrics.RelayFailures.Inc()
		if _, serr := s.AppendMessage(ctx, sessionID, store.NewMessage{Text: relay.FallbackReply, IsBot: true}); serr != nil {
			// the original failure still wins; this one is only logged
			s.log.Error("persist fallback reply", zap.String("session_id", sessionID), zap.Error(serr))
		}
		return userMsg.Text, "", err
	}
	if reply == "" {
		reply = relay.FallbackReply
	}

	if _, err := s.AppendMessage(ctx, sessionID, store.NewMessage{Text: reply, IsBot: true}); err != nil {
		return userMsg.Text, reply, err
	}
	return userMsg.Text, reply, nil
}

func messageKind(m *domain.Message) string {
	switch {
	case m.IsAdmin:
		return "admin"
	case m.IsBot:
		return "bot"
	default:
		return "user"
	}
}
