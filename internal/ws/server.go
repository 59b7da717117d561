package ws

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/domain"
	"github.com/fathima-sithara/support-chat/internal/store"
)

// Streamer serves push-driven realtime views: every change delivers the full
// ordered snapshot, never a diff, so clients stay correct across reconnects.
type Streamer struct {
	store store.Store
	log   *zap.Logger
}

func NewStreamer(st store.Store, log *zap.Logger) *Streamer {
	return &Streamer{store: st, log: log}
}

// UpgradeRequired rejects plain HTTP requests on websocket routes.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// MessageStream pushes the message snapshot of one session.
func (s *Streamer) MessageStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sessionID := conn.Params("sessionId")

		snapshots := make(chan []*domain.Message, 1)
		unsub, err := s.store.SubscribeMessages(context.Background(), sessionID, func(msgs []*domain.Message) {
			stage(snapshots, msgs)
		})
		if err != nil {
			_ = conn.Close()
			return
		}
		defer unsub()

		done := readUntilClosed(conn)
		for {
			select {
			case msgs := <-snapshots:
				if err := conn.WriteJSON(fiber.Map{"sessionId": sessionID, "messages": msgs}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}

// SessionStream pushes the full session list (user info stripped) for the
// admin console.
func (s *Streamer) SessionStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		snapshots := make(chan []*domain.Session, 1)
		unsub, err := s.store.SubscribeSessions(context.Background(), func(sessions []*domain.Session) {
			stage(snapshots, sessions)
		})
		if err != nil {
			_ = conn.Close()
			return
		}
		defer unsub()

		done := readUntilClosed(conn)
		for {
			select {
			case sessions := <-snapshots:
				if err := conn.WriteJSON(fiber.Map{"sessions": sessions}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}

// stage keeps only the latest snapshot when the writer lags; consumers are
// idempotent against full snapshots, so skipped intermediates are harmless.
func stage[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}
