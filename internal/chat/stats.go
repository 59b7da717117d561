package chat

import (
	"context"
	"time"

	"github.com/fathima-sithara/support-chat/internal/domain"
)

// Stats is the admin dashboard aggregate.
type Stats struct {
	TotalSessions        int `json:"totalSessions"`
	ActiveSessions       int `json:"activeSessions"`
	ClosedSessions       int `json:"closedSessions"`
	PendingSessions      int `json:"pendingSessions"`
	AdminRepliedSessions int `json:"adminRepliedSessions"`
	TodaySessions        int `json:"todaySessions"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	sessions, err := s.store.ListSessions(ctx, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ny, nm, nd := now.Date()

	st := &Stats{TotalSessions: len(sessions)}
	for _, sess := range sessions {
		switch sess.Status {
		case domain.StatusActive:
			st.ActiveSessions++
		case domain.StatusClosed:
			st.ClosedSessions++
		case domain.StatusPending:
			st.PendingSessions++
		}
		if sess.AdminReplied {
			st.AdminRepliedSessions++
		}
		cy, cm, cd := time.UnixMilli(sess.CreatedAt).In(now.Location()).Date()
		if cy == ny && cm == nm && cd == nd {
			st.TodaySessions++
		}
	}
	return st, nil
}
