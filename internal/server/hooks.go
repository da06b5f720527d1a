package server

import (
	"context"
	"fmt"

	"github.com/bravozulu-films/bzf/internal/notify"
)

// Side effects of a successful request. They never fail the request that
// triggered them; errors are logged.

// notify creates and pushes a notification.
func (s *Server) notify(ctx context.Context, userID int64, kind, title, body, link string) {
	if userID == 0 {
		return
	}
	s.notifier.Notify(ctx, notify.Input{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
		Link:   link,
	})
}

// award grants an achievement and announces it when newly earned.
func (s *Server) award(ctx context.Context, userID int64, code string) {
	if userID == 0 {
		return
	}
	added, a, err := s.achievements.Award(ctx, userID, code)
	if err != nil {
		s.log.Errorw("award achievement", "user_id", userID, "code", code, "error", err)
		return
	}
	if !added {
		return
	}
	s.log.Infow("achievement awarded", "user_id", userID, "code", code, "points", a.Points)
	s.notify(ctx, userID, notify.KindAchievement,
		"Achievement unlocked: "+a.Name,
		fmt.Sprintf("%s (+%d points)", a.Description, a.Points),
		"/profile/achievements")
}

// awardOnCount grants code when count reached threshold.
func (s *Server) awardOnCount(ctx context.Context, userID int64, code string, threshold int, count func(context.Context, int64) (int, error)) {
	n, err := count(ctx, userID)
	if err != nil {
		s.log.Errorw("count for achievement", "user_id", userID, "code", code, "error", err)
		return
	}
	if n >= threshold {
		s.award(ctx, userID, code)
	}
}
