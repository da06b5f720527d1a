// Package achievement awards achievements and derives rank tiers from
// the points they carry.
package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
)

// ErrUnknown is returned for a code that is not in the catalog.
var ErrUnknown = errors.New("achievement: unknown code")

// Achievement codes.
const (
	FirstScript     = "first_script"
	FirstProject    = "first_project"
	FirstPost       = "first_post"
	Verified        = "verified"
	FirstFriend     = "first_friend"
	FestivalEntry   = "festival_entry"
	ProlificWriter  = "prolific_writer"
	FirstGeneration = "first_generation"
)

// ProlificThreshold is how many scripts earn ProlificWriter.
const ProlificThreshold = 10

// Achievement is a catalog entry.
type Achievement struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// Catalog lists every achievement in display order.
var Catalog = []Achievement{
	{FirstScript, "First Draft", "Saved your first script", 25},
	{FirstProject, "Green Light", "Started your first project", 25},
	{FirstPost, "Sound Off", "Opened your first forum thread", 10},
	{Verified, "Bravo Zulu", "Military service verified", 100},
	{FirstFriend, "Battle Buddy", "Made your first friend", 10},
	{FestivalEntry, "Festival Circuit", "Submitted a project to a festival", 50},
	{ProlificWriter, "Prolific Writer", "Saved ten scripts", 150},
	{FirstGeneration, "Studio Time", "Ran your first studio generation", 15},
}

// Lookup returns the catalog entry for code.
func Lookup(code string) (Achievement, bool) {
	for _, a := range Catalog {
		if a.Code == code {
			return a, true
		}
	}
	return Achievement{}, false
}

// Tier is a rank reached at MinPoints.
type Tier struct {
	Name      string `json:"name"`
	MinPoints int    `json:"minPoints"`
}

// Tiers in ascending order.
var Tiers = []Tier{
	{"Recruit", 0},
	{"Private", 50},
	{"Corporal", 150},
	{"Sergeant", 300},
	{"Lieutenant", 600},
	{"Captain", 1000},
	{"Major", 1500},
	{"Colonel", 2500},
	{"General", 4000},
}

// Progress describes where a member stands in the tier ladder. Next is
// nil at the top tier.
type Progress struct {
	Points       int   `json:"points"`
	Tier         Tier  `json:"tier"`
	Next         *Tier `json:"nextTier"`
	PointsToNext int   `json:"pointsToNext"`
}

// ProgressFor computes the tier for points. Negative points count as zero.
func ProgressFor(points int) Progress {
	if points < 0 {
		points = 0
	}
	p := Progress{Points: points, Tier: Tiers[0]}
	for i, t := range Tiers {
		if points < t.MinPoints {
			next := Tiers[i]
			p.Next = &next
			p.PointsToNext = next.MinPoints - points
			break
		}
		p.Tier = t
	}
	return p
}

// Awarded is an achievement a member holds.
type Awarded struct {
	Achievement
	AwardedAt time.Time `json:"awardedAt"`
}

// Store records awarded achievements in PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates an achievement Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Award gives code to userID and adds its points. Awarding twice is a
// no-op; the result reports whether this call awarded it.
func (s *Store) Award(ctx context.Context, userID int64, code string) (bool, Achievement, error) {
	a, ok := Lookup(code)
	if !ok {
		return false, a, fmt.Errorf("%w: %q", ErrUnknown, code)
	}

	var awarded bool
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`INSERT INTO user_achievements (user_id, code) VALUES ($1, $2)
			 ON CONFLICT (user_id, code) DO NOTHING`, userID, code)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		awarded = true
		_, err = tx.Exec(ctx,
			`UPDATE users SET points = points + $2, updated_at = NOW() WHERE id = $1`, userID, a.Points)
		return err
	})
	if err != nil {
		return false, a, fmt.Errorf("achievement: award %q to %d: %w", code, userID, err)
	}
	return awarded, a, nil
}

// List returns userID's achievements in catalog order.
func (s *Store) List(ctx context.Context, userID int64) ([]Awarded, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT code, awarded_at FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("achievement: list %d: %w", userID, err)
	}
	defer rows.Close()

	held := make(map[string]time.Time)
	for rows.Next() {
		var (
			code string
			at   time.Time
		)
		if err := rows.Scan(&code, &at); err != nil {
			return nil, fmt.Errorf("achievement: list scan: %w", err)
		}
		held[code] = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return inCatalogOrder(held), nil
}

// Points returns userID's point total.
func (s *Store) Points(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.Pool.QueryRow(ctx, `SELECT points FROM users WHERE id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("achievement: points %d: %w", userID, err)
	}
	return n, nil
}

func inCatalogOrder(held map[string]time.Time) []Awarded {
	out := []Awarded{}
	for _, a := range Catalog {
		if at, ok := held[a.Code]; ok {
			out = append(out, Awarded{Achievement: a, AwardedAt: at})
		}
	}
	return out
}
