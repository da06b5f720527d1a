// Package tutorial tracks each member's progress through onboarding.
package tutorial

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for tutorial operations.
var (
	ErrNotFound          = errors.New("tutorial: user not found")
	ErrInvalidTransition = errors.New("tutorial: step is not current")
)

// Steps in order.
const (
	StepWelcome      = "welcome"
	StepProfile      = "profile"
	StepVerification = "verification"
	StepFirstScript  = "first_script"
	StepExploreForum = "explore_forum"
	StepStudio       = "studio"
	StepCompleted    = "completed"
)

// Steps lists the onboarding steps in order.
var Steps = []string{
	StepWelcome,
	StepProfile,
	StepVerification,
	StepFirstScript,
	StepExploreForum,
	StepStudio,
	StepCompleted,
}

func indexOf(step string) int {
	for i, s := range Steps {
		if s == step {
			return i
		}
	}
	return -1
}

// State is a member's position in the tutorial.
type State struct {
	Step      string  `json:"step"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Next      *string `json:"next"`
	Completed bool    `json:"completed"`
}

// StateOf describes step. An unrecognized step is treated as welcome.
func StateOf(step string) State {
	i := indexOf(step)
	if i < 0 {
		i, step = 0, StepWelcome
	}
	st := State{Step: step, Index: i, Total: len(Steps), Completed: step == StepCompleted}
	if i+1 < len(Steps) {
		next := Steps[i+1]
		st.Next = &next
	}
	return st
}

// Advance returns the step after current, provided the client's from
// matches it. Completed has no successor.
func Advance(current, from string) (string, error) {
	if indexOf(current) < 0 {
		current = StepWelcome
	}
	if from != current {
		return "", fmt.Errorf("%w: at %q, not %q", ErrInvalidTransition, current, from)
	}
	i := indexOf(current)
	if i == len(Steps)-1 {
		return "", fmt.Errorf("%w: tutorial already completed", ErrInvalidTransition)
	}
	return Steps[i+1], nil
}

// Store persists tutorial progress on the users row.
type Store struct {
	db *database.DB
}

// NewStore creates a tutorial Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// State returns userID's tutorial state.
func (s *Store) State(ctx context.Context, userID int64) (State, error) {
	var step string
	err := s.db.Pool.QueryRow(ctx, `SELECT tutorial_step FROM users WHERE id = $1`, userID).Scan(&step)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, fmt.Errorf("%w: %d", ErrNotFound, userID)
	}
	if err != nil {
		return State{}, fmt.Errorf("tutorial: state %d: %w", userID, err)
	}
	return StateOf(step), nil
}

// Advance moves userID past from. A stale client whose from is no
// longer the current step gets ErrInvalidTransition.
func (s *Store) Advance(ctx context.Context, userID int64, from string) (State, error) {
	var st State
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT tutorial_step FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrNotFound, userID)
		}
		if err != nil {
			return err
		}
		next, err := Advance(current, from)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET tutorial_step = $2, updated_at = NOW() WHERE id = $1`, userID, next); err != nil {
			return err
		}
		st = StateOf(next)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return State{}, err
		}
		return State{}, fmt.Errorf("tutorial: advance %d: %w", userID, err)
	}
	return st, nil
}

// Skip jumps straight to completed.
func (s *Store) Skip(ctx context.Context, userID int64) (State, error) {
	return s.set(ctx, userID, StepCompleted)
}

// Reset starts the tutorial over.
func (s *Store) Reset(ctx context.Context, userID int64) (State, error) {
	return s.set(ctx, userID, StepWelcome)
}

func (s *Store) set(ctx context.Context, userID int64, step string) (State, error) {
	result, err := s.db.Pool.Exec(ctx,
		`UPDATE users SET tutorial_step = $2, updated_at = NOW() WHERE id = $1`, userID, step)
	if err != nil {
		return State{}, fmt.Errorf("tutorial: set %d to %s: %w", userID, step, err)
	}
	if result.RowsAffected() == 0 {
		return State{}, fmt.Errorf("%w: %d", ErrNotFound, userID)
	}
	return StateOf(step), nil
}
