// Package studio runs credit-metered AI generation tools and manages
// the design assets they produce.
package studio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bravozulu-films/bzf/internal/billing"
	"github.com/bravozulu-films/bzf/internal/blob"
	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for studio operations.
var (
	ErrUnavailable      = errors.New("studio: generation is not configured")
	ErrInvalid          = errors.New("studio: invalid request")
	ErrNotFound         = errors.New("studio: not found")
	ErrGenerationFailed = errors.New("studio: generation failed")
)

// Generation statuses.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// GenerateTimeout bounds one call to the generator.
const GenerateTimeout = 90 * time.Second

// settleTimeout bounds the bookkeeping after a generation: the refund
// and the final status update. It runs even when the caller has gone.
const settleTimeout = 10 * time.Second

// Ledger moves the credits a generation costs. *billing.Store
// implements it.
type Ledger interface {
	Spend(ctx context.Context, userID, amount int64, reference, note string) (*billing.Transaction, error)
	Refund(ctx context.Context, reference, note string) (*billing.Transaction, error)
}

// records persists generation rows.
type records interface {
	create(ctx context.Context, g *Generation) (*Generation, error)
	finish(ctx context.Context, id, status, output string, assetID *int64, errText string) (*Generation, error)
}

// Generation records one tool run.
type Generation struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"userId"`
	Tool        string     `json:"tool"`
	Prompt      string     `json:"prompt"`
	ScriptID    *int64     `json:"scriptId"`
	Cost        int64      `json:"cost"`
	Status      string     `json:"status"`
	Output      string     `json:"output"`
	AssetID     *int64     `json:"assetId"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

const generationColumns = `id::text, user_id, tool, prompt, script_id, cost, status, output, asset_id, error, created_at, completed_at`

func scanGeneration(row pgx.Row) (*Generation, error) {
	var g Generation
	if err := row.Scan(&g.ID, &g.UserID, &g.Tool, &g.Prompt, &g.ScriptID, &g.Cost, &g.Status,
		&g.Output, &g.AssetID, &g.Error, &g.CreatedAt, &g.CompletedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// Service runs generations and stores their results.
type Service struct {
	db      *database.DB
	gen     Generator
	ledger  Ledger
	records records
	blobs   *blob.Store
	log     *zap.SugaredLogger
}

// NewService creates a studio Service. A nil gen disables generation;
// design assets keep working.
func NewService(db *database.DB, gen Generator, ledger Ledger, blobs *blob.Store, log *zap.SugaredLogger) *Service {
	return &Service{db: db, gen: gen, ledger: ledger, records: pgRecords{db: db}, blobs: blobs, log: log}
}

// Enabled reports whether a generator is configured.
func (s *Service) Enabled() bool { return s.gen != nil }

// Generate spends the tool's cost, runs it and records the result. If
// the generator fails the credits are refunded and the failed
// generation is returned along with an error wrapping
// ErrGenerationFailed.
func (s *Service) Generate(ctx context.Context, userID int64, req Request) (*Generation, error) {
	tool, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	if s.gen == nil {
		return nil, ErrUnavailable
	}

	var sc *ScriptContext
	if req.ScriptID != nil {
		if sc, err = s.scriptContext(ctx, userID, *req.ScriptID); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	if _, err := s.ledger.Spend(ctx, userID, tool.Cost, id, tool.Name); err != nil {
		return nil, err
	}

	g, err := s.records.create(ctx, &Generation{
		ID: id, UserID: userID, Tool: tool.Code, Prompt: req.Prompt, ScriptID: req.ScriptID, Cost: tool.Cost,
	})
	if err != nil {
		s.refund(ctx, id, "generation could not be recorded")
		return nil, fmt.Errorf("studio: record generation: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	system, prompt := BuildPrompt(tool, req.Prompt, sc)
	if tool.Image {
		err = s.runImage(genCtx, g, prompt)
	} else {
		err = s.runText(genCtx, g, system, prompt)
	}
	if err != nil {
		s.log.Warnw("generation failed", "id", id, "tool", tool.Code, "user", userID, "error", err)
		s.refund(ctx, id, tool.Name+" failed")
		failed, ferr := s.finish(ctx, id, StatusFailed, "", nil, err.Error())
		if ferr != nil {
			s.log.Errorw("record failed generation", "id", id, "error", ferr)
			failed = g
			failed.Status = StatusFailed
			failed.Error = err.Error()
		}
		return failed, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return s.finish(ctx, id, StatusSucceeded, g.Output, g.AssetID, "")
}

// settle detaches ctx from the caller so the ledger and the generation
// row are settled after a disconnect.
func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func (s *Service) runText(ctx context.Context, g *Generation, system, prompt string) error {
	text, err := s.gen.GenerateText(ctx, system, prompt)
	if err != nil {
		return err
	}
	g.Output = text
	return nil
}

func (s *Service) runImage(ctx context.Context, g *Generation, prompt string) error {
	data, mimeType, err := s.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return err
	}
	ref, err := s.blobs.Put(ctx, g.UserID, mimeType, data)
	if err != nil {
		return err
	}
	asset, err := s.insertAsset(ctx, g.UserID, posterTitle(g.Prompt), KindPoster, ref, g.Prompt, &g.ID)
	if err != nil {
		return err
	}
	g.Output = ref.CID
	g.AssetID = &asset.ID
	return nil
}

func (s *Service) finish(ctx context.Context, id, status, output string, assetID *int64, errText string) (*Generation, error) {
	ctx, cancel := settle(ctx)
	defer cancel()
	return s.records.finish(ctx, id, status, output, assetID, errText)
}

func (s *Service) refund(ctx context.Context, reference, note string) {
	ctx, cancel := settle(ctx)
	defer cancel()
	if _, err := s.ledger.Refund(ctx, reference, note); err != nil {
		s.log.Errorw("refund generation", "reference", reference, "error", err)
	}
}

// pgRecords stores generations in Postgres.
type pgRecords struct {
	db *database.DB
}

func (r pgRecords) create(ctx context.Context, g *Generation) (*Generation, error) {
	return scanGeneration(r.db.Pool.QueryRow(ctx,
		`INSERT INTO generations (id, user_id, tool, prompt, script_id, cost)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+generationColumns,
		g.ID, g.UserID, g.Tool, g.Prompt, g.ScriptID, g.Cost))
}

func (r pgRecords) finish(ctx context.Context, id, status, output string, assetID *int64, errText string) (*Generation, error) {
	g, err := scanGeneration(r.db.Pool.QueryRow(ctx,
		`UPDATE generations SET status = $2, output = $3, asset_id = $4, error = $5, completed_at = NOW()
		 WHERE id = $1
		 RETURNING `+generationColumns,
		id, status, output, assetID, errText))
	if err != nil {
		return nil, fmt.Errorf("studio: finish generation %s: %w", id, err)
	}
	return g, nil
}

func (s *Service) scriptContext(ctx context.Context, userID, scriptID int64) (*ScriptContext, error) {
	var sc ScriptContext
	err := s.db.Pool.QueryRow(ctx,
		`SELECT title, logline, genre FROM scripts WHERE id = $1 AND owner_id = $2`,
		scriptID, userID).Scan(&sc.Title, &sc.Logline, &sc.Genre)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: script %d", ErrNotFound, scriptID)
	}
	if err != nil {
		return nil, fmt.Errorf("studio: load script %d: %w", scriptID, err)
	}
	return &sc, nil
}

// Generations lists userID's generations, newest first.
func (s *Service) Generations(ctx context.Context, userID int64, page database.Page) ([]Generation, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("studio: list generations %d: %w", userID, err)
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("studio: list generations scan: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// CountGenerations returns how many successful generations userID has run.
func (s *Service) CountGenerations(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM generations WHERE user_id = $1 AND status = 'succeeded'`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("studio: count generations %d: %w", userID, err)
	}
	return n, nil
}

func posterTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) > 60 {
		return string(r[:60]) + "…"
	}
	return prompt
}
