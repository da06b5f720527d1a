package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bravozulu-films/bzf/internal/billing"
)

// memLedger is an in-memory Ledger with one member's balance.
type memLedger struct {
	mu        sync.Mutex
	balance   int64
	spends    map[string]int64
	refunded  map[string]bool
	refundErr []error // ctx.Err() seen by each Refund
}

func newMemLedger(balance int64) *memLedger {
	return &memLedger{balance: balance, spends: map[string]int64{}, refunded: map[string]bool{}}
}

func (l *memLedger) Spend(ctx context.Context, userID, amount int64, reference, note string) (*billing.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := billing.CheckSpend(l.balance, amount); err != nil {
		return nil, err
	}
	l.balance -= amount
	l.spends[reference] = amount
	return &billing.Transaction{UserID: userID, Amount: -amount, Kind: billing.KindSpend, Reference: reference, Note: note}, nil
}

func (l *memLedger) Refund(ctx context.Context, reference, note string) (*billing.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refundErr = append(l.refundErr, ctx.Err())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	amount, ok := l.spends[reference]
	if !ok {
		return nil, fmt.Errorf("%w: no spend %q", billing.ErrNotFound, reference)
	}
	if l.refunded[reference] {
		return nil, fmt.Errorf("%w: %q", billing.ErrAlreadyRefunded, reference)
	}
	l.refunded[reference] = true
	l.balance += amount
	return &billing.Transaction{Amount: amount, Kind: billing.KindRefund, Reference: reference, Note: note}, nil
}

// memRecords keeps generation rows in memory.
type memRecords struct {
	mu        sync.Mutex
	rows      map[string]*Generation
	createErr error
	finishErr []error // ctx.Err() seen by each finish
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[string]*Generation{}}
}

func (r *memRecords) create(ctx context.Context, g *Generation) (*Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	row := *g
	row.Status = StatusPending
	r.rows[g.ID] = &row
	out := row
	return &out, nil
}

func (r *memRecords) finish(ctx context.Context, id, status, output string, assetID *int64, errText string) (*Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishErr = append(r.finishErr, ctx.Err())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.Status, row.Output, row.AssetID, row.Error = status, output, assetID, errText
	out := *row
	return &out, nil
}

// textGenerator answers text prompts with fn.
type textGenerator struct {
	calls int
	fn    func(ctx context.Context) (string, error)
}

func (g *textGenerator) GenerateText(ctx context.Context, _, _ string) (string, error) {
	g.calls++
	return g.fn(ctx)
}

func (g *textGenerator) GenerateImage(context.Context, string) ([]byte, string, error) {
	return nil, "", errors.New("no images")
}

func newTestService(gen Generator, ledger Ledger, recs *memRecords) *Service {
	return &Service{gen: gen, ledger: ledger, records: recs, log: zap.NewNop().Sugar()}
}

func TestGenerateSpendsAndRecords(t *testing.T) {
	ledger := newMemLedger(20)
	recs := newMemRecords()
	gen := &textGenerator{fn: func(context.Context) (string, error) {
		return "A medic comes home to a war she never left.", nil
	}}
	s := newTestService(gen, ledger, recs)

	g, err := s.Generate(context.Background(), 7, Request{Tool: ToolSynopsis, Prompt: "medic returns home"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, g.Status)
	assert.Equal(t, "A medic comes home to a war she never left.", g.Output)
	assert.EqualValues(t, 5, g.Cost)
	assert.EqualValues(t, 15, ledger.balance)
	assert.Empty(t, ledger.refunded)
	assert.Equal(t, StatusSucceeded, recs.rows[g.ID].Status)
}

func TestGenerateRefundsOnFailure(t *testing.T) {
	ledger := newMemLedger(20)
	recs := newMemRecords()
	gen := &textGenerator{fn: func(context.Context) (string, error) {
		return "", errors.New("model overloaded")
	}}
	s := newTestService(gen, ledger, recs)

	g, err := s.Generate(context.Background(), 7, Request{Tool: ToolCoverage, Prompt: "coverage please"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	require.NotNil(t, g)
	assert.Equal(t, StatusFailed, g.Status)
	assert.Contains(t, g.Error, "model overloaded")
	assert.EqualValues(t, 20, ledger.balance, "spend is reversed")
	assert.True(t, ledger.refunded[g.ID])

	_, err = ledger.Refund(context.Background(), g.ID, "again")
	assert.ErrorIs(t, err, billing.ErrAlreadyRefunded)
}

func TestGenerateSettlesAfterCallerDisconnects(t *testing.T) {
	ledger := newMemLedger(20)
	recs := newMemRecords()
	ctx, disconnect := context.WithCancel(context.Background())
	defer disconnect()
	gen := &textGenerator{fn: func(genCtx context.Context) (string, error) {
		disconnect()
		<-genCtx.Done()
		return "", genCtx.Err()
	}}
	s := newTestService(gen, ledger, recs)

	g, err := s.Generate(ctx, 7, Request{Tool: ToolLogline, Prompt: "x"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorContains(t, err, context.Canceled.Error())
	require.NotNil(t, g)

	assert.Equal(t, []error{nil}, ledger.refundErr, "refund runs on a live context")
	assert.Equal(t, []error{nil}, recs.finishErr, "status update runs on a live context")
	assert.EqualValues(t, 20, ledger.balance)
	assert.True(t, ledger.refunded[g.ID])
	assert.Equal(t, StatusFailed, recs.rows[g.ID].Status)
}

func TestGenerateInsufficientCredits(t *testing.T) {
	ledger := newMemLedger(3)
	recs := newMemRecords()
	gen := &textGenerator{fn: func(context.Context) (string, error) { return "never", nil }}
	s := newTestService(gen, ledger, recs)

	_, err := s.Generate(context.Background(), 7, Request{Tool: ToolCoverage, Prompt: "x"})
	assert.ErrorIs(t, err, billing.ErrInsufficientCredits)
	assert.Zero(t, gen.calls)
	assert.Empty(t, recs.rows)
	assert.EqualValues(t, 3, ledger.balance)
}

func TestGenerateRefundsWhenRecordFails(t *testing.T) {
	ledger := newMemLedger(10)
	recs := newMemRecords()
	recs.createErr = errors.New("connection reset")
	gen := &textGenerator{fn: func(context.Context) (string, error) { return "never", nil }}
	s := newTestService(gen, ledger, recs)

	_, err := s.Generate(context.Background(), 7, Request{Tool: ToolLogline, Prompt: "x"})
	assert.ErrorContains(t, err, "connection reset")
	assert.Zero(t, gen.calls)
	assert.EqualValues(t, 10, ledger.balance)
	assert.Len(t, ledger.refunded, 1)
}
