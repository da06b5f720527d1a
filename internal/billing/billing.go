// Package billing keeps the credit ledger that pays for studio tools.
//
// A member's balance is the sum of their credit_transactions rows. Rows
// are never updated or deleted; a failed spend is reversed by a refund
// row carrying the same reference.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for billing operations.
var (
	ErrInsufficientCredits = errors.New("billing: insufficient credits")
	ErrInvalid             = errors.New("billing: invalid request")
	ErrUnknownPackage      = errors.New("billing: unknown package")
	ErrNotFound            = errors.New("billing: not found")
	ErrAlreadyRefunded     = errors.New("billing: already refunded")
	ErrPaymentDeclined     = errors.New("billing: payment declined")
)

// Ledger entry kinds.
const (
	KindSignupBonus = "signup_bonus"
	KindPurchase    = "purchase"
	KindGrant       = "grant"
	KindSpend       = "spend"
	KindRefund      = "refund"
)

// MaxGrant bounds a single admin grant.
const MaxGrant = 100000

// Package is a purchasable credit bundle.
type Package struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Credits    int64  `json:"credits"`
	PriceCents int64  `json:"priceCents"`
}

// Packages offered for purchase.
var Packages = []Package{
	{Code: "starter", Name: "Starter", Credits: 50, PriceCents: 500},
	{Code: "producer", Name: "Producer", Credits: 150, PriceCents: 1200},
	{Code: "studio", Name: "Studio", Credits: 500, PriceCents: 3500},
}

// FindPackage returns the package with code.
func FindPackage(code string) (Package, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, p := range Packages {
		if p.Code == code {
			return p, nil
		}
	}
	return Package{}, fmt.Errorf("%w: %q", ErrUnknownPackage, code)
}

// CheckSpend reports whether balance covers cost.
func CheckSpend(balance, cost int64) error {
	if cost <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	if balance < cost {
		return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientCredits, balance, cost)
	}
	return nil
}

// Transaction is one ledger row.
type Transaction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Amount    int64     `json:"amount"`
	Kind      string    `json:"kind"`
	Reference string    `json:"reference"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// PaymentProvider charges a member for a package and returns the
// provider's payment reference.
type PaymentProvider interface {
	Charge(ctx context.Context, userID int64, p Package) (string, error)
}

// ManualProvider accepts every charge immediately. It backs deployments
// where payments are reconciled out of band.
type ManualProvider struct{}

// Charge implements PaymentProvider.
func (ManualProvider) Charge(_ context.Context, _ int64, _ Package) (string, error) {
	return "manual:" + uuid.NewString(), nil
}

const txColumns = `id, user_id, amount, kind, reference, note, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	if err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Reference, &t.Note, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Store provides ledger operations backed by PostgreSQL.
type Store struct {
	db       *database.DB
	provider PaymentProvider
}

// NewStore creates a billing Store. A nil provider uses ManualProvider.
func NewStore(db *database.DB, provider PaymentProvider) *Store {
	if provider == nil {
		provider = ManualProvider{}
	}
	return &Store{db: db, provider: provider}
}

// Balance returns userID's current credit balance.
func (s *Store) Balance(ctx context.Context, userID int64) (int64, error) {
	return balance(ctx, s.db.Pool, userID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func balance(ctx context.Context, q querier, userID int64) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint FROM credit_transactions WHERE user_id = $1`,
		userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("billing: balance %d: %w", userID, err)
	}
	return n, nil
}

// Transactions returns userID's ledger, newest first.
func (s *Store) Transactions(ctx context.Context, userID int64, page database.Page) ([]Transaction, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+txColumns+` FROM credit_transactions WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("billing: transactions %d: %w", userID, err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: transactions scan: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Purchase charges userID for the package and credits the account.
func (s *Store) Purchase(ctx context.Context, userID int64, code string) (*Transaction, error) {
	p, err := FindPackage(code)
	if err != nil {
		return nil, err
	}
	ref, err := s.provider.Charge(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	}
	return s.insert(ctx, s.db.Pool, userID, p.Credits, KindPurchase, ref, p.Name+" package")
}

// Grant credits userID on an admin's behalf.
func (s *Store) Grant(ctx context.Context, userID, amount int64, note string) (*Transaction, error) {
	if amount <= 0 || amount > MaxGrant {
		return nil, fmt.Errorf("%w: grant must be between 1 and %d", ErrInvalid, MaxGrant)
	}
	t, err := s.insert(ctx, s.db.Pool, userID, amount, KindGrant, "", strings.TrimSpace(note))
	if database.IsForeignKey(err) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return t, err
}

// Spend debits amount from userID under reference. Concurrent spends for
// the same member serialize on the member's row, so the balance can
// never go negative.
func (s *Store) Spend(ctx context.Context, userID, amount int64, reference, note string) (*Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalid)
	}

	var t *Transaction
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		if err != nil {
			return err
		}

		bal, err := balance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := CheckSpend(bal, amount); err != nil {
			return err
		}

		t, err = s.insert(ctx, tx, userID, -amount, KindSpend, reference, note)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("billing: spend %d for %d: %w", amount, userID, err)
	}
	return t, nil
}

// Refund reverses the spend recorded under reference. A spend can be
// refunded once.
func (s *Store) Refund(ctx context.Context, reference, note string) (*Transaction, error) {
	var t *Transaction
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		spend, err := scanTransaction(tx.QueryRow(ctx,
			`SELECT `+txColumns+` FROM credit_transactions
			 WHERE reference = $1 AND kind = 'spend' ORDER BY id LIMIT 1`, reference))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no spend %q", ErrNotFound, reference)
		}
		if err != nil {
			return err
		}
		t, err = s.insert(ctx, tx, spend.UserID, -spend.Amount, KindRefund, reference, note)
		return err
	})
	switch {
	case database.IsDuplicateKey(err):
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRefunded, reference)
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("billing: refund %q: %w", reference, err)
	}
	return t, nil
}

func (s *Store) insert(ctx context.Context, q querier, userID, amount int64, kind, reference, note string) (*Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx,
		`INSERT INTO credit_transactions (user_id, amount, kind, reference, note)
		 VALUES ($1, $2, $3, $4, $5) RETURNING `+txColumns,
		userID, amount, kind, reference, note))
	if err != nil {
		return nil, fmt.Errorf("billing: record %s: %w", kind, err)
	}
	return t, nil
}
