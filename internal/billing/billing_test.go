package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bravozulu-films/bzf/internal/database/dbtest"
)

func TestCheckSpend(t *testing.T) {
	assert.NoError(t, CheckSpend(10, 10))
	assert.NoError(t, CheckSpend(25, 2))

	err := CheckSpend(9, 10)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Contains(t, err.Error(), "balance 9, need 10")

	assert.ErrorIs(t, CheckSpend(0, 1), ErrInsufficientCredits)
	assert.ErrorIs(t, CheckSpend(100, 0), ErrInvalid)
	assert.ErrorIs(t, CheckSpend(100, -3), ErrInvalid)
}

func TestFindPackage(t *testing.T) {
	p, err := FindPackage(" Producer ")
	require.NoError(t, err)
	assert.EqualValues(t, 150, p.Credits)
	assert.EqualValues(t, 1200, p.PriceCents)

	_, err = FindPackage("enterprise")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestPackagesPriced(t *testing.T) {
	require.Len(t, Packages, 3)
	for _, p := range Packages {
		assert.Positive(t, p.Credits, p.Code)
		assert.Positive(t, p.PriceCents, p.Code)
	}
}

func TestManualProviderReference(t *testing.T) {
	ref, err := ManualProvider{}.Charge(context.Background(), 1, Packages[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "manual:"))

	other, err := ManualProvider{}.Charge(context.Background(), 1, Packages[0])
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}

func TestValidationBeforeDatabase(t *testing.T) {
	s := NewStore(nil, nil)
	ctx := context.Background()

	_, err := s.Spend(ctx, 1, 0, "ref", "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.Spend(ctx, 1, 5, "", "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.Grant(ctx, 1, MaxGrant+1, "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.Purchase(ctx, 1, "platinum")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestSpendAndRefundLedger(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db, nil)
	ctx := context.Background()
	member := dbtest.Member(t, db)
	ref := fmt.Sprintf("gen-%d", member)

	_, err := s.Grant(ctx, member, 10, "seed")
	require.NoError(t, err)

	_, err = s.Spend(ctx, member, 11, ref+"-over", "coverage")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	spend, err := s.Spend(ctx, member, 4, ref, "character")
	require.NoError(t, err)
	assert.EqualValues(t, -4, spend.Amount)

	balance, err := s.Balance(ctx, member)
	require.NoError(t, err)
	assert.EqualValues(t, 6, balance)

	refund, err := s.Refund(ctx, ref, "character failed")
	require.NoError(t, err)
	assert.EqualValues(t, 4, refund.Amount)

	_, err = s.Refund(ctx, ref, "character failed")
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	_, err = s.Refund(ctx, ref+"-missing", "nothing spent")
	assert.ErrorIs(t, err, ErrNotFound)

	balance, err = s.Balance(ctx, member)
	require.NoError(t, err)
	assert.EqualValues(t, 10, balance)
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db, nil)
	ctx := context.Background()
	member := dbtest.Member(t, db)

	_, err := s.Grant(ctx, member, 10, "seed")
	require.NoError(t, err)

	var g errgroup.Group
	var mu sync.Mutex
	ok := 0
	for i := range 5 {
		g.Go(func() error {
			_, err := s.Spend(ctx, member, 4, fmt.Sprintf("gen-race-%d-%d", member, i), "poster")
			if errors.Is(err, ErrInsufficientCredits) {
				return nil
			}
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 2, ok)

	balance, err := s.Balance(ctx, member)
	require.NoError(t, err)
	assert.EqualValues(t, 2, balance)
}
