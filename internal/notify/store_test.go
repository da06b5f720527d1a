package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravozulu-films/bzf/internal/database"
	"github.com/bravozulu-films/bzf/internal/database/dbtest"
)

func TestMarkReadIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	member := dbtest.Member(t, db)

	n, err := s.Create(ctx, Input{UserID: member, Kind: KindSystem, Title: "Welcome aboard"})
	require.NoError(t, err)
	assert.False(t, n.Read())

	first, err := s.MarkRead(ctx, member, n.ID)
	require.NoError(t, err)
	require.True(t, first.Read())

	second, err := s.MarkRead(ctx, member, n.ID)
	require.NoError(t, err)
	assert.True(t, second.ReadAt.Equal(*first.ReadAt), "read time is kept")

	count, err := s.UnreadCount(ctx, member)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.MarkRead(ctx, member+1_000_000, n.ID)
	assert.ErrorIs(t, err, ErrNotFound, "other members cannot mark it")

	changed, err := s.MarkAllRead(ctx, member)
	require.NoError(t, err)
	assert.Zero(t, changed)

	list, err := s.List(ctx, member, true, database.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
