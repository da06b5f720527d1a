package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	dup := fmt.Errorf("user: create: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	fk := &pgconn.PgError{Code: "23503"}
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, IsDuplicateKey(dup))
	assert.Equal(t, "users_email_key", ConstraintName(dup))
	assert.False(t, IsDuplicateKey(fk))
	assert.True(t, IsForeignKey(fk))
	assert.True(t, IsCheckViolation(check))

	plain := errors.New("duplicate key value violates unique constraint")
	assert.False(t, IsDuplicateKey(plain))
	assert.Empty(t, ConstraintName(plain))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxLimit, Offset: 10}, Page{Limit: 1000, Offset: 10}.Normalize())
	assert.Equal(t, Page{Limit: 5}, Page{Limit: 5, Offset: -3}.Normalize())
}

func TestSchemaCoversEveryTable(t *testing.T) {
	for _, table := range []string{
		"users", "verification_requests", "scripts", "projects", "project_members",
		"forum_categories", "forum_posts", "forum_replies", "messages",
		"friend_requests", "notifications", "user_achievements",
		"credit_transactions", "generations", "design_assets",
		"festival_submissions", "reports", "blobs",
	} {
		assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}
