package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSend(t *testing.T) {
	body, err := ValidateSend(1, 2, "  Welcome aboard.  ")
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard.", body)

	_, err = ValidateSend(1, 2, strings.Repeat("é", MaxBody))
	assert.NoError(t, err, "limit counts characters, not bytes")
}

func TestValidateSendRejects(t *testing.T) {
	tests := []struct {
		name     string
		from, to int64
		body     string
	}{
		{"self", 7, 7, "hi"},
		{"no recipient", 7, 0, "hi"},
		{"empty", 7, 8, "   "},
		{"too long", 7, 8, strings.Repeat("x", MaxBody+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSend(tt.from, tt.to, tt.body)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
