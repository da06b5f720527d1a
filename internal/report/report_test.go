package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputNormalize(t *testing.T) {
	in := Input{TargetType: " Post ", TargetID: 4, Reason: "  Spam link  "}
	require.NoError(t, in.Normalize())
	assert.Equal(t, TargetPost, in.TargetType)
	assert.Equal(t, "Spam link", in.Reason)
}

func TestInputRejects(t *testing.T) {
	tests := map[string]Input{
		"unknown type": {TargetType: "project", TargetID: 1, Reason: "x"},
		"no target":    {TargetType: TargetUser, Reason: "x"},
		"no reason":    {TargetType: TargetUser, TargetID: 1, Reason: "  "},
		"long reason":  {TargetType: TargetUser, TargetID: 1, Reason: strings.Repeat("r", MaxReason+1)},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.Normalize(), ErrInvalid)
		})
	}
}

func TestEveryTargetHasTable(t *testing.T) {
	for _, tt := range []string{TargetUser, TargetScript, TargetPost, TargetReply, TargetMessage} {
		assert.NotEmpty(t, targetTables[tt], tt)
	}
}

func TestValidOutcome(t *testing.T) {
	assert.True(t, ValidOutcome(StatusResolved))
	assert.True(t, ValidOutcome(StatusDismissed))
	assert.False(t, ValidOutcome(StatusOpen))
	assert.False(t, ValidOutcome("escalated"))
}
