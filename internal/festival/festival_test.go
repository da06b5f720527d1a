package festival

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from, action, to string
	}{
		{StatusDraft, ActionSubmit, StatusSubmitted},
		{StatusDraft, ActionWithdraw, StatusWithdrawn},
		{StatusSubmitted, ActionWithdraw, StatusWithdrawn},
		{StatusSubmitted, ActionAccept, StatusAccepted},
		{StatusSubmitted, ActionReject, StatusRejected},
	}
	for _, tt := range tests {
		got, err := Next(tt.from, tt.action)
		require.NoError(t, err, "%s + %s", tt.from, tt.action)
		assert.Equal(t, tt.to, got)
	}
}

func TestNextRejectsIllegalMoves(t *testing.T) {
	tests := []struct{ from, action string }{
		{StatusDraft, ActionAccept},
		{StatusSubmitted, ActionSubmit},
		{StatusAccepted, ActionWithdraw},
		{StatusRejected, ActionAccept},
		{StatusWithdrawn, ActionSubmit},
		{StatusAccepted, ActionReject},
	}
	for _, tt := range tests {
		_, err := Next(tt.from, tt.action)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s + %s", tt.from, tt.action)
	}
}

func TestInputNormalize(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)

	in := Input{ProjectID: 3, FestivalName: "  GI Film Festival ", Deadline: "2026-10-17"}
	require.NoError(t, in.Normalize(now))
	assert.Equal(t, "GI Film Festival", in.FestivalName)
	require.NotNil(t, in.deadline)
	assert.Equal(t, 17, in.deadline.Day())

	in = Input{ProjectID: 3, FestivalName: "Sundance"}
	require.NoError(t, in.Normalize(now))
	assert.Nil(t, in.deadline)

	draft := Input{ProjectID: 3, FestivalName: "Sundance", Deadline: "2026-01-01", Draft: true}
	assert.NoError(t, draft.Normalize(now), "drafts may carry a past deadline")
}

func TestInputRejects(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	tests := map[string]Input{
		"no project":    {FestivalName: "x"},
		"no festival":   {ProjectID: 1, FestivalName: " "},
		"long festival": {ProjectID: 1, FestivalName: strings.Repeat("f", MaxFestivalName+1)},
		"bad date":      {ProjectID: 1, FestivalName: "x", Deadline: "17/10/2026"},
		"past deadline": {ProjectID: 1, FestivalName: "x", Deadline: "2026-10-16"},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.Normalize(now), ErrInvalid)
		})
	}
}
