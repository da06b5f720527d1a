package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravozulu-films/bzf/internal/user"
)

func TestCanSubmit(t *testing.T) {
	assert.NoError(t, CanSubmit(user.VerificationUnverified))
	assert.NoError(t, CanSubmit(user.VerificationRejected))
	assert.ErrorIs(t, CanSubmit(user.VerificationPending), ErrInvalidTransition)
	assert.ErrorIs(t, CanSubmit(user.VerificationApproved), ErrInvalidTransition)
	assert.ErrorIs(t, CanSubmit("bogus"), ErrInvalidTransition)
}

func TestOutcome(t *testing.T) {
	got, err := Outcome(DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, user.VerificationApproved, got)

	got, err = Outcome(DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, user.VerificationRejected, got)

	_, err = Outcome("maybe")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSubmitParamsValidate(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	start := time.Date(2004, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(1, 0, 0)

	ok := SubmitParams{Branch: " Navy ", ServiceStart: start, ServiceEnd: &end, DocumentCID: "bafk"}
	require.NoError(t, ok.Validate(now))
	assert.Equal(t, "navy", ok.Branch)

	tests := []struct {
		name string
		p    SubmitParams
	}{
		{"unknown branch", SubmitParams{Branch: "cavalry", ServiceStart: start, DocumentCID: "bafk"}},
		{"missing start", SubmitParams{Branch: "army", DocumentCID: "bafk"}},
		{"future start", SubmitParams{Branch: "army", ServiceStart: future, DocumentCID: "bafk"}},
		{"end before start", SubmitParams{Branch: "army", ServiceStart: start, ServiceEnd: &before, DocumentCID: "bafk"}},
		{"missing document", SubmitParams{Branch: "army", ServiceStart: start}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.p.Validate(now), ErrInvalid)
		})
	}
}
