package tutorial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceWalksEveryStep(t *testing.T) {
	step := StepWelcome
	for i := 1; i < len(Steps); i++ {
		next, err := Advance(step, step)
		require.NoError(t, err, step)
		assert.Equal(t, Steps[i], next)
		step = next
	}
	assert.Equal(t, StepCompleted, step)
}

func TestAdvanceRejectsStaleClient(t *testing.T) {
	_, err := Advance(StepFirstScript, StepProfile)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Advance(StepProfile, StepFirstScript)
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot skip ahead")
}

func TestAdvanceFromCompleted(t *testing.T) {
	_, err := Advance(StepCompleted, StepCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdvanceUnknownStoredStep(t *testing.T) {
	next, err := Advance("legacy_intro", StepWelcome)
	require.NoError(t, err)
	assert.Equal(t, StepProfile, next)
}

func TestStateOf(t *testing.T) {
	st := StateOf(StepVerification)
	assert.Equal(t, 2, st.Index)
	assert.Equal(t, len(Steps), st.Total)
	require.NotNil(t, st.Next)
	assert.Equal(t, StepFirstScript, *st.Next)
	assert.False(t, st.Completed)

	done := StateOf(StepCompleted)
	assert.True(t, done.Completed)
	assert.Nil(t, done.Next)

	unknown := StateOf("")
	assert.Equal(t, StepWelcome, unknown.Step)
	assert.Zero(t, unknown.Index)
}
