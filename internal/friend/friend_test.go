package friend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending() *Request {
	return &Request{ID: 9, FromID: 1, ToID: 2, Status: StatusPending}
}

func TestResolve(t *testing.T) {
	next, err := Resolve(pending(), 2, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, next)

	next, err = Resolve(pending(), 2, ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, next)

	next, err = Resolve(pending(), 1, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, next)
}

func TestResolveWrongParty(t *testing.T) {
	_, err := Resolve(pending(), 1, ActionAccept)
	assert.ErrorIs(t, err, ErrNotFound, "sender cannot accept their own request")

	_, err = Resolve(pending(), 2, ActionCancel)
	assert.ErrorIs(t, err, ErrNotFound, "recipient cannot cancel")

	_, err = Resolve(pending(), 3, ActionDecline)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveNotPending(t *testing.T) {
	for _, status := range []string{StatusAccepted, StatusDeclined, StatusCancelled, StatusRemoved} {
		r := pending()
		r.Status = status
		_, err := Resolve(r, 2, ActionAccept)
		assert.ErrorIs(t, err, ErrInvalidTransition, status)
	}
}

func TestResolveUnknownAction(t *testing.T) {
	_, err := Resolve(pending(), 2, "poke")
	assert.ErrorIs(t, err, ErrInvalid)
}
