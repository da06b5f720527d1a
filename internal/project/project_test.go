package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputNormalize(t *testing.T) {
	in := Input{Title: "  Operation Celluloid ", Status: " Pre_Production "}
	require.NoError(t, in.Normalize())
	assert.Equal(t, "Operation Celluloid", in.Title)
	assert.Equal(t, StatusPreProduction, in.Status)

	in = Input{Title: "Untitled"}
	require.NoError(t, in.Normalize())
	assert.Equal(t, StatusDevelopment, in.Status)
}

func TestInputRejects(t *testing.T) {
	zero := int64(0)
	tests := map[string]Input{
		"empty title":  {Title: " "},
		"bad status":   {Title: "x", Status: "wrapped"},
		"bad scriptId": {Title: "x", ScriptID: &zero},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.Normalize(), ErrInvalid)
		})
	}
}

func TestStatusesAreOrderedAndValid(t *testing.T) {
	require.Len(t, Statuses, 5)
	assert.Equal(t, StatusDevelopment, Statuses[0])
	assert.Equal(t, StatusCompleted, Statuses[len(Statuses)-1])
	for _, s := range Statuses {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus("released"))
}
