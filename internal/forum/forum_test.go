package forum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostInputNormalize(t *testing.T) {
	in := PostInput{Category: " Screenwriting ", Title: " Act two sag ", Body: "  How do you fix it? "}
	require.NoError(t, in.Normalize())
	assert.Equal(t, "screenwriting", in.Category)
	assert.Equal(t, "Act two sag", in.Title)
	assert.Equal(t, "How do you fix it?", in.Body)
}

func TestPostInputRejects(t *testing.T) {
	tests := map[string]PostInput{
		"no category": {Title: "t", Body: "b"},
		"no title":    {Category: "general", Title: "  ", Body: "b"},
		"long title":  {Category: "general", Title: strings.Repeat("a", MaxTitle+1), Body: "b"},
		"no body":     {Category: "general", Title: "t", Body: "\n"},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.Normalize(), ErrInvalid)
		})
	}
}

func TestValidateBody(t *testing.T) {
	assert.NoError(t, ValidateBody("Roger that."))
	assert.ErrorIs(t, ValidateBody(" "), ErrInvalid)
	assert.ErrorIs(t, ValidateBody(strings.Repeat("x", MaxBody+1)), ErrInvalid)
}
