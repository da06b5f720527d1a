package studio

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToolCosts(t *testing.T) {
	want := map[string]int64{
		ToolLogline:   2,
		ToolSynopsis:  5,
		ToolCharacter: 4,
		ToolCoverage:  15,
		ToolPoster:    10,
	}
	require.Len(t, Tools, len(want))
	for _, tool := range Tools {
		assert.Equal(t, want[tool.Code], tool.Cost, tool.Code)
		assert.Equal(t, tool.Code == ToolPoster, tool.Image, tool.Code)
		assert.NotEmpty(t, tool.instruction, tool.Code)
	}
}

func TestRequestNormalize(t *testing.T) {
	r := Request{Tool: " Coverage ", Prompt: "  A medic returns home.  "}
	tool, err := r.Normalize()
	require.NoError(t, err)
	assert.Equal(t, ToolCoverage, tool.Code)
	assert.Equal(t, ToolCoverage, r.Tool)
	assert.Equal(t, "A medic returns home.", r.Prompt)
}

func TestRequestRejects(t *testing.T) {
	zero := int64(0)
	tests := map[string]Request{
		"unknown tool": {Tool: "trailer", Prompt: "x"},
		"empty prompt": {Tool: ToolLogline, Prompt: "   "},
		"long prompt":  {Tool: ToolLogline, Prompt: strings.Repeat("x", MaxPrompt+1)},
		"bad script":   {Tool: ToolLogline, Prompt: "x", ScriptID: &zero},
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Normalize()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestBuildPromptText(t *testing.T) {
	tool, err := FindTool(ToolSynopsis)
	require.NoError(t, err)

	system, user := BuildPrompt(tool, "Focus on act two.", &ScriptContext{
		Title: "Hold the Line", Genre: "war", Logline: "A platoon defends a bridge.",
	})
	assert.Equal(t, tool.instruction, system)
	assert.True(t, strings.HasPrefix(user, "Title: Hold the Line\nGenre: war\nLogline: A platoon defends a bridge.\n\n"))
	assert.True(t, strings.HasSuffix(user, "Focus on act two."))

	_, bare := BuildPrompt(tool, "Just this.", nil)
	assert.Equal(t, "Just this.", bare)
}

func TestBuildPromptImage(t *testing.T) {
	tool, err := FindTool(ToolPoster)
	require.NoError(t, err)

	system, user := BuildPrompt(tool, "a lone helicopter at dusk", &ScriptContext{Title: "Dustoff", Genre: "drama"})
	assert.Empty(t, system)
	assert.Contains(t, user, "a lone helicopter at dusk")
	assert.Contains(t, user, `"Dustoff"`)
}

func TestGenerateUnavailableWithoutGenerator(t *testing.T) {
	s := NewService(nil, nil, nil, nil, zap.NewNop().Sugar())
	assert.False(t, s.Enabled())

	_, err := s.Generate(context.Background(), 1, Request{Tool: ToolLogline, Prompt: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.Generate(context.Background(), 1, Request{Tool: "nope", Prompt: "x"})
	assert.ErrorIs(t, err, ErrInvalid, "validation runs before the availability check")
}

func TestNormalizeTitle(t *testing.T) {
	title, err := NormalizeTitle("  One-sheet v2 ")
	require.NoError(t, err)
	assert.Equal(t, "One-sheet v2", title)

	_, err = NormalizeTitle(" ")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = NormalizeTitle(strings.Repeat("a", MaxAssetTitle+1))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUploadAssetRejectsNonImages(t *testing.T) {
	s := NewService(nil, nil, nil, nil, zap.NewNop().Sugar())
	_, err := s.UploadAsset(context.Background(), 1, "Call sheet", "application/pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPosterTitle(t *testing.T) {
	assert.Equal(t, "short", posterTitle("short"))
	long := strings.Repeat("é", 80)
	got := []rune(posterTitle(long))
	assert.Len(t, got, 61)
}
