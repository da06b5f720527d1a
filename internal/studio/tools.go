package studio

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPrompt is the longest prompt accepted, in characters.
const MaxPrompt = 4000

// Tool codes.
const (
	ToolLogline   = "logline"
	ToolSynopsis  = "synopsis"
	ToolCharacter = "character"
	ToolCoverage  = "coverage"
	ToolPoster    = "poster"
)

// Tool is a generation tool and its credit cost.
type Tool struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Image       bool   `json:"image"`

	instruction string
}

// Tools available in the studio.
var Tools = []Tool{
	{
		Code: ToolLogline, Name: "Logline", Cost: 2,
		Description: "One-sentence pitch for a story idea",
		instruction: "You are a development executive. Write three alternative one-sentence loglines " +
			"for the story below. Each names the protagonist, the goal and the stakes.",
	},
	{
		Code: ToolSynopsis, Name: "Synopsis", Cost: 5,
		Description: "One-page synopsis in present tense",
		instruction: "You are a screenwriter. Write a one-page synopsis in present tense covering " +
			"all three acts of the story below, including the ending.",
	},
	{
		Code: ToolCharacter, Name: "Character profile", Cost: 4,
		Description: "Backstory, want, need and flaw for a character",
		instruction: "You are a screenwriting coach. Build a character profile with backstory, " +
			"external want, internal need, core flaw and arc for the character below. " +
			"Portray military service accurately and respectfully.",
	},
	{
		Code: ToolCoverage, Name: "Script coverage", Cost: 15,
		Description: "Reader's coverage with pass/consider/recommend",
		instruction: "You are a studio script reader. Write coverage for the material below: " +
			"a short synopsis, strengths, weaknesses, and a verdict of PASS, CONSIDER or RECOMMEND.",
	},
	{
		Code: ToolPoster, Name: "Poster concept", Cost: 10, Image: true,
		Description: "Theatrical one-sheet artwork",
		instruction: "Cinematic theatrical movie poster, dramatic lighting, no text or lettering. Subject: ",
	},
}

// FindTool returns the tool with code.
func FindTool(code string) (Tool, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, t := range Tools {
		if t.Code == code {
			return t, nil
		}
	}
	return Tool{}, fmt.Errorf("%w: unknown tool %q", ErrInvalid, code)
}

// Request asks for one generation.
type Request struct {
	Tool     string `json:"tool"`
	Prompt   string `json:"prompt"`
	ScriptID *int64 `json:"scriptId,omitempty"`
}

// Normalize validates the request and returns its tool.
func (r *Request) Normalize() (Tool, error) {
	tool, err := FindTool(r.Tool)
	if err != nil {
		return Tool{}, err
	}
	r.Tool = tool.Code
	r.Prompt = strings.TrimSpace(r.Prompt)
	switch {
	case r.Prompt == "":
		return Tool{}, fmt.Errorf("%w: prompt is required", ErrInvalid)
	case utf8.RuneCountInString(r.Prompt) > MaxPrompt:
		return Tool{}, fmt.Errorf("%w: prompt must be at most %d characters", ErrInvalid, MaxPrompt)
	case r.ScriptID != nil && *r.ScriptID <= 0:
		return Tool{}, fmt.Errorf("%w: invalid scriptId", ErrInvalid)
	}
	return tool, nil
}

// ScriptContext is the part of a script fed to a tool.
type ScriptContext struct {
	Title   string
	Logline string
	Genre   string
}

// BuildPrompt assembles the text sent to the generator.
func BuildPrompt(t Tool, prompt string, sc *ScriptContext) (system, user string) {
	if t.Image {
		subject := prompt
		if sc != nil && sc.Title != "" {
			subject = fmt.Sprintf("%s (film titled %q, %s)", prompt, sc.Title, sc.Genre)
		}
		return "", t.instruction + subject
	}

	var b strings.Builder
	if sc != nil {
		fmt.Fprintf(&b, "Title: %s\n", sc.Title)
		if sc.Genre != "" {
			fmt.Fprintf(&b, "Genre: %s\n", sc.Genre)
		}
		if sc.Logline != "" {
			fmt.Fprintf(&b, "Logline: %s\n", sc.Logline)
		}
		b.WriteString("\n")
	}
	b.WriteString(prompt)
	return t.instruction, b.String()
}
