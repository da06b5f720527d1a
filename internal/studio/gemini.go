package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Generator produces text and images for studio tools.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

// Gemini generates with Google's Gemini and Imagen models.
type Gemini struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, textModel, imageModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("studio: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("studio: create genai client: %w", err)
	}
	return &Gemini{client: client, textModel: textModel, imageModel: imageModel}, nil
}

// GenerateText implements Generator.
func (g *Gemini) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("studio: generate text: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("studio: model returned no text")
	}
	return text, nil
}

// GenerateImage implements Generator.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, nil)
	if err != nil {
		return nil, "", fmt.Errorf("studio: generate image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, "", errors.New("studio: model returned no image")
	}
	img := resp.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return img.ImageBytes, mimeType, nil
}
