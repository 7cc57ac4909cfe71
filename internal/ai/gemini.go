// Package ai wraps the Gemini API for the few places a run asks a model for
// help: selector repair, failure explanations and run commentary.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"testpilot/internal/config"

	"google.golang.org/genai"
)

// Generator is the part of the genai Models service the client uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends single-turn prompts to one model.
type Client struct {
	gen     Generator
	model   string
	timeout time.Duration
}

// DefaultModel is used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// NewGeminiClient creates a client backed by the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewClient(client.Models, model, timeout), nil
}

// FromConfig creates a client from the ai config section.
func FromConfig(ctx context.Context, c *config.Config) (*Client, error) {
	return NewGeminiClient(ctx, c.AI.APIKey, c.AI.Model, c.GetAITimeout())
}

// NewClient wraps any Generator.
func NewClient(gen Generator, model string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{gen: gen, model: model, timeout: timeout}
}

// Model returns the model name.
func (c *Client) Model() string {
	return c.model
}

// Text sends prompt and returns the plain text answer.
func (c *Client) Text(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

// JSON sends prompt asking for a JSON answer and decodes it into out.
func (c *Client) JSON(ctx context.Context, prompt string, out any) error {
	text, err := c.generate(ctx, prompt, &genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFence(text)), out); err != nil {
		return fmt.Errorf("decode model answer: %w", err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.gen.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty answer from %s", c.model)
	}
	return text, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most n bytes for prompts.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n...[truncated]"
}
