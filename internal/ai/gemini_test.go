package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	answer string
	err    error
	model  string
	mime   string
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	if cfg != nil {
		f.mime = cfg.ResponseMIMEType
	}
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.answer, genai.RoleModel)}},
	}, nil
}

func TestClient_JSON(t *testing.T) {
	gen := &fakeGenerator{answer: "```json\n{\"selector\":\"#a\"}\n```"}
	c := NewClient(gen, "", 0)

	var out struct{ Selector string }
	require.NoError(t, c.JSON(context.Background(), "fix it", &out))
	assert.Equal(t, "#a", out.Selector)
	assert.Equal(t, DefaultModel, gen.model)
	assert.Equal(t, "application/json", gen.mime)
	assert.Equal(t, "fix it", gen.prompt)
}

func TestClient_Errors(t *testing.T) {
	c := NewClient(&fakeGenerator{err: errors.New("quota")}, "m", 0)
	_, err := c.Text(context.Background(), "p")
	assert.ErrorContains(t, err, "quota")

	c = NewClient(&fakeGenerator{answer: "  "}, "m", 0)
	_, err = c.Text(context.Background(), "p")
	assert.ErrorContains(t, err, "empty answer")

	c = NewClient(&fakeGenerator{answer: "not json"}, "m", 0)
	var out map[string]any
	assert.ErrorContains(t, c.JSON(context.Background(), "p", &out), "decode model answer")
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "", 0)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab\n...[truncated]", Truncate("abcdef", 2))
}
