package report

import (
	"context"
	"encoding/json"
	"fmt"

	"testpilot/internal/ai"
	"testpilot/internal/types"
)

// TextAsker is the model capability explanations and commentary need.
type TextAsker interface {
	Text(ctx context.Context, prompt string) (string, error)
}

// GeminiExplainer explains failed results with a model.
type GeminiExplainer struct {
	model TextAsker
}

// NewGeminiExplainer creates an explainer.
func NewGeminiExplainer(model TextAsker) *GeminiExplainer {
	return &GeminiExplainer{model: model}
}

const explainPrompt = `A browser or API test failed. In two sentences, explain the most likely cause and what to check.
Do not restate the error verbatim.

Result (JSON):
%s`

func (g *GeminiExplainer) Explain(ctx context.Context, r types.TestResult) (string, error) {
	r.Screenshot = ""
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return g.model.Text(ctx, fmt.Sprintf(explainPrompt, ai.Truncate(string(data), 8000)))
}

// GeminiCommentator writes a short markdown commentary for a run.
type GeminiCommentator struct {
	model TextAsker
}

// NewGeminiCommentator creates a commentator.
func NewGeminiCommentator(model TextAsker) *GeminiCommentator {
	return &GeminiCommentator{model: model}
}

const commentPrompt = `Summarize this automated test run for a developer in short markdown:
one line verdict, then bullet points for failures and healed steps. Keep it under 150 words.

Passed: %d, failed: %d, total: %d
Results (JSON):
%s

Page errors:
%s`

func (g *GeminiCommentator) Comment(ctx context.Context, s Summary) (string, error) {
	details := make([]types.TestResult, len(s.Details))
	for i, r := range s.Details {
		r.Screenshot = ""
		details[i] = r
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	errs, _ := json.Marshal(s.Errors)
	return g.model.Text(ctx, fmt.Sprintf(commentPrompt, s.TestsPassed, s.TestsFailed, s.TotalTests,
		ai.Truncate(string(data), 20000), ai.Truncate(string(errs), 4000)))
}
