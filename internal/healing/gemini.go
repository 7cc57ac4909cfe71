package healing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"testpilot/internal/ai"
	"testpilot/internal/types"
)

// JSONAsker is the model capability the Gemini healer needs.
type JSONAsker interface {
	JSON(ctx context.Context, prompt string, out any) error
}

// GeminiHealer asks a model for a replacement selector given the failed
// case, its error and a truncated DOM snapshot.
type GeminiHealer struct {
	model    JSONAsker
	page     Snapshotter
	maxDOM   int
	minScore float64
}

// NewGeminiHealer creates a model-backed healer. Proposals below minConfidence are declined.
func NewGeminiHealer(model JSONAsker, page Snapshotter, minConfidence float64) *GeminiHealer {
	return &GeminiHealer{model: model, page: page, maxDOM: 30000, minScore: minConfidence}
}

type geminiAnswer struct {
	Selector    string  `json:"selector"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

const healPrompt = `A browser test step failed. Propose a CSS selector that targets the element the step meant.

Step (JSON):
%s

Error:
%s

Current page HTML:
%s

Answer with JSON only: {"selector": "<css selector or empty if unsure>", "confidence": <0..1>, "explanation": "<one sentence>"}`

func (h *GeminiHealer) Heal(ctx context.Context, tc types.TestCase, cause error) (Outcome, error) {
	if tc.Selector == "" {
		return Declined{Reason: "no selector to repair"}, nil
	}
	html, err := h.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot dom: %w", err)
	}
	step, err := json.Marshal(tc)
	if err != nil {
		return nil, fmt.Errorf("encode step: %w", err)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	var answer geminiAnswer
	prompt := fmt.Sprintf(healPrompt, step, msg, ai.Truncate(html, h.maxDOM))
	if err := h.model.JSON(ctx, prompt, &answer); err != nil {
		return nil, err
	}

	sel := strings.TrimSpace(answer.Selector)
	switch {
	case sel == "":
		return Declined{Reason: "model had no proposal"}, nil
	case sel == tc.Selector:
		return Declined{Reason: "model proposed the failing selector"}, nil
	case answer.Confidence < h.minScore:
		return Declined{Reason: fmt.Sprintf("model confidence %.2f below %.2f", answer.Confidence, h.minScore)}, nil
	}
	if err := ValidateSelector(sel); err != nil {
		return Declined{Reason: err.Error()}, nil
	}
	return Healed{
		TestCase:    tc.WithSelector(sel),
		Strategy:    "gemini",
		Confidence:  answer.Confidence,
		Explanation: answer.Explanation,
	}, nil
}
