// Package report merges step results back into test-case order, summarizes a
// run and attaches optional AI decorations without touching pass/fail.
package report

import (
	"context"

	"testpilot/internal/logging"
	"testpilot/internal/types"
)

// Indexed is a result tagged with the position of its test case.
type Indexed struct {
	Index  int
	Result types.TestResult
}

// Summary is the run summary envelope.
type Summary struct {
	Success             bool               `json:"success"`
	TestsPassed         int                `json:"testsPassed"`
	TestsFailed         int                `json:"testsFailed"`
	TotalTests          int                `json:"totalTests"`
	Details             []types.TestResult `json:"details"`
	Errors              []string           `json:"errors"`
	RunID               string             `json:"runId,omitempty"`
	Commentary          string             `json:"commentary,omitempty"`
	AnalysisUnavailable []string           `json:"analysisUnavailable,omitempty"`
}

// Merge places UI results, then API results, at the index of their test case.
// A case with no result is reported as failed so the output always has one
// result per case.
func Merge(cases []types.TestCase, ui, api []Indexed) []types.TestResult {
	out := make([]types.TestResult, len(cases))
	filled := make([]bool, len(cases))
	for _, group := range [][]Indexed{ui, api} {
		for _, r := range group {
			if r.Index < 0 || r.Index >= len(cases) || filled[r.Index] {
				continue
			}
			out[r.Index] = r.Result
			filled[r.Index] = true
		}
	}
	for i, ok := range filled {
		if !ok {
			out[i] = types.Failed(cases[i].Name, "Test case was not executed", 0)
		}
	}
	return out
}

// Summarize counts results. success means every result passed.
func Summarize(results []types.TestResult, errs []string) Summary {
	s := Summary{
		Success:    true,
		TotalTests: len(results),
		Details:    results,
		Errors:     errs,
	}
	if s.Errors == nil {
		s.Errors = []string{}
	}
	if s.Details == nil {
		s.Details = []types.TestResult{}
	}
	for _, r := range results {
		if r.Passed() {
			s.TestsPassed++
			continue
		}
		s.TestsFailed++
		s.Success = false
	}
	return s
}

// Explainer produces a short explanation of a failed result.
type Explainer interface {
	Explain(ctx context.Context, result types.TestResult) (string, error)
}

// Commentator produces commentary for a whole run.
type Commentator interface {
	Comment(ctx context.Context, summary Summary) (string, error)
}

// Decorate returns copies of results with AIExplanation set on failed ones.
// Names of failed results whose explanation could not be produced are
// returned separately.
func Decorate(ctx context.Context, results []types.TestResult, ex Explainer) ([]types.TestResult, []string) {
	out := make([]types.TestResult, len(results))
	copy(out, results)
	if ex == nil {
		return out, nil
	}

	var unavailable []string
	for i := range out {
		if out[i].Passed() {
			continue
		}
		text, err := ex.Explain(ctx, results[i])
		if err != nil || text == "" {
			if err != nil {
				logging.ReportWarn("explain %q: %v", out[i].Name, err)
			}
			unavailable = append(unavailable, out[i].Name)
			continue
		}
		out[i].AIExplanation = text
	}
	return out, unavailable
}
