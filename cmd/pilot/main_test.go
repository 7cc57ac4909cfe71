package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"testpilot/internal/failure"
	"testpilot/internal/report"
	"testpilot/internal/runner"
	"testpilot/internal/suite"
	"testpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFor_FlagsOverrideSuite(t *testing.T) {
	s := &suite.Suite{
		URL:       "http://suite.test",
		BaseURL:   "http://api.suite.test",
		Username:  "suite-user",
		Password:  "suite-pass",
		TestCases: []types.TestCase{{Name: "w", Type: types.KindWait}},
	}

	req := requestFor(s, runFlags{})
	assert.Equal(t, "http://suite.test", req.URL)
	assert.Equal(t, "suite-pass", req.Password)
	assert.False(t, req.Generate)
	assert.Len(t, req.TestCases, 1)

	req = requestFor(s, runFlags{url: "http://flag.test", username: "ada", password: "pw", generate: true})
	assert.Equal(t, "http://flag.test", req.URL)
	assert.Equal(t, "http://api.suite.test", req.BaseURL)
	assert.Equal(t, "ada", req.Username)
	assert.Equal(t, "pw", req.Password)
	assert.True(t, req.Generate)
}

func TestRequestFor_PasswordFromEnv(t *testing.T) {
	t.Setenv("PILOT_PASSWORD", "from-env")
	req := requestFor(&suite.Suite{}, runFlags{username: "ada"})
	assert.Equal(t, "from-env", req.Password)
}

func TestFailurePayload(t *testing.T) {
	err := &runner.RunError{RunID: "r-1", Err: failure.New(failure.NavigationTimeout, "Navigation to http://x timed out after 60s")}
	p := failurePayload(err)
	assert.Equal(t, false, p["success"])
	assert.Equal(t, "r-1", p["runId"])
	assert.Equal(t, err.Error(), p["error"])

	p = failurePayload(errors.New("boom"))
	_, hasID := p["runId"]
	assert.False(t, hasID)
}

func TestRenderSummary(t *testing.T) {
	healed := types.PassedResult("logo", 40*time.Millisecond)
	healed.Healed = true
	healed.HealingInfo = &types.HealingInfo{Strategy: "id_prefix", Confidence: 0.7}

	s := report.Summarize([]types.TestResult{
		healed,
		types.Failed("title", `Expected text "Welcome" but found "Home"`, 12*time.Millisecond),
	}, []string{"Page error: boom"})
	s.RunID = "run-123"

	out := renderSummary("checkout", s)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "checkout  1/2 passed")
	assert.Contains(t, out, "healed via id_prefix (0.70)")
	assert.Contains(t, out, `Expected text "Welcome" but found "Home"`)
	assert.Contains(t, out, "Page error: boom")
	assert.Contains(t, out, "run-123")
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf)
	cases := []types.TestCase{{Name: "a", Type: types.KindWait}, {Name: "b", Type: types.KindWait}}

	p.RunStarted("0123456789", cases)
	p.StepStarted(0, cases[0])
	p.StepFinished(0, cases[0], types.PassedResult("a", 0))
	p.StepStarted(1, cases[1])
	p.StepFinished(1, cases[1], types.Failed("b", "x", 0))
	p.RunFinished(report.Summary{})

	assert.Equal(t, 1, p.passed)
	assert.Equal(t, 1, p.failed)
	assert.Contains(t, buf.String(), "2/2")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "pilot dev")
}
