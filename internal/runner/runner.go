// Package runner drives one test run end to end: it opens a browser session,
// runs UI steps through the healing coordinator and API steps through the
// validator, then merges, summarizes and decorates the results.
package runner

import (
	"context"
	"errors"
	"time"

	"testpilot/internal/apitest"
	"testpilot/internal/browser"
	"testpilot/internal/executor"
	"testpilot/internal/failure"
	"testpilot/internal/generate"
	"testpilot/internal/healing"
	"testpilot/internal/logging"
	"testpilot/internal/metrics"
	"testpilot/internal/report"
	"testpilot/internal/tracing"
	"testpilot/internal/types"

	"github.com/google/uuid"
)

// Session is the browser surface a run needs.
type Session interface {
	executor.Page
	NavigateToPage(ctx context.Context, url string) error
	Login(ctx context.Context, username, password string) bool
	HTML(ctx context.Context) (string, error)
	Console() browser.ConsoleSnapshot
	Close() error
}

// SessionFactory opens one session per run.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}

// BrowserSessions opens rod sessions through a browser.SessionManager.
type BrowserSessions struct {
	Manager *browser.SessionManager
}

// Open launches or connects to a browser.
func (b BrowserSessions) Open(ctx context.Context) (Session, error) {
	s, err := b.Manager.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// HealerFactory builds the healer for one session.
type HealerFactory func(page healing.Snapshotter) healing.Healer

// Request is one run: the page to open, optional credentials and the cases.
type Request struct {
	URL       string           `json:"url,omitempty"`
	BaseURL   string           `json:"baseUrl,omitempty"`
	Username  string           `json:"username,omitempty"`
	Password  string           `json:"password,omitempty"`
	Generate  bool             `json:"generate,omitempty"`
	TestCases []types.TestCase `json:"testCases"`
}

// RunError is a run-level failure. No partial results accompany it.
type RunError struct {
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Runner executes runs. It is safe for concurrent use; each run gets its own
// session.
type Runner struct {
	sessions        SessionFactory
	api             *apitest.Validator
	healers         HealerFactory
	minConfidence   float64
	selectorTimeout time.Duration
	explainer       report.Explainer
	commentator     report.Commentator
	generator       generate.Generator
	closeOnError    bool
	observer        Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithHealers enables self-healing with healers built per session.
func WithHealers(f HealerFactory) Option {
	return func(r *Runner) { r.healers = f }
}

// WithMinConfidence declines healing proposals below c.
func WithMinConfidence(c float64) Option {
	return func(r *Runner) { r.minConfidence = c }
}

// WithSelectorTimeout overrides the default selector wait.
func WithSelectorTimeout(d time.Duration) Option {
	return func(r *Runner) { r.selectorTimeout = d }
}

// WithExplainer attaches explanations to failed results.
func WithExplainer(e report.Explainer) Option {
	return func(r *Runner) { r.explainer = e }
}

// WithCommentator adds run commentary to the summary.
func WithCommentator(c report.Commentator) Option {
	return func(r *Runner) { r.commentator = c }
}

// WithGenerator produces cases for runs that ask for generation.
func WithGenerator(g generate.Generator) Option {
	return func(r *Runner) { r.generator = g }
}

// WithCloseOnError controls whether the session is closed when the run fails
// at run level. Leaving it open keeps the page around for inspection.
func WithCloseOnError(enabled bool) Option {
	return func(r *Runner) { r.closeOnError = enabled }
}

// WithObserver receives progress callbacks.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// New creates a runner. api is a template: each run works on its own copy
// from ForRun, so cookies stay within one run. A nil api validator fails
// every api step.
func New(sessions SessionFactory, api *apitest.Validator, opts ...Option) *Runner {
	r := &Runner{
		sessions:        sessions,
		api:             api,
		selectorTimeout: types.DefaultSelectorTimeout,
		closeOnError:    true,
		observer:        nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req. Step failures are reported in the summary; session,
// navigation and validation failures return a *RunError instead.
func (r *Runner) Run(ctx context.Context, req Request) (summary report.Summary, err error) {
	runID := uuid.NewString()
	ctx, span := tracing.StartSpan(ctx, "run",
		tracing.AttrRunID.String(runID),
		tracing.AttrURL.String(req.URL),
	)
	defer span.End()

	metrics.RunStarted()
	timer := logging.StartTimer(logging.CategoryRunner, "run "+runID)
	defer func() {
		timer.Stop()
		switch {
		case err != nil:
			tracing.Fail(span, err)
			metrics.RunFinished("error")
			logging.RunnerError("run %s failed: %v", runID, err)
			err = &RunError{RunID: runID, Err: err}
		case summary.Success:
			metrics.RunFinished("passed")
		default:
			metrics.RunFinished("failed")
		}
	}()

	if err := types.ValidateAll(req.TestCases); err != nil {
		return report.Summary{}, failure.Wrap(failure.InvalidTestCase, err, "invalid test cases")
	}

	cases := req.TestCases
	var sess Session
	if req.URL != "" || hasUI(cases) {
		if r.sessions == nil {
			return report.Summary{}, failure.New(failure.SessionUnavailable, "no browser configured for UI steps")
		}
		sess, err = r.sessions.Open(ctx)
		if err != nil {
			return report.Summary{}, err
		}
		defer func() {
			if err != nil && !r.closeOnError {
				logging.RunnerWarn("run %s: leaving browser session open after failure", runID)
				return
			}
			if cerr := sess.Close(); cerr != nil {
				logging.RunnerWarn("run %s: close session: %v", runID, cerr)
			}
		}()

		if req.URL != "" {
			if err := sess.NavigateToPage(ctx, req.URL); err != nil {
				return report.Summary{}, err
			}
		}
		if req.Username != "" || req.Password != "" {
			sess.Login(ctx, req.Username, req.Password)
		}
	}

	if len(cases) == 0 && req.Generate {
		cases = r.generate(ctx, sess)
	}

	logging.Runner("run %s: %d test cases against %q", runID, len(cases), req.URL)
	r.observer.RunStarted(runID, cases)

	var page executor.Page
	if sess != nil {
		page = sess
	}
	var api executor.APIRunner
	if r.api != nil {
		v, err := r.api.ForRun(req.BaseURL)
		if err != nil {
			return report.Summary{}, err
		}
		api = v
	}
	exec := executor.New(page, api, executor.WithSelectorTimeout(r.selectorTimeout))

	var healer healing.Healer
	if r.healers != nil && sess != nil {
		healer = r.healers(sess)
	}
	coord := healing.NewCoordinator(exec, healer, healing.WithMinConfidence(r.minConfidence))

	// UI steps run first, then API steps, each strictly in order.
	var ui, apiResults []report.Indexed
	for i, tc := range cases {
		if tc.IsUI() {
			ui = append(ui, report.Indexed{Index: i, Result: r.step(ctx, i, tc, coord.Run)})
		}
	}
	for i, tc := range cases {
		if !tc.IsUI() {
			apiResults = append(apiResults, report.Indexed{Index: i, Result: r.step(ctx, i, tc, exec.Execute)})
		}
	}

	results := report.Merge(cases, ui, apiResults)
	var errs []string
	if sess != nil {
		errs = sess.Console().RunErrors()
	}
	decorated, unavailable := report.Decorate(ctx, results, r.explainer)

	summary = report.Summarize(decorated, errs)
	summary.RunID = runID
	summary.AnalysisUnavailable = unavailable
	if r.commentator != nil {
		text, cerr := r.commentator.Comment(ctx, summary)
		if cerr != nil {
			logging.RunnerWarn("run %s: commentary unavailable: %v", runID, cerr)
		}
		summary.Commentary = text
	}

	logging.Runner("run %s: %d/%d passed", runID, summary.TestsPassed, summary.TotalTests)
	r.observer.RunFinished(summary)
	return summary, nil
}

func (r *Runner) step(ctx context.Context, index int, tc types.TestCase, run func(context.Context, types.TestCase) types.TestResult) types.TestResult {
	ctx, span := tracing.StartSpan(ctx, "step",
		tracing.AttrTestName.String(tc.Name),
		tracing.AttrTestKind.String(string(tc.Type)),
	)
	defer span.End()

	r.observer.StepStarted(index, tc)
	res := run(ctx, tc)

	span.SetAttributes(
		tracing.AttrStatus.String(string(res.Status)),
		tracing.AttrHealed.Bool(res.Healed),
	)
	if !res.Passed() {
		tracing.Fail(span, errors.New(res.Message))
		logging.RunnerWarn("%s failed: %s", tc.Name, res.Message)
	}
	metrics.RecordStep(string(tc.Type), string(res.Status), time.Duration(res.Duration)*time.Millisecond)
	r.observer.StepFinished(index, tc, res)
	return res
}

func (r *Runner) generate(ctx context.Context, sess Session) []types.TestCase {
	if r.generator == nil || sess == nil {
		logging.RunnerWarn("generation requested but no generator or page is available")
		return nil
	}
	cases, err := r.generator.Generate(ctx, sess)
	if err != nil {
		logging.RunnerWarn("generate test cases: %v", err)
		return nil
	}
	if err := types.ValidateAll(cases); err != nil {
		logging.RunnerWarn("generated cases rejected: %v", err)
		return nil
	}
	return cases
}

func hasUI(cases []types.TestCase) bool {
	for _, tc := range cases {
		if tc.IsUI() {
			return true
		}
	}
	return false
}
