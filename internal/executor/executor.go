// Package executor runs one declarative test case against the live page and
// turns whatever happens into a TestResult. Nothing escapes as an error.
package executor

import (
	"context"
	"encoding/base64"
	"time"

	"testpilot/internal/failure"
	"testpilot/internal/logging"
	"testpilot/internal/types"
)

// Page is what a UI step needs from the browser session.
type Page interface {
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, value string, timeout time.Duration) error
	Goto(ctx context.Context, url string) error
	TextContent(ctx context.Context, selector string) (text string, found bool, err error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// APIRunner executes api test cases.
type APIRunner interface {
	Run(ctx context.Context, tc types.TestCase) types.TestResult
}

// Executor dispatches test cases by kind.
type Executor struct {
	page            Page
	api             APIRunner
	selectorTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithSelectorTimeout overrides how long click and input steps wait for their element.
func WithSelectorTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.selectorTimeout = d
		}
	}
}

// New creates an executor. page may be nil for runs with no UI steps and api
// may be nil for runs with no api steps.
func New(page Page, api APIRunner, opts ...Option) *Executor {
	e := &Executor{page: page, api: api, selectorTimeout: types.DefaultSelectorTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs tc once and reports the outcome.
func (e *Executor) Execute(ctx context.Context, tc types.TestCase) types.TestResult {
	res, _ := e.Attempt(ctx, tc)
	return res
}

// Attempt runs tc once and also returns the classified failure, nil on pass.
func (e *Executor) Attempt(ctx context.Context, tc types.TestCase) (types.TestResult, error) {
	if tc.Type == types.KindAPI {
		if e.api == nil {
			err := failure.New(failure.SessionUnavailable, "no API runner configured")
			return types.Failed(tc.Name, err.Error(), 0), err
		}
		res := e.api.Run(ctx, tc)
		if res.Passed() {
			return res, nil
		}
		return res, failure.New(failure.Unknown, "%s", res.Message)
	}

	start := time.Now()
	err := e.step(ctx, tc)
	elapsed := time.Since(start)

	if err == nil {
		logging.ExecutorDebug("%s %q passed in %s", tc.Type, tc.Name, elapsed)
		return types.PassedResult(tc.Name, elapsed), nil
	}

	logging.Executor("%s %q failed: %v", tc.Type, tc.Name, err)
	res := types.Failed(tc.Name, err.Error(), elapsed)
	res.Screenshot = e.screenshot(ctx)
	return res, err
}

func (e *Executor) step(ctx context.Context, tc types.TestCase) error {
	if tc.Type == types.KindWait {
		return wait(ctx, tc.TimeoutOr(types.DefaultWaitTimeout))
	}
	if !tc.Type.Valid() {
		return failure.New(failure.InvalidTestCase, "Unknown test type: %s", tc.Type)
	}
	if e.page == nil {
		return failure.New(failure.SessionUnavailable, "no browser session for %s step", tc.Type)
	}

	switch tc.Type {
	case types.KindClick:
		return e.page.Click(ctx, tc.Selector, tc.TimeoutOr(e.selectorTimeout))
	case types.KindInput:
		return e.page.Type(ctx, tc.Selector, tc.Value, tc.TimeoutOr(e.selectorTimeout))
	case types.KindNavigation:
		return e.page.Goto(ctx, tc.Value)
	case types.KindAssertion:
		return e.assert(ctx, tc)
	}
	return failure.New(failure.InvalidTestCase, "Unknown test type: %s", tc.Type)
}

func (e *Executor) assert(ctx context.Context, tc types.TestCase) error {
	text, found, err := e.page.TextContent(ctx, tc.Selector)
	if err != nil {
		return err
	}
	if !found {
		return failure.New(failure.ElementNotFound, "Element not found: %s", tc.Selector)
	}
	if tc.Expected != "" && text != tc.Expected {
		return failure.New(failure.AssertionMismatch, "Expected text %q but found %q", tc.Expected, text)
	}
	return nil
}

// wait never fails; a cancelled context only ends it early.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return nil
}

// screenshot is best effort: any error leaves the result without one.
func (e *Executor) screenshot(ctx context.Context) string {
	if e.page == nil {
		return ""
	}
	png, err := e.page.Screenshot(ctx)
	if err != nil || len(png) == 0 {
		if err != nil {
			logging.ExecutorDebug("screenshot skipped: %v", err)
		}
		return ""
	}
	return DataURL(png)
}

// DataURL encodes a PNG as an inline data URL.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
