package runner

import (
	"testpilot/internal/report"
	"testpilot/internal/types"
)

// Observer receives progress callbacks from a run. Callbacks are made on the
// run's goroutine, in order.
type Observer interface {
	RunStarted(runID string, cases []types.TestCase)
	StepStarted(index int, tc types.TestCase)
	StepFinished(index int, tc types.TestCase, result types.TestResult)
	RunFinished(summary report.Summary)
}

type nopObserver struct{}

func (nopObserver) RunStarted(string, []types.TestCase) {}
func (nopObserver) StepStarted(int, types.TestCase) {}
func (nopObserver) StepFinished(int, types.TestCase, types.TestResult) {}
func (nopObserver) RunFinished(report.Summary) {}
