package healing

import (
	"context"

	"testpilot/internal/logging"
	"testpilot/internal/metrics"
	"testpilot/internal/types"
)

// Attempter runs a test case once and returns the classified failure.
type Attempter interface {
	Attempt(ctx context.Context, tc types.TestCase) (types.TestResult, error)
}

// Coordinator runs UI steps with at most one healed retry.
type Coordinator struct {
	exec          Attempter
	healer        Healer
	minConfidence float64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMinConfidence declines healed proposals below c.
func WithMinConfidence(c float64) CoordinatorOption {
	return func(co *Coordinator) {
		co.minConfidence = c
	}
}

// NewCoordinator creates a coordinator. A nil healer disables healing.
func NewCoordinator(exec Attempter, healer Healer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{exec: exec, healer: healer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes tc. A failed UI step is handed to the healer; a Healed
// proposal is executed exactly once and its outcome is final.
func (c *Coordinator) Run(ctx context.Context, tc types.TestCase) types.TestResult {
	first, err := c.exec.Attempt(ctx, tc)
	if err == nil || c.healer == nil || !tc.IsUI() {
		return first
	}

	out, herr := c.healer.Heal(ctx, tc, err)
	if herr != nil {
		logging.HealingWarn("%s: healer error: %v", tc.Name, herr)
		metrics.RecordHealing("error")
		return first
	}

	healed, ok := out.(Healed)
	if !ok {
		if d, isDeclined := out.(Declined); isDeclined {
			logging.Healing("%s: healing declined: %s", tc.Name, d.Reason)
		}
		metrics.RecordHealing("declined")
		return first
	}
	if healed.Confidence < c.minConfidence {
		logging.Healing("%s: %s proposal below confidence %.2f (%.2f)", tc.Name, healed.Strategy, c.minConfidence, healed.Confidence)
		metrics.RecordHealing("declined")
		return first
	}
	if err := ValidateSelector(healed.TestCase.Selector); err != nil && healed.TestCase.Selector != "" {
		logging.HealingWarn("%s: rejected healed selector: %v", tc.Name, err)
		metrics.RecordHealing("declined")
		return first
	}

	retry := healed.TestCase
	retry.Name = tc.Name
	retry.Type = tc.Type
	logging.Healing("%s: retrying with %q (%s, %.2f)", tc.Name, retry.Selector, healed.Strategy, healed.Confidence)

	second, err := c.exec.Attempt(ctx, retry)
	second.Name = tc.Name
	second.Duration += first.Duration
	if err != nil {
		metrics.RecordHealing("retry_failed")
		second.Status = types.StatusFailed
		second.Message = "Healing failed: " + second.Message
		return second
	}

	metrics.RecordHealing("healed")
	second.Healed = true
	second.HealingInfo = &types.HealingInfo{
		Strategy:    healed.Strategy,
		Confidence:  healed.Confidence,
		Explanation: healed.Explanation,
	}
	return second
}
