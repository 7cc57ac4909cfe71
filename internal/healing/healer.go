// Package healing repairs failing UI steps. A Healer proposes a replacement
// test case or declines; the Coordinator gives a proposal exactly one retry.
package healing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"testpilot/internal/types"
)

// Outcome is either Healed or Declined.
type Outcome interface {
	outcome()
}

// Healed carries a repaired test case.
type Healed struct {
	TestCase    types.TestCase
	Strategy    string
	Confidence  float64
	Explanation string
}

// Declined means the healer has no repair to offer.
type Declined struct {
	Reason string
}

func (Healed) outcome()   {}
func (Declined) outcome() {}

// Healer proposes a repair for a failed test case. cause is the failure of
// the first attempt.
type Healer interface {
	Heal(ctx context.Context, tc types.TestCase, cause error) (Outcome, error)
}

// HealerFunc adapts a function to Healer.
type HealerFunc func(ctx context.Context, tc types.TestCase, cause error) (Outcome, error)

func (f HealerFunc) Heal(ctx context.Context, tc types.TestCase, cause error) (Outcome, error) {
	return f(ctx, tc, cause)
}

// Chain tries healers in order and returns the first Healed outcome.
type Chain []Healer

func (c Chain) Heal(ctx context.Context, tc types.TestCase, cause error) (Outcome, error) {
	var reasons []string
	for _, h := range c {
		out, err := h.Heal(ctx, tc, cause)
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		switch o := out.(type) {
		case Healed:
			return o, nil
		case Declined:
			reasons = append(reasons, o.Reason)
		}
	}
	if len(reasons) == 0 {
		return Declined{Reason: "no healers configured"}, nil
	}
	return Declined{Reason: strings.Join(reasons, "; ")}, nil
}

var dangerousPatterns = []string{"javascript:", "<script", "onerror=", "onload="}

// ValidateSelector rejects empty, oversized or script-bearing selectors.
func ValidateSelector(selector string) error {
	if selector == "" {
		return fmt.Errorf("selector is empty")
	}
	if len(selector) > 1000 {
		return fmt.Errorf("selector exceeds 1000 characters")
	}
	lower := strings.ToLower(selector)
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			return fmt.Errorf("selector contains dangerous pattern: %s", p)
		}
	}
	if !strings.ContainsRune("#.[*:", rune(selector[0])) && !isLetter(selector[0]) {
		return fmt.Errorf("selector must start with a valid CSS selector character")
	}
	return nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// idSelector returns "#id" when id can be written as a bare CSS id selector.
func idSelector(id string) (string, bool) {
	if !cssIdent.MatchString(id) {
		return "", false
	}
	return "#" + id, true
}
