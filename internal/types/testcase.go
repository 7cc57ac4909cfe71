// Package types holds the declarative test model shared by every stage of a run:
// test cases as they arrive on the wire and the results produced for them.
package types

import (
	"fmt"
	"strings"
	"time"
)

// TestKind identifies what a TestCase does.
type TestKind string

const (
	KindClick      TestKind = "click"
	KindInput      TestKind = "input"
	KindNavigation TestKind = "navigation"
	KindAssertion  TestKind = "assertion"
	KindWait       TestKind = "wait"
	KindAPI        TestKind = "api"
)

// Kinds lists every recognised kind in wire order.
var Kinds = []TestKind{KindClick, KindInput, KindNavigation, KindAssertion, KindWait, KindAPI}

// Valid reports whether k is one of the known kinds.
func (k TestKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Default per-kind timeouts.
const (
	DefaultSelectorTimeout = 5 * time.Second
	DefaultWaitTimeout     = 1000 * time.Millisecond
	DefaultAPITimeout      = 30000 * time.Millisecond
)

// TestCase is a single declarative instruction. The name is the correlation key
// between a case and its result and must be unique within a run.
type TestCase struct {
	Name     string   `json:"name" yaml:"name"`
	Type     TestKind `json:"type" yaml:"type"`
	Selector string   `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Expected string   `json:"expected,omitempty" yaml:"expected,omitempty"`
	// Timeout in milliseconds. Nil means the kind-specific default.
	Timeout *int     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	APITest *APISpec `json:"apiTest,omitempty" yaml:"apiTest,omitempty"`
}

// APISpec describes one HTTP request and what its response must look like.
type APISpec struct {
	Method           string            `json:"method" yaml:"method"`
	URL              string            `json:"url" yaml:"url"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body             any               `json:"body,omitempty" yaml:"body,omitempty"`
	ExpectedStatus   *int              `json:"expectedStatus,omitempty" yaml:"expectedStatus,omitempty"`
	ExpectedResponse *ExpectedResponse `json:"expectedResponse,omitempty" yaml:"expectedResponse,omitempty"`
}

// ExpectedResponse groups the optional body criteria of an API test.
type ExpectedResponse struct {
	Contains []string          `json:"contains,omitempty" yaml:"contains,omitempty"`
	Fields   []string          `json:"fields,omitempty" yaml:"fields,omitempty"`
	Schema   map[string]string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// IsUI reports whether the case runs against the browser session.
func (tc TestCase) IsUI() bool {
	return tc.Type != KindAPI
}

// TimeoutOr returns the configured timeout or def when none was given.
func (tc TestCase) TimeoutOr(def time.Duration) time.Duration {
	if tc.Timeout == nil || *tc.Timeout < 0 {
		return def
	}
	return time.Duration(*tc.Timeout) * time.Millisecond
}

// WithSelector returns a copy of the case pointing at a different selector.
func (tc TestCase) WithSelector(selector string) TestCase {
	out := tc
	out.Selector = selector
	return out
}

// Validate checks the structural shape of a case. It does not check that
// selectors resolve; that only happens at execution time.
func (tc TestCase) Validate() error {
	if strings.TrimSpace(tc.Name) == "" {
		return fmt.Errorf("test case name is required")
	}
	if !tc.Type.Valid() {
		return fmt.Errorf("test case %q: unknown type %q", tc.Name, tc.Type)
	}
	switch tc.Type {
	case KindClick, KindInput, KindAssertion:
		if strings.TrimSpace(tc.Selector) == "" {
			return fmt.Errorf("test case %q: %s requires a selector", tc.Name, tc.Type)
		}
	case KindNavigation:
		if strings.TrimSpace(tc.Value) == "" {
			return fmt.Errorf("test case %q: navigation requires a value (url)", tc.Name)
		}
	case KindAPI:
		if tc.APITest == nil {
			return fmt.Errorf("test case %q: api requires apiTest", tc.Name)
		}
		if strings.TrimSpace(tc.APITest.URL) == "" {
			return fmt.Errorf("test case %q: apiTest.url is required", tc.Name)
		}
	}
	return nil
}

// ValidateAll validates each case and rejects duplicate names.
func ValidateAll(cases []TestCase) error {
	seen := make(map[string]struct{}, len(cases))
	for _, tc := range cases {
		if err := tc.Validate(); err != nil {
			return err
		}
		if _, dup := seen[tc.Name]; dup {
			return fmt.Errorf("duplicate test case name %q", tc.Name)
		}
		seen[tc.Name] = struct{}{}
	}
	return nil
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int {
	return &v
}
