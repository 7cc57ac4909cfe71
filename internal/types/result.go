package types

import "time"

// Status is the outcome of a single test case.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// TestResult is the recorded outcome of one TestCase.
type TestResult struct {
	Name          string       `json:"name"`
	Status        Status       `json:"status"`
	Message       string       `json:"message,omitempty"`
	Duration      int64        `json:"duration"` // wall clock, milliseconds
	Screenshot    string       `json:"screenshot,omitempty"`
	Healed        bool         `json:"healed,omitempty"`
	HealingInfo   *HealingInfo `json:"healingInfo,omitempty"`
	APIResponse   *APIResponse `json:"apiResponse,omitempty"`
	AIExplanation string       `json:"aiExplanation,omitempty"`
}

// Passed reports whether the result counts as a pass.
func (r TestResult) Passed() bool {
	return r.Status == StatusPassed
}

// HealingInfo describes how a failing step was repaired.
type HealingInfo struct {
	Strategy    string  `json:"strategy"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation,omitempty"`
}

// APIResponse echoes what an api test sent, what came back and how it was judged.
type APIResponse struct {
	Request     APIRequestEcho   `json:"request"`
	Response    *APIResponseEcho `json:"response,omitempty"`
	Validations *Validations     `json:"validations,omitempty"`
}

// APIRequestEcho is the request as it was sent.
type APIRequestEcho struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// APIResponseEcho is the response as it was received.
type APIResponseEcho struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   int64             `json:"duration"`
}

// Validations is the validation matrix of one API response. Every criterion
// that was not requested is reported as passing.
type Validations struct {
	StatusCode       bool `json:"statusCode"`
	ResponseContains bool `json:"responseContains"`
	RequiredFields   bool `json:"requiredFields"`
	SchemaMatch      bool `json:"schemaMatch"`
}

// All reports whether every criterion holds.
func (v Validations) All() bool {
	return v.StatusCode && v.ResponseContains && v.RequiredFields && v.SchemaMatch
}

// Millis converts a duration to the integer milliseconds used on the wire.
func Millis(d time.Duration) int64 {
	return d.Milliseconds()
}

// Failed builds a failed result carrying msg.
func Failed(name, msg string, d time.Duration) TestResult {
	return TestResult{Name: name, Status: StatusFailed, Message: msg, Duration: Millis(d)}
}

// PassedResult builds a passed result.
func PassedResult(name string, d time.Duration) TestResult {
	return TestResult{Name: name, Status: StatusPassed, Duration: Millis(d)}
}
