// Package apitest executes api test cases: one HTTP request per case, judged
// against an optional status, substring, field and schema expectation.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"testpilot/internal/config"
	"testpilot/internal/failure"
	"testpilot/internal/logging"
	"testpilot/internal/types"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Options configures a Validator.
type Options struct {
	BaseURL           string
	DefaultHeaders    map[string]string
	DefaultTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxBodyBytes      int64
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// OptionsFromConfig maps the api config section onto Options.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		BaseURL:           c.API.BaseURL,
		DefaultHeaders:    c.API.DefaultHeaders,
		DefaultTimeout:    c.GetAPITimeout(),
		RequestsPerSecond: c.API.RequestsPerSecond,
		Burst:             c.API.Burst,
		MaxBodyBytes:      c.API.MaxBodyBytes,
	}
}

// Validator runs api test cases. Cookies set by one response are sent with
// later requests of the same Validator, so one Validator belongs to one run.
// Long-lived callers keep a template and call ForRun per run.
type Validator struct {
	client    *http.Client
	transport http.RoundTripper
	baseURL   string
	headers   map[string]string
	timeout   time.Duration
	maxBody   int64
	limiter   *rate.Limiter
}

// New creates a Validator.
func New(opts Options) (*Validator, error) {
	client, err := newClient(opts.Transport)
	if err != nil {
		return nil, err
	}

	v := &Validator{
		client:    client,
		transport: opts.Transport,
		baseURL:   opts.BaseURL,
		headers:   opts.DefaultHeaders,
		timeout:   opts.DefaultTimeout,
		maxBody:   opts.MaxBodyBytes,
	}
	if v.timeout <= 0 {
		v.timeout = types.DefaultAPITimeout
	}
	if v.maxBody <= 0 {
		v.maxBody = 1 << 20
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return v, nil
}

// BaseURL returns the configured base URL.
func (v *Validator) BaseURL() string {
	return v.baseURL
}

// ForRun returns a copy of v with its own empty cookie jar, resolving
// relative URLs against base (v's base URL when empty). The rate limiter
// stays shared.
func (v *Validator) ForRun(base string) (*Validator, error) {
	client, err := newClient(v.transport)
	if err != nil {
		return nil, err
	}
	cp := *v
	cp.client = client
	if base != "" {
		cp.baseURL = base
	}
	return &cp, nil
}

func newClient(transport http.RoundTripper) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Transport: transport}, nil
}

// Run executes tc. It never returns an error: every problem becomes a failed
// result.
func (v *Validator) Run(ctx context.Context, tc types.TestCase) types.TestResult {
	start := time.Now()
	spec := tc.APITest
	if spec == nil {
		return types.Failed(tc.Name, "api test case has no apiTest", 0)
	}

	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method == "" {
		method = http.MethodGet
	}
	echo := types.APIRequestEcho{
		Method:  method,
		URL:     BuildURL(v.baseURL, spec.URL),
		Headers: v.requestHeaders(method, spec),
	}
	if hasBody(method) {
		echo.Body = spec.Body
	}

	reqCtx, cancel := context.WithTimeout(ctx, tc.TimeoutOr(v.timeout))
	defer cancel()

	req, err := v.newRequest(reqCtx, echo, spec.Body)
	if err != nil {
		logging.APIWarn("%s: %v", tc.Name, err)
		res := types.Failed(tc.Name, err.Error(), time.Since(start))
		res.APIResponse = &types.APIResponse{Request: echo}
		return res
	}

	if v.limiter != nil {
		if err := v.limiter.Wait(reqCtx); err != nil {
			res := types.Failed(tc.Name, fmt.Sprintf("API request failed: %v", err), time.Since(start))
			res.APIResponse = &types.APIResponse{Request: echo}
			return res
		}
	}

	logging.APIDebug("%s %s", method, echo.URL)
	sent := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		ferr := failure.Wrap(failure.NetworkUnreachable, err, "API request failed: %v", err)
		logging.APIWarn("%s: %v", tc.Name, ferr)
		res := types.Failed(tc.Name, ferr.Error(), time.Since(start))
		res.APIResponse = &types.APIResponse{Request: echo}
		return res
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBody+1))
	if err != nil {
		ferr := failure.Wrap(failure.NetworkUnreachable, err, "API response could not be read: %v", err)
		res := types.Failed(tc.Name, ferr.Error(), time.Since(start))
		res.APIResponse = &types.APIResponse{Request: echo}
		return res
	}
	if int64(len(raw)) > v.maxBody {
		msg := fmt.Sprintf("API response exceeds %d bytes", v.maxBody)
		logging.APIWarn("%s: %s", tc.Name, msg)
		res := types.Failed(tc.Name, msg, time.Since(start))
		res.APIResponse = &types.APIResponse{Request: echo, Response: &types.APIResponseEcho{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Headers:    flattenHeaders(resp.Header),
			Duration:   types.Millis(time.Since(sent)),
		}}
		return res
	}
	body := decodeBody(raw)

	out := &types.APIResponseEcho{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
		Duration:   types.Millis(time.Since(sent)),
	}
	checks := Validate(spec, resp.StatusCode, raw, body)

	result := types.TestResult{
		Name:        tc.Name,
		Status:      types.StatusPassed,
		Duration:    types.Millis(time.Since(start)),
		APIResponse: &types.APIResponse{Request: echo, Response: out, Validations: &checks},
	}
	if !checks.All() {
		result.Status = types.StatusFailed
		result.Message = describeFailures(spec, checks, resp.StatusCode)
	}
	logging.API("%s %s -> %d (%s)", method, echo.URL, resp.StatusCode, result.Status)
	return result
}

func (v *Validator) requestHeaders(method string, spec *types.APISpec) map[string]string {
	headers := make(map[string]string, len(v.headers)+len(spec.Headers)+1)
	for k, val := range v.headers {
		headers[k] = val
	}
	for k, val := range spec.Headers {
		headers[k] = val
	}
	if hasBody(method) && spec.Body != nil {
		if _, isString := spec.Body.(string); !isString && !hasHeader(headers, "Content-Type") {
			headers["Content-Type"] = "application/json"
		}
	}
	return headers
}

func (v *Validator) newRequest(ctx context.Context, echo types.APIRequestEcho, body any) (*http.Request, error) {
	var reader io.Reader
	if hasBody(echo.Method) && body != nil {
		payload, err := encodeBody(body)
		if err != nil {
			return nil, failure.Wrap(failure.RequestConstructionFailure, err, "Failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, echo.Method, echo.URL, reader)
	if err != nil {
		return nil, failure.Wrap(failure.RequestConstructionFailure, err, "Failed to build request: %v", err)
	}
	for k, val := range echo.Headers {
		req.Header.Set(k, val)
	}
	return req, nil
}

// BuildURL resolves path against base. Absolute http(s) URLs are returned
// verbatim; otherwise the two parts are joined with exactly one slash.
func BuildURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// encodeBody sends strings raw and everything else as JSON.
func encodeBody(body any) ([]byte, error) {
	if s, ok := body.(string); ok {
		return []byte(s), nil
	}
	return marshal(body)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeBody parses JSON bodies and keeps anything else as text.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return string(raw)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(raw)
	}
	return v
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[strings.ToLower(k)] = h.Get(k)
	}
	return out
}

func describeFailures(spec *types.APISpec, v types.Validations, status int) string {
	var parts []string
	if !v.StatusCode && spec.ExpectedStatus != nil {
		parts = append(parts, fmt.Sprintf("expected status %d but got %d", *spec.ExpectedStatus, status))
	}
	if !v.ResponseContains {
		parts = append(parts, "response does not contain every expected string")
	}
	if !v.RequiredFields {
		parts = append(parts, "response is missing required fields")
	}
	if !v.SchemaMatch {
		parts = append(parts, "response does not match schema")
	}
	if len(parts) == 0 {
		return "API validation failed"
	}
	return "API validation failed: " + strings.Join(parts, "; ")
}
