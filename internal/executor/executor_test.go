package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"testpilot/internal/failure"
	"testpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage serves a fixed DOM of selector -> text.
type fakePage struct {
	elements map[string]string
	typed    map[string]string
	clicked  []string
	visited  []string
	gotoErr  error
	shot     []byte
	shotErr  error
	lastWait time.Duration
}

func newFakePage(elements map[string]string) *fakePage {
	return &fakePage{elements: elements, typed: map[string]string{}, shot: []byte{0x89, 'P', 'N', 'G'}}
}

func (p *fakePage) Click(_ context.Context, sel string, timeout time.Duration) error {
	p.lastWait = timeout
	if _, ok := p.elements[sel]; !ok {
		return failure.New(failure.SelectorTimeout, "Timeout waiting for selector: %s", sel)
	}
	p.clicked = append(p.clicked, sel)
	return nil
}

func (p *fakePage) Type(_ context.Context, sel, value string, timeout time.Duration) error {
	p.lastWait = timeout
	if _, ok := p.elements[sel]; !ok {
		return failure.New(failure.SelectorTimeout, "Timeout waiting for selector: %s", sel)
	}
	p.typed[sel] += value
	return nil
}

func (p *fakePage) Goto(_ context.Context, url string) error {
	p.visited = append(p.visited, url)
	return p.gotoErr
}

func (p *fakePage) TextContent(_ context.Context, sel string) (string, bool, error) {
	text, ok := p.elements[sel]
	return text, ok, nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return p.shot, p.shotErr
}

type fakeAPI struct{ calls int }

func (a *fakeAPI) Run(_ context.Context, tc types.TestCase) types.TestResult {
	a.calls++
	return types.PassedResult(tc.Name, time.Millisecond)
}

func TestExecute_Click(t *testing.T) {
	page := newFakePage(map[string]string{"#go": "Go"})
	ex := New(page, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "c", Type: types.KindClick, Selector: "#go"})
	assert.True(t, res.Passed())
	assert.Equal(t, []string{"#go"}, page.clicked)
	assert.Equal(t, types.DefaultSelectorTimeout, page.lastWait)
	assert.Empty(t, res.Screenshot)
}

func TestExecute_ClickMissingSelector(t *testing.T) {
	page := newFakePage(nil)
	ex := New(page, nil)

	res, err := ex.Attempt(context.Background(), types.TestCase{Name: "c", Type: types.KindClick, Selector: "#nope"})
	require.Error(t, err)
	assert.Equal(t, failure.SelectorTimeout, failure.KindOf(err))
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, "Timeout waiting for selector: #nope", res.Message)
	assert.True(t, strings.HasPrefix(res.Screenshot, "data:image/png;base64,"))
}

func TestExecute_InputUsesCaseTimeout(t *testing.T) {
	page := newFakePage(map[string]string{"#q": ""})
	ex := New(page, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "i", Type: types.KindInput, Selector: "#q", Value: "abc", Timeout: types.IntPtr(250)})
	assert.True(t, res.Passed())
	assert.Equal(t, "abc", page.typed["#q"])
	assert.Equal(t, 250*time.Millisecond, page.lastWait)
}

func TestExecute_SelectorTimeoutOption(t *testing.T) {
	page := newFakePage(map[string]string{"#q": ""})
	ex := New(page, nil, WithSelectorTimeout(2*time.Second))

	ex.Execute(context.Background(), types.TestCase{Name: "i", Type: types.KindInput, Selector: "#q"})
	assert.Equal(t, 2*time.Second, page.lastWait)
}

func TestExecute_Navigation(t *testing.T) {
	page := newFakePage(nil)
	ex := New(page, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "n", Type: types.KindNavigation, Value: "http://app.test/a"})
	assert.True(t, res.Passed())
	assert.Equal(t, []string{"http://app.test/a"}, page.visited)

	page.gotoErr = failure.New(failure.NavigationTimeout, "Navigation to x timed out")
	res = ex.Execute(context.Background(), types.TestCase{Name: "n2", Type: types.KindNavigation, Value: "x"})
	assert.False(t, res.Passed())
	assert.Equal(t, "Navigation to x timed out", res.Message)
}

func TestExecute_Assertion(t *testing.T) {
	page := newFakePage(map[string]string{"#title": "Welcome", "#empty": ""})
	ex := New(page, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		tc       types.TestCase
		wantPass bool
		wantMsg  string
		wantKind failure.Kind
	}{
		{"presence only", types.TestCase{Name: "a", Type: types.KindAssertion, Selector: "#title"}, true, "", ""},
		{"exact text", types.TestCase{Name: "a", Type: types.KindAssertion, Selector: "#title", Expected: "Welcome"}, true, "", ""},
		{"empty text present", types.TestCase{Name: "a", Type: types.KindAssertion, Selector: "#empty"}, true, "", ""},
		{"missing element", types.TestCase{Name: "a", Type: types.KindAssertion, Selector: "#logo"}, false, "Element not found: #logo", failure.ElementNotFound},
		{"text mismatch", types.TestCase{Name: "a", Type: types.KindAssertion, Selector: "#title", Expected: "Hello"}, false, `Expected text "Hello" but found "Welcome"`, failure.AssertionMismatch},
		{"no substring match", types.TestCase{Name: "a", Type: types.KindAssertion, Selector: "#title", Expected: "Welc"}, false, `Expected text "Welc" but found "Welcome"`, failure.AssertionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ex.Attempt(ctx, tt.tc)
			assert.Equal(t, tt.wantPass, res.Passed())
			assert.Equal(t, tt.wantMsg, res.Message)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, failure.KindOf(err))
			}
		})
	}
}

func TestExecute_WaitNeverFails(t *testing.T) {
	ex := New(nil, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "w", Type: types.KindWait, Timeout: types.IntPtr(500)})
	assert.True(t, res.Passed())
	assert.GreaterOrEqual(t, res.Duration, int64(500))
}

func TestExecute_WaitDefault(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps for the default wait")
	}
	ex := New(nil, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "w", Type: types.KindWait})
	assert.True(t, res.Passed())
	assert.GreaterOrEqual(t, res.Duration, int64(1000))
}

func TestExecute_ScreenshotErrorsAreSwallowed(t *testing.T) {
	page := newFakePage(nil)
	page.shotErr = errors.New("target closed")
	ex := New(page, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "c", Type: types.KindClick, Selector: "#x"})
	assert.False(t, res.Passed())
	assert.Empty(t, res.Screenshot)
}

func TestExecute_APIDelegates(t *testing.T) {
	api := &fakeAPI{}
	ex := New(nil, api)

	res := ex.Execute(context.Background(), types.TestCase{Name: "api", Type: types.KindAPI, APITest: &types.APISpec{URL: "/x"}})
	assert.True(t, res.Passed())
	assert.Equal(t, 1, api.calls)
}

func TestExecute_NoSessionOrUnknownKind(t *testing.T) {
	ex := New(nil, nil)

	res := ex.Execute(context.Background(), types.TestCase{Name: "c", Type: types.KindClick, Selector: "#x"})
	assert.False(t, res.Passed())
	assert.Contains(t, res.Message, "no browser session")

	res = ex.Execute(context.Background(), types.TestCase{Name: "h", Type: "hover"})
	assert.False(t, res.Passed())
	assert.Equal(t, "Unknown test type: hover", res.Message)

	res = ex.Execute(context.Background(), types.TestCase{Name: "a", Type: types.KindAPI})
	assert.False(t, res.Passed())
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQI=", DataURL([]byte{1, 2}))
}
