package healing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"testpilot/internal/failure"
	"testpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExec passes every selector in ok and fails the rest.
type scriptedExec struct {
	ok    map[string]bool
	calls []types.TestCase
}

func (e *scriptedExec) Attempt(_ context.Context, tc types.TestCase) (types.TestResult, error) {
	e.calls = append(e.calls, tc)
	if e.ok[tc.Selector] {
		return types.TestResult{Name: tc.Name, Status: types.StatusPassed, Duration: 10}, nil
	}
	err := failure.New(failure.SelectorTimeout, "Timeout waiting for selector: %s", tc.Selector)
	return types.TestResult{Name: tc.Name, Status: types.StatusFailed, Message: err.Error(), Duration: 5000}, err
}

func fixed(out Outcome, err error) Healer {
	return HealerFunc(func(context.Context, types.TestCase, error) (Outcome, error) { return out, err })
}

var submit = types.TestCase{Name: "submit form", Type: types.KindClick, Selector: "#submit"}

func TestCoordinator_PassFirstTime(t *testing.T) {
	exec := &scriptedExec{ok: map[string]bool{"#submit": true}}
	called := false
	c := NewCoordinator(exec, HealerFunc(func(context.Context, types.TestCase, error) (Outcome, error) {
		called = true
		return Declined{}, nil
	}))

	res := c.Run(context.Background(), submit)
	assert.True(t, res.Passed())
	assert.False(t, res.Healed)
	assert.False(t, called)
	assert.Len(t, exec.calls, 1)
}

func TestCoordinator_HealedRetryPasses(t *testing.T) {
	exec := &scriptedExec{ok: map[string]bool{"#submit-v2": true}}
	healed := submit.WithSelector("#submit-v2")
	healed.Name = "renamed by healer"
	c := NewCoordinator(exec, fixed(Healed{TestCase: healed, Strategy: "id_prefix", Confidence: 0.8, Explanation: "renamed"}, nil))

	res := c.Run(context.Background(), submit)
	require.True(t, res.Passed())
	assert.True(t, res.Healed)
	assert.Equal(t, "submit form", res.Name)
	require.NotNil(t, res.HealingInfo)
	assert.Equal(t, types.HealingInfo{Strategy: "id_prefix", Confidence: 0.8, Explanation: "renamed"}, *res.HealingInfo)
	assert.Equal(t, int64(5010), res.Duration)
	require.Len(t, exec.calls, 2)
	assert.Equal(t, "#submit-v2", exec.calls[1].Selector)
}

func TestCoordinator_DeclinedKeepsOriginalMessage(t *testing.T) {
	exec := &scriptedExec{}
	c := NewCoordinator(exec, fixed(Declined{Reason: "nothing similar"}, nil))

	res := c.Run(context.Background(), submit)
	assert.False(t, res.Passed())
	assert.False(t, res.Healed)
	assert.Equal(t, "Timeout waiting for selector: #submit", res.Message)
	assert.Len(t, exec.calls, 1)
}

func TestCoordinator_HealerErrorKeepsOriginalMessage(t *testing.T) {
	exec := &scriptedExec{}
	c := NewCoordinator(exec, fixed(nil, errors.New("model down")))

	res := c.Run(context.Background(), submit)
	assert.Equal(t, "Timeout waiting for selector: #submit", res.Message)
	assert.Len(t, exec.calls, 1)
}

func TestCoordinator_RetryFails(t *testing.T) {
	exec := &scriptedExec{}
	c := NewCoordinator(exec, fixed(Healed{TestCase: submit.WithSelector("#other"), Strategy: "id_prefix", Confidence: 0.9}, nil))

	res := c.Run(context.Background(), submit)
	assert.False(t, res.Passed())
	assert.False(t, res.Healed)
	assert.Nil(t, res.HealingInfo)
	assert.Equal(t, "Healing failed: Timeout waiting for selector: #other", res.Message)
	assert.Len(t, exec.calls, 2, "exactly one healed retry")
}

func TestCoordinator_BelowMinConfidence(t *testing.T) {
	exec := &scriptedExec{ok: map[string]bool{"#other": true}}
	c := NewCoordinator(exec, fixed(Healed{TestCase: submit.WithSelector("#other"), Confidence: 0.3}, nil), WithMinConfidence(0.5))

	res := c.Run(context.Background(), submit)
	assert.False(t, res.Passed())
	assert.Len(t, exec.calls, 1)
}

func TestCoordinator_RejectsDangerousSelector(t *testing.T) {
	exec := &scriptedExec{}
	c := NewCoordinator(exec, fixed(Healed{TestCase: submit.WithSelector("img[onerror=alert(1)]"), Confidence: 1}, nil))

	res := c.Run(context.Background(), submit)
	assert.Equal(t, "Timeout waiting for selector: #submit", res.Message)
	assert.Len(t, exec.calls, 1)
}

func TestCoordinator_NoHealerOrAPI(t *testing.T) {
	exec := &scriptedExec{}
	res := NewCoordinator(exec, nil).Run(context.Background(), submit)
	assert.False(t, res.Passed())

	c := NewCoordinator(exec, fixed(Healed{TestCase: submit}, nil))
	exec.calls = nil
	c.Run(context.Background(), types.TestCase{Name: "api", Type: types.KindAPI})
	assert.Len(t, exec.calls, 1)
}

func TestChain(t *testing.T) {
	want := Healed{TestCase: submit.WithSelector("#b"), Strategy: "second"}
	chain := Chain{
		fixed(Declined{Reason: "first declined"}, nil),
		fixed(nil, errors.New("second broke")),
		fixed(want, nil),
	}
	out, err := chain.Heal(context.Background(), submit, nil)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = Chain{fixed(Declined{Reason: "a"}, nil), fixed(nil, errors.New("b"))}.Heal(context.Background(), submit, nil)
	require.NoError(t, err)
	assert.Equal(t, Declined{Reason: "a; b"}, out)

	out, _ = Chain{}.Heal(context.Background(), submit, nil)
	assert.IsType(t, Declined{}, out)
}

func TestValidateSelector(t *testing.T) {
	for _, ok := range []string{"#id", ".cls", "[data-testid='x']", "button.primary", "*", ":root"} {
		assert.NoError(t, ValidateSelector(ok), ok)
	}
	for _, bad := range []string{"", "a[href='javascript:alert(1)']", "<script>", "img[onload=x]", "1abc", ">div"} {
		assert.Error(t, ValidateSelector(bad), bad)
	}
}

type staticDOM struct {
	html string
	err  error
}

func (s staticDOM) HTML(context.Context) (string, error) { return s.html, s.err }

func TestDOMHealer(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		tc           types.TestCase
		wantSelector string
		wantStrategy string
	}{
		{
			name:         "id prefix",
			html:         `<form><button id="submit-v2">Send</button></form>`,
			tc:           submit,
			wantSelector: "#submit-v2",
			wantStrategy: "id_prefix",
		},
		{
			name:         "data-testid",
			html:         `<button data-testid="submit">Send</button><button id="cancel">Cancel</button>`,
			tc:           submit,
			wantSelector: "[data-testid='submit']",
			wantStrategy: "testid_match",
		},
		{
			name:         "name attribute with id",
			html:         `<input name="email" id="user-email-field">`,
			tc:           types.TestCase{Name: "email", Type: types.KindInput, Selector: "#email", Value: "a@b.com"},
			wantSelector: "#user-email-field",
			wantStrategy: "name_match",
		},
		{
			name:         "class prefix",
			html:         `<div class="card banner-v2">Hi</div>`,
			tc:           types.TestCase{Name: "banner", Type: types.KindAssertion, Selector: ".banner"},
			wantSelector: "[class^='banner'], [class*=' banner']",
			wantStrategy: "structural_match",
		},
		{
			name:         "text match",
			html:         `<h1 id="headline">Welcome back</h1><p>Other</p>`,
			tc:           types.TestCase{Name: "greeting", Type: types.KindAssertion, Selector: "h2.greeting", Expected: "Welcome back"},
			wantSelector: "#headline",
			wantStrategy: "text_match",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewDOMHealer(staticDOM{html: tt.html}).Heal(context.Background(), tt.tc, nil)
			require.NoError(t, err)
			healed, ok := out.(Healed)
			require.True(t, ok, "got %#v", out)
			assert.Equal(t, tt.wantSelector, healed.TestCase.Selector)
			assert.Equal(t, tt.wantStrategy, healed.Strategy)
			assert.Equal(t, tt.tc.Name, healed.TestCase.Name)
		})
	}
}

func TestDOMHealer_CandidateFloor(t *testing.T) {
	save := types.TestCase{Name: "save", Type: types.KindClick, Selector: "#save_btn", Value: "Save"}
	page := staticDOM{html: `<button id="save-button">Save</button><button id="cancel">Cancel</button>`}

	out, err := NewDOMHealer(page).Heal(context.Background(), save, nil)
	require.NoError(t, err)
	require.IsType(t, Healed{}, out)
	assert.Equal(t, "id_stem", out.(Healed).Strategy)

	out, err = NewDOMHealer(page, WithCandidateFloor(0.5)).Heal(context.Background(), save, nil)
	require.NoError(t, err)
	require.IsType(t, Healed{}, out)
	healed := out.(Healed)
	assert.Equal(t, "text_match", healed.Strategy)
	assert.Equal(t, "#save-button", healed.TestCase.Selector)
	assert.GreaterOrEqual(t, healed.Confidence, 0.5)

	banner := types.TestCase{Name: "banner", Type: types.KindAssertion, Selector: ".banner"}
	out, err = NewDOMHealer(staticDOM{html: `<div class="banner-v2">Hi</div>`}, WithCandidateFloor(0.5)).Heal(context.Background(), banner, nil)
	require.NoError(t, err)
	assert.IsType(t, Declined{}, out)
}

func TestDOMHealer_Declines(t *testing.T) {
	tests := []struct {
		name string
		html string
		tc   types.TestCase
	}{
		{"ambiguous", `<button id="submit-a"></button><button id="submit-b"></button>`, submit},
		{"nothing similar", `<button id="cancel"></button>`, submit},
		{"same element", `<h1 id="title">Other</h1>`, types.TestCase{Name: "t", Type: types.KindAssertion, Selector: "#title", Expected: "Hello"}},
		{"no selector", `<p></p>`, types.TestCase{Name: "n", Type: types.KindNavigation, Value: "http://x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewDOMHealer(staticDOM{html: tt.html}).Heal(context.Background(), tt.tc, nil)
			require.NoError(t, err)
			assert.IsType(t, Declined{}, out)
		})
	}
}

func TestDOMHealer_SnapshotError(t *testing.T) {
	_, err := NewDOMHealer(staticDOM{err: errors.New("closed")}).Heal(context.Background(), submit, nil)
	assert.ErrorContains(t, err, "snapshot dom")
}

type fakeModel struct {
	answer string
	err    error
	prompt string
}

func (m *fakeModel) JSON(_ context.Context, prompt string, out any) error {
	m.prompt = prompt
	if m.err != nil {
		return m.err
	}
	return json.Unmarshal([]byte(m.answer), out)
}

func TestGeminiHealer(t *testing.T) {
	dom := staticDOM{html: `<button id="send">Send</button>`}
	cause := errors.New("Timeout waiting for selector: #submit")

	model := &fakeModel{answer: `{"selector":"#send","confidence":0.82,"explanation":"button was renamed"}`}
	out, err := NewGeminiHealer(model, dom, 0.5).Heal(context.Background(), submit, cause)
	require.NoError(t, err)
	assert.Equal(t, Healed{TestCase: submit.WithSelector("#send"), Strategy: "gemini", Confidence: 0.82, Explanation: "button was renamed"}, out)
	assert.Contains(t, model.prompt, "Timeout waiting for selector: #submit")
	assert.Contains(t, model.prompt, `<button id="send">`)

	declines := []string{
		`{"selector":"","confidence":0.9}`,
		`{"selector":"#submit","confidence":0.9}`,
		`{"selector":"#send","confidence":0.2}`,
		`{"selector":"a[href='javascript:x']","confidence":0.9}`,
	}
	for _, answer := range declines {
		out, err := NewGeminiHealer(&fakeModel{answer: answer}, dom, 0.5).Heal(context.Background(), submit, cause)
		require.NoError(t, err)
		assert.IsType(t, Declined{}, out, answer)
	}

	_, err = NewGeminiHealer(&fakeModel{err: errors.New("quota")}, dom, 0.5).Heal(context.Background(), submit, cause)
	assert.ErrorContains(t, err, "quota")
}
