//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"testpilot/internal/browser"
	"testpilot/internal/failure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form action="/home" method="get">
  <input type="email" name="email">
  <input type="password" name="password">
  <button type="submit">Sign in</button>
</form>
</body></html>`

const homePage = `<html><body>
<h1 id="title">Welcome</h1>
<button id="submit-btn" onclick="document.getElementById('title').textContent='Clicked'">Go</button>
<input id="q">
<script>console.error("from page"); console.warn("heads up"); setTimeout(function(){ throw new Error("late") }, 0);</script>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, loginPage) })
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, homePage) })
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func openSession(t *testing.T) (*browser.SessionManager, *browser.Session) {
	t.Helper()
	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.SettleDelay = 100 * time.Millisecond
	cfg.NavigationTimeout = 10 * time.Second

	sm := browser.NewSessionManager(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := sm.Open(ctx)
	require.NoError(t, err, "Failed to start browser")
	t.Cleanup(func() {
		if err := sm.Shutdown(); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	})
	return sm, s
}

func TestSession_Primitives_Integration(t *testing.T) {
	ts := newSite(t)
	_, s := openSession(t)
	ctx := context.Background()

	require.NoError(t, s.NavigateToPage(ctx, ts.URL+"/home"))

	text, found, err := s.TextContent(ctx, "#title")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Welcome", text)

	require.NoError(t, s.Click(ctx, "#submit-btn", 2*time.Second))
	text, _, _ = s.TextContent(ctx, "#title")
	assert.Equal(t, "Clicked", text)

	require.NoError(t, s.Type(ctx, "#q", "hello", 2*time.Second))

	_, found, err = s.TextContent(ctx, "#missing")
	require.NoError(t, err)
	assert.False(t, found)

	err = s.Click(ctx, "#missing", 300*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, failure.SelectorTimeout, failure.KindOf(err))
	assert.Equal(t, "Timeout waiting for selector: #missing", err.Error())

	png, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "submit-btn")

	require.Eventually(t, func() bool {
		c := s.Console()
		return len(c.Errors) > 0 && len(c.Warnings) > 0 && len(c.PageErrors) > 0
	}, 5*time.Second, 100*time.Millisecond)
}

func TestSession_Login_Integration(t *testing.T) {
	ts := newSite(t)
	_, s := openSession(t)
	ctx := context.Background()

	require.NoError(t, s.NavigateToPage(ctx, ts.URL+"/login"))
	assert.True(t, s.Login(ctx, "user@example.com", "secret"))

	u, err := s.URL()
	require.NoError(t, err)
	assert.Contains(t, u, "/home")

	// No form on the home page: logged, not fatal.
	assert.False(t, s.Login(ctx, "user@example.com", "secret"))
}

func TestSession_CloseIsIdempotent_Integration(t *testing.T) {
	sm, s := openSession(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Equal(t, 0, sm.Active())

	_, err := s.Screenshot(context.Background())
	assert.Equal(t, failure.SessionUnavailable, failure.KindOf(err))
}
