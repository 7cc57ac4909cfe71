package browser

import (
	"sync"
	"testing"
	"time"

	"testpilot/internal/config"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func TestConsoleLog_Buckets(t *testing.T) {
	c := NewConsoleLog()
	c.Record("error", "boom")
	c.Record("warning", "careful")
	c.Record("log", "ignored")
	c.RecordPageError("ReferenceError: x is not defined")

	snap := c.Snapshot()
	require.Len(t, snap.Errors, 1)
	require.Len(t, snap.Warnings, 1)
	assert.Equal(t, "boom", snap.Errors[0].Text)
	assert.Equal(t, "careful", snap.Warnings[0].Text)
	assert.Equal(t, []string{"ReferenceError: x is not defined"}, snap.PageErrors)

	assert.Equal(t, []string{
		"Page error: ReferenceError: x is not defined",
		"Console error: boom",
	}, snap.RunErrors())
}

func TestConsoleLog_SnapshotIsACopy(t *testing.T) {
	c := NewConsoleLog()
	c.Record("error", "first")
	snap := c.Snapshot()
	c.Record("error", "second")

	assert.Len(t, snap.Errors, 1)
	assert.Len(t, c.Snapshot().Errors, 2)
}

func TestConsoleLog_LogsAreIndependent(t *testing.T) {
	a, b := NewConsoleLog(), NewConsoleLog()
	a.Record("error", "only in a")

	assert.Empty(t, b.Snapshot().Errors)
}

func TestConsoleLog_ConcurrentRecord(t *testing.T) {
	c := NewConsoleLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("warning", "w")
			c.RecordPageError("e")
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Len(t, snap.Warnings, 50)
	assert.Len(t, snap.PageErrors, 50)
}

func TestConsoleLog_CDPEvents(t *testing.T) {
	c := NewConsoleLog()
	c.onConsole(&proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeError,
		Args: []*proto.RuntimeRemoteObject{
			{Value: gson.New("failed to load")},
			{Description: "Error: 404"},
			nil,
		},
	})
	c.onException(&proto.RuntimeExceptionThrown{
		ExceptionDetails: &proto.RuntimeExceptionDetails{
			Text:      "Uncaught",
			Exception: &proto.RuntimeRemoteObject{Description: "TypeError: undefined is not a function"},
		},
	})
	c.onException(&proto.RuntimeExceptionThrown{})

	snap := c.Snapshot()
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "failed to load Error: 404", snap.Errors[0].Text)
	assert.Equal(t, []string{"TypeError: undefined is not a function", "unknown exception"}, snap.PageErrors)
}

func TestNewConfig(t *testing.T) {
	app := config.DefaultConfig()
	app.Browser.Headless = false
	app.Browser.SettleDelay = "250ms"

	cfg := NewConfig(app)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 60*time.Second, cfg.GetNavigationTimeout())
	assert.Equal(t, 1280, cfg.GetViewportWidth())
}

func TestConfigFallbacks(t *testing.T) {
	var cfg Config
	assert.Equal(t, 1280, cfg.GetViewportWidth())
	assert.Equal(t, 720, cfg.GetViewportHeight())
	assert.Equal(t, 10*time.Second, cfg.GetLoginTimeout())
	assert.Equal(t, config.DefaultUsernameSelectors, cfg.usernameSelectors())
	assert.Equal(t, config.DefaultSubmitSelectors, cfg.submitSelectors())
}
