package browser

import (
	"time"

	"testpilot/internal/config"
)

// Config holds browser configuration for one session.
type Config struct {
	DebuggerURL       string
	Bin               string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	LoginTimeout      time.Duration
	UsernameSelectors []string
	PasswordSelectors []string
	SubmitSelectors   []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return NewConfig(config.DefaultConfig())
}

// NewConfig extracts the browser section of the application config.
func NewConfig(c *config.Config) Config {
	return Config{
		DebuggerURL:       c.Browser.DebuggerURL,
		Bin:               c.Browser.Bin,
		Headless:          c.Browser.Headless,
		ViewportWidth:     c.Browser.ViewportWidth,
		ViewportHeight:    c.Browser.ViewportHeight,
		NavigationTimeout: c.GetNavigationTimeout(),
		SettleDelay:       c.GetSettleDelay(),
		LoginTimeout:      c.GetLoginTimeout(),
		UsernameSelectors: c.Browser.UsernameSelectors,
		PasswordSelectors: c.Browser.PasswordSelectors,
		SubmitSelectors:   c.Browser.SubmitSelectors,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 720
	}
	return c.ViewportHeight
}

// GetNavigationTimeout returns the navigation timeout.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 60 * time.Second
	}
	return c.NavigationTimeout
}

// GetLoginTimeout returns how long login waits for the post-submit navigation.
func (c Config) GetLoginTimeout() time.Duration {
	if c.LoginTimeout <= 0 {
		return 10 * time.Second
	}
	return c.LoginTimeout
}

func (c Config) usernameSelectors() []string {
	if len(c.UsernameSelectors) == 0 {
		return config.DefaultUsernameSelectors
	}
	return c.UsernameSelectors
}

func (c Config) passwordSelectors() []string {
	if len(c.PasswordSelectors) == 0 {
		return config.DefaultPasswordSelectors
	}
	return c.PasswordSelectors
}

func (c Config) submitSelectors() []string {
	if len(c.SubmitSelectors) == 0 {
		return config.DefaultSubmitSelectors
	}
	return c.SubmitSelectors
}
