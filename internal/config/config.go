package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all testpilot configuration. Every recognised option is a
// field here; unknown keys in a config file are rejected by Load.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	API     APIConfig     `yaml:"api"`
	Healing HealingConfig `yaml:"healing"`
	AI      AIConfig      `yaml:"ai"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// BrowserConfig configures the browser session of a run.
type BrowserConfig struct {
	Headless          bool     `yaml:"headless"`
	Bin               string   `yaml:"bin"`          // Chrome binary, empty = rod download/lookup
	DebuggerURL       string   `yaml:"debugger_url"` // connect instead of launching
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	SettleDelay       string   `yaml:"settle_delay"`
	SelectorTimeout   string   `yaml:"selector_timeout"`
	LoginTimeout      string   `yaml:"login_timeout"`
	CloseOnError      bool     `yaml:"close_on_error"`
	UsernameSelectors []string `yaml:"username_selectors"`
	PasswordSelectors []string `yaml:"password_selectors"`
	SubmitSelectors   []string `yaml:"submit_selectors"`
}

// APIConfig configures the HTTP client used by api steps.
type APIConfig struct {
	BaseURL           string            `yaml:"base_url"`
	DefaultTimeout    string            `yaml:"default_timeout"`
	RequestsPerSecond float64           `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int               `yaml:"burst"`
	DefaultHeaders    map[string]string `yaml:"default_headers"`
	MaxBodyBytes      int64             `yaml:"max_body_bytes"`
}

// HealingConfig configures the self-healing collaborator.
type HealingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Strategy      string  `yaml:"strategy"` // dom, gemini, chain
	MinConfidence float64 `yaml:"min_confidence"`
}

// AIConfig configures the model behind gemini healing, failure explanations
// and run commentary.
type AIConfig struct {
	Provider        string `yaml:"provider"`
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	Timeout         string `yaml:"timeout"`
	ExplainFailures bool   `yaml:"explain_failures"`
	Commentary      bool   `yaml:"commentary"`
}

// ServerConfig configures `pilot serve`.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
}

// Default login probes. Order matters: the first selector present wins.
var (
	DefaultUsernameSelectors = []string{
		`input[type="email"]`,
		`input[name="email"]`,
		`input[name="username"]`,
		`input[id="username"]`,
		`input[id="email"]`,
		`input[name="login"]`,
		`input[type="text"]`,
	}
	DefaultPasswordSelectors = []string{
		`input[type="password"]`,
		`input[name="password"]`,
		`input[id="password"]`,
	}
	DefaultSubmitSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button[id*="login"]`,
		`button[class*="login"]`,
		`button`,
	}
)

// ValidHealingStrategies lists the accepted healing.strategy values.
var ValidHealingStrategies = []string{"dom", "gemini", "chain"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    720,
			NavigationTimeout: "60s",
			SettleDelay:       "2s",
			SelectorTimeout:   "5s",
			LoginTimeout:      "10s",
			CloseOnError:      true,
			UsernameSelectors: append([]string(nil), DefaultUsernameSelectors...),
			PasswordSelectors: append([]string(nil), DefaultPasswordSelectors...),
			SubmitSelectors:   append([]string(nil), DefaultSubmitSelectors...),
		},
		API: APIConfig{
			DefaultTimeout: "30s",
			Burst:          1,
			MaxBodyBytes:   1 << 20,
		},
		Healing: HealingConfig{
			Enabled:       true,
			Strategy:      "dom",
			MinConfidence: 0.5,
		},
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			MaxConcurrentRuns: 2,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := decodeStrict(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment. Variables
// that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TESTPILOT_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TESTPILOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("TESTPILOT_CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("TESTPILOT_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("TESTPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	// GEMINI_API_KEY takes precedence over the generic Google key.
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.AI.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.AI.APIKey = key
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	for name, raw := range map[string]string{
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"browser.settle_delay":       c.Browser.SettleDelay,
		"browser.selector_timeout":   c.Browser.SelectorTimeout,
		"browser.login_timeout":      c.Browser.LoginTimeout,
		"api.default_timeout":        c.API.DefaultTimeout,
		"ai.timeout":                 c.AI.Timeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative")
	}

	if c.Healing.Enabled {
		if !contains(ValidHealingStrategies, c.Healing.Strategy) {
			return fmt.Errorf("invalid healing strategy: %s (valid: %v)", c.Healing.Strategy, ValidHealingStrategies)
		}
		if c.Healing.MinConfidence < 0 || c.Healing.MinConfidence > 1 {
			return fmt.Errorf("healing.min_confidence must be within [0,1], got %v", c.Healing.MinConfidence)
		}
	}

	if c.NeedsAI() {
		if c.AI.Provider != "gemini" {
			return fmt.Errorf("invalid AI provider: %s (valid: [gemini])", c.AI.Provider)
		}
		if c.AI.APIKey == "" {
			return fmt.Errorf("AI features enabled but no API key configured (set GEMINI_API_KEY or ai.api_key)")
		}
	}

	if c.Server.MaxConcurrentRuns < 1 {
		return fmt.Errorf("server.max_concurrent_runs must be at least 1")
	}
	return nil
}

// NeedsAI reports whether any enabled feature talks to the model.
func (c *Config) NeedsAI() bool {
	usesModelHealer := c.Healing.Enabled && (c.Healing.Strategy == "gemini" || c.Healing.Strategy == "chain")
	return usesModelHealer || c.AI.ExplainFailures || c.AI.Commentary
}

// GetNavigationTimeout returns the page navigation bound.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 60*time.Second)
}

// GetSettleDelay returns the fixed delay applied after navigation.
func (c *Config) GetSettleDelay() time.Duration {
	return parseDuration(c.Browser.SettleDelay, 2*time.Second)
}

// GetSelectorTimeout returns how long click/input steps wait for their selector.
func (c *Config) GetSelectorTimeout() time.Duration {
	return parseDuration(c.Browser.SelectorTimeout, 5*time.Second)
}

// GetLoginTimeout returns how long login waits for the post-submit navigation.
func (c *Config) GetLoginTimeout() time.Duration {
	return parseDuration(c.Browser.LoginTimeout, 10*time.Second)
}

// GetAPITimeout returns the default per-request timeout for api steps.
func (c *Config) GetAPITimeout() time.Duration {
	return parseDuration(c.API.DefaultTimeout, 30*time.Second)
}

// GetAITimeout returns the model call timeout.
func (c *Config) GetAITimeout() time.Duration {
	return parseDuration(c.AI.Timeout, 30*time.Second)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
