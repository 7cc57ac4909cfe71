package main

import (
	"context"
	"fmt"

	"testpilot/internal/ai"
	"testpilot/internal/apitest"
	"testpilot/internal/browser"
	"testpilot/internal/logging"
	"testpilot/internal/runner"
)

// deps holds what every command builds from the config.
type deps struct {
	sessions *browser.SessionManager
	runner   *runner.Runner
}

// newDeps wires the browser, API validator and optional model into a runner.
func newDeps(ctx context.Context, extra ...runner.Option) (*deps, error) {
	validator, err := apitest.New(apitest.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("api validator: %w", err)
	}

	var model runner.Model
	if cfg.NeedsAI() {
		if cfg.AI.APIKey == "" {
			logging.BootWarn("AI features are enabled but no API key is set; continuing without them")
		} else {
			client, err := ai.FromConfig(ctx, cfg)
			if err != nil {
				return nil, err
			}
			model = client
			logging.Boot("AI model %s enabled", client.Model())
		}
	}

	sessions := browser.NewSessionManager(browser.NewConfig(cfg))
	opts := append(runner.OptionsFromConfig(cfg, model), extra...)
	return &deps{
		sessions: sessions,
		runner:   runner.New(runner.BrowserSessions{Manager: sessions}, validator, opts...),
	}, nil
}

// Close shuts down any browser still open.
func (d *deps) Close() {
	if err := d.sessions.Shutdown(); err != nil {
		logging.BootWarn("browser shutdown: %v", err)
	}
}
