package runner

import (
	"testpilot/internal/config"
	"testpilot/internal/generate"
	"testpilot/internal/healing"
	"testpilot/internal/logging"
	"testpilot/internal/report"
)

// Model is the AI capability shared by gemini healing, explanations and
// commentary. *ai.Client satisfies it.
type Model interface {
	healing.JSONAsker
	report.TextAsker
}

// HealersFromConfig returns the healer factory for healing.strategy, or nil
// when healing is disabled. Strategies needing a model fall back to the DOM
// healer when model is nil.
func HealersFromConfig(cfg *config.Config, model Model) HealerFactory {
	if !cfg.Healing.Enabled {
		return nil
	}
	minConf := cfg.Healing.MinConfidence
	strategy := cfg.Healing.Strategy
	if strategy != "dom" && model == nil {
		logging.RunnerWarn("healing strategy %q needs an AI model; using dom", strategy)
		strategy = "dom"
	}
	switch strategy {
	case "gemini":
		return func(page healing.Snapshotter) healing.Healer {
			return healing.NewGeminiHealer(model, page, minConf)
		}
	case "chain":
		return func(page healing.Snapshotter) healing.Healer {
			return healing.Chain{
				healing.NewDOMHealer(page, healing.WithCandidateFloor(minConf)),
				healing.NewGeminiHealer(model, page, minConf),
			}
		}
	default:
		return func(page healing.Snapshotter) healing.Healer {
			return healing.NewDOMHealer(page, healing.WithCandidateFloor(minConf))
		}
	}
}

// OptionsFromConfig maps configuration onto runner options. model may be nil.
func OptionsFromConfig(cfg *config.Config, model Model) []Option {
	opts := []Option{
		WithSelectorTimeout(cfg.GetSelectorTimeout()),
		WithCloseOnError(cfg.Browser.CloseOnError),
		WithMinConfidence(cfg.Healing.MinConfidence),
		WithGenerator(generate.DOMGenerator{}),
	}
	if f := HealersFromConfig(cfg, model); f != nil {
		opts = append(opts, WithHealers(f))
	}
	if model != nil && cfg.AI.ExplainFailures {
		opts = append(opts, WithExplainer(report.NewGeminiExplainer(model)))
	}
	if model != nil && cfg.AI.Commentary {
		opts = append(opts, WithCommentator(report.NewGeminiCommentator(model)))
	}
	return opts
}
