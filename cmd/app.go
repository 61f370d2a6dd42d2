package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/wagner/internal/cache"
	"github.com/lehigh-university-libraries/wagner/internal/config"
	"github.com/lehigh-university-libraries/wagner/internal/gateway"
	"github.com/lehigh-university-libraries/wagner/internal/gemini"
	"github.com/lehigh-university-libraries/wagner/internal/ollama"
	"github.com/lehigh-university-libraries/wagner/internal/openai"
	"github.com/lehigh-university-libraries/wagner/internal/pipeline"
	"github.com/lehigh-university-libraries/wagner/internal/providers"
	"github.com/lehigh-university-libraries/wagner/internal/storage"
	"golang.org/x/time/rate"
)

// app holds the services shared by the subcommands
type app struct {
	cfg      config.Config
	store    *storage.Store
	cache    *cache.Store
	gateway  *gateway.Service
	pipeline *pipeline.Pipeline
}

// openStore loads the configuration and opens the database only
func openStore() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Database opened", "path", store.Path())

	return &app{cfg: cfg, store: store}, nil
}

// openApp opens the database and builds the model gateway and pipeline
func openApp() (*app, error) {
	a, err := openStore()
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	provider, err := newProvider(a.cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.cfg.CachePath != "" {
		a.cache, err = cache.Open(a.cfg.CachePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		slog.Info("Response cache enabled", "path", a.cfg.CachePath)
	}

	var limiter *rate.Limiter
	if a.cfg.LLMRateEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(a.cfg.LLMRateEvery), a.cfg.LLMRateBurst)
	}

	// cache hits skip the throttle; only image prompts are cached so retranslation reaches the model
	upstream := providers.Throttle(provider, limiter)
	a.gateway = gateway.NewService(cache.Wrap(upstream, a.cache), upstream, gateway.Options{
		Model: a.cfg.Model(),
	})
	a.pipeline = pipeline.New(a.gateway, a.store, pipeline.Options{
		UploadsDir:           a.cfg.UploadsDir,
		PreviousContextChars: a.cfg.PreviousContextChars,
		MaxConcurrent:        int(a.cfg.MaxConcurrentOCR),
		DetectLayout:         a.cfg.DetectLayout,
	})

	slog.Info("LLM provider configured", "provider", a.cfg.LLMProvider, "model", a.cfg.Model())
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func newProvider(cfg config.Config) (providers.Provider, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMTimeout), nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.LLMTimeout), nil
	case "gemini":
		return gemini.New(cfg.GeminiAPIKey, cfg.LLMTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.LLMProvider)
	}
}
