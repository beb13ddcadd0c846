package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/taskweave/internal/cache"
	"github.com/ShayCichocki/taskweave/internal/config"
	"github.com/ShayCichocki/taskweave/internal/decompose"
	"github.com/ShayCichocki/taskweave/internal/dispatch"
	"github.com/ShayCichocki/taskweave/internal/logging"
	"github.com/ShayCichocki/taskweave/internal/metrics"
	"github.com/ShayCichocki/taskweave/internal/orchestrator"
	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/internal/synthesis"
)

// session bundles everything a command needs to submit a request.
type session struct {
	orch    *orchestrator.Orchestrator
	metrics *metrics.Collector
	store   cache.Store
	logger  *slog.Logger
}

// Close releases the result cache.
func (r *session) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// buildOptions are command-line overrides applied on top of the config.
type buildOptions struct {
	planPath string
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level), logging.Format(cfg.Logging.Format))
}

// newService creates the Anthropic-backed reasoning service. Bedrock uses
// AWS credentials so no API key is required there.
func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (reasoning.Service, error) {
	var key string
	if !cfg.Anthropic.UseBedrock {
		k, source, err := config.ResolveAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or run 'taskweave config anthropic.api_key <key>'", err)
		}
		if err := config.ValidateAPIKey(k); err != nil {
			logger.Warn("api key looks wrong", "source", source, "error", err)
		}
		logger.Debug("api key resolved", "source", source, "key", config.MaskAPIKey(k))
		key = k
	}

	svc, err := reasoning.NewAnthropicService(ctx, reasoning.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create reasoning service: %w", err)
	}
	return svc, nil
}

// openCache opens the configured result cache. It returns nil when
// caching is disabled.
func openCache(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return openStore(cfg)
}

// openStore opens the configured backend regardless of cache.enabled.
func openStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		path := cfg.Cache.Path
		if path == "" {
			path = cache.DefaultPath()
		}
		s, err := cache.OpenSQLite(path, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return s, nil
	default:
		return cache.NewMemory(cfg.Cache.TTL), nil
	}
}

func retryPolicy(cfg *config.Config) dispatch.RetryPolicy {
	return dispatch.RetryPolicy{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		Backoff:        cfg.Dispatch.Backoff,
		RetryTransport: cfg.Dispatch.RetryTransport,
	}
}

func orchestratorConfig(cfg *config.Config) (orchestrator.Config, error) {
	policy, err := orchestrator.ParseFailurePolicy(cfg.Orchestrator.FailurePolicy)
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		MaxConcurrency: cfg.Orchestrator.MaxConcurrency,
		FailurePolicy:  policy,
		RunTimeout:     cfg.Orchestrator.RunTimeout,
		MaxCost:        cfg.Orchestrator.MaxCost,
		BudgetWarning:  cfg.Orchestrator.BudgetWarning,
	}, nil
}

// newDecomposer returns a plan file decomposer when a plan is given and a
// reasoning-backed one otherwise.
func newDecomposer(cfg *config.Config, svc reasoning.Service, planPath string, logger *slog.Logger) (decompose.Decomposer, error) {
	if planPath != "" {
		p, err := decompose.LoadPlan(planPath)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return decompose.New(svc,
		decompose.WithComplexityAnalysis(cfg.Decompose.AnalyzeComplexity),
		decompose.WithLogger(logger),
	), nil
}

// buildSession wires the reasoning service, cache, dispatcher, synthesizer
// and orchestrator from cfg.
func buildSession(ctx context.Context, cfg *config.Config, opts buildOptions) (*session, error) {
	logger := newLogger(cfg)

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, svc, opts, logger)
}

func assemble(cfg *config.Config, svc reasoning.Service, opts buildOptions, logger *slog.Logger) (*session, error) {
	ocfg, err := orchestratorConfig(cfg)
	if err != nil {
		return nil, err
	}

	dec, err := newDecomposer(cfg, svc, opts.planPath, logger)
	if err != nil {
		return nil, err
	}

	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	dispOpts := []dispatch.Option{
		dispatch.WithRetryPolicy(retryPolicy(cfg)),
		dispatch.WithTaskTimeout(cfg.Dispatch.TaskTimeout),
		dispatch.WithLogger(logger),
	}
	if store != nil {
		dispOpts = append(dispOpts, dispatch.WithCache(store))
	}
	disp := dispatch.New(svc, dispOpts...)

	synth := synthesis.New(svc,
		synthesis.WithMaxTokens(cfg.Anthropic.MaxTokens),
		synthesis.WithLogger(logger),
	)

	rt := &session{
		metrics: metrics.New(),
		store:   store,
		logger:  logger,
	}
	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(rt.metrics),
	}
	rt.orch = orchestrator.New(ocfg, dec, disp, synth, orchOpts...)
	return rt, nil
}

// loadData reads request data from a JSON or YAML file. An empty path
// means no data.
func loadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data %s: %w", path, err)
	}
	data := map[string]any{}
	// JSON is valid YAML, so one decoder serves both.
	if err := yaml.Unmarshal(b, &data); err != nil {
		ext := strings.ToLower(filepath.Ext(path))
		return nil, fmt.Errorf("parse %s data %s: %w", strings.TrimPrefix(ext, "."), path, err)
	}
	return data, nil
}
