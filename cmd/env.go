package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/calculator"
	"github.com/faaxis/advisor-calc/internal/registry"
	"github.com/faaxis/advisor-calc/internal/resilience"
	"github.com/faaxis/advisor-calc/internal/store"
	"github.com/faaxis/advisor-calc/pkg/notion"
)

// appEnv holds the dependencies shared by the calculation commands.
type appEnv struct {
	Store   store.Store // nil unless the registry source is the store
	Service *calculator.Service
}

func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	// The embedded database is created on first use; Postgres is migrated
	// explicitly with the migrate command.
	if _, ok := st.(*store.SQLiteStore); ok {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "init store")
		}
	}
	return st, nil
}

func initNotion() (notion.Client, error) {
	if cfg.Notion.Token == "" {
		return nil, eris.New("notion token is required (FAAXIS_NOTION_TOKEN)")
	}
	if cfg.Notion.DealsDB == "" {
		return nil, eris.New("notion deals database is required (FAAXIS_NOTION_DEALS_DB)")
	}
	return notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimitRPS)), nil
}

// registrySource picks where calculations read firm data from. The
// returned store is nil for non-store sources.
func registrySource(ctx context.Context, source string) (registry.Source, store.Store, error) {
	switch strings.ToLower(source) {
	case "store", "":
		st, err := initStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "file":
		if cfg.Registry.FixturePath == "" {
			return nil, nil, eris.New("registry fixture path is required (FAAXIS_REGISTRY_FIXTURE_PATH)")
		}
		return registry.FileSource{Path: cfg.Registry.FixturePath}, nil, nil
	case "notion":
		client, err := initNotion()
		if err != nil {
			return nil, nil, err
		}
		return registry.NotionSource{Client: client, DealsDB: cfg.Notion.DealsDB, ParamsDB: cfg.Notion.ParamsDB}, nil, nil
	default:
		return nil, nil, eris.Errorf("unknown registry source %q", source)
	}
}

// initEnv wires the registry source, retry policy, circuit breaker and
// calculation service. metricsSource labels the calculations it runs.
func initEnv(ctx context.Context, metricsSource string) (*appEnv, error) {
	src, st, err := registrySource(ctx, cfg.Registry.Source)
	if err != nil {
		return nil, err
	}

	retry, breakerCfg := resilience.FromRegistryConfig(cfg.Registry)
	loader := registry.NewLoader(src, retry, resilience.NewCircuitBreaker(breakerCfg))

	svc, err := calculator.NewService(loader, cfg.Engine, calculator.WithSource(metricsSource))
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	zap.L().Debug("registry source ready", zap.String("source", cfg.Registry.Source))
	return &appEnv{Store: st, Service: svc}, nil
}
