// Package store persists the firm deal registry: one row per firm deal and
// one row per named firm parameter, keyed by canonical firm key.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/faaxis/advisor-calc/internal/config"
	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/model"
)

// ErrNotFound is returned when a deal or parameter does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the firm registry.
type Store interface {
	// Deals
	ListDeals(ctx context.Context) ([]model.FirmDeal, error)
	GetDeal(ctx context.Context, key string) (*model.FirmDeal, error)
	UpsertDeal(ctx context.Context, deal model.FirmDeal) error
	DeleteDeal(ctx context.Context, key string) error

	// Parameters; an empty key lists every firm's parameters.
	ListParameters(ctx context.Context, key string) ([]model.FirmParameter, error)
	UpsertParameter(ctx context.Context, param model.FirmParameter) error
	DeleteParameter(ctx context.Context, key, name string) error

	// Import upserts a batch of deals and parameters.
	Import(ctx context.Context, deals []model.FirmDeal, params []model.FirmParameter) error

	// Snapshot reads every deal and parameter in one read-only transaction.
	Snapshot(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "pgx":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// dealKey returns the canonical key a deal is stored under.
func dealKey(d model.FirmDeal) string {
	if d.Key != "" {
		return d.Key
	}
	return firm.RowKey(d.Firm)
}

// prepareDeal validates d and fills its key and timestamp.
func prepareDeal(d model.FirmDeal, now time.Time) (model.FirmDeal, error) {
	if err := d.Validate(); err != nil {
		return d, eris.Wrapf(err, "store: invalid deal %q", d.Firm)
	}
	if d.Key = dealKey(d); d.Key == "" {
		return d, eris.Errorf("store: deal %q has no usable firm name", d.Firm)
	}
	d.UpdatedAt = now
	return d, nil
}

// prepareParameter fills the parameter's key.
func prepareParameter(p model.FirmParameter) (model.FirmParameter, error) {
	if strings.TrimSpace(p.ParamName) == "" {
		return p, eris.New("store: parameter name is required")
	}
	if p.Key == "" {
		if p.Firm == "" {
			return p, eris.Errorf("store: parameter %q has no firm", p.ParamName)
		}
		if p.Key = firm.RowKey(p.Firm); p.Key == "" {
			return p, eris.Errorf("store: parameter %q has no usable firm name", p.ParamName)
		}
	}
	if p.Firm == "" {
		p.Firm = firm.DisplayName(p.Key)
	}
	return p, nil
}
