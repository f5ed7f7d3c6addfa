package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/resilience"
)

// ErrDataUnavailable means the registry could not be read. Calculations
// fail with it rather than run against missing firm numbers.
var ErrDataUnavailable = eris.New("registry: data unavailable")

// Source reads every deal and parameter as one consistent view.
type Source interface {
	Snapshot(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error)

// Snapshot calls f.
func (f SourceFunc) Snapshot(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
	return f(ctx)
}

// Static serves a fixed set of rows.
func Static(deals []model.FirmDeal, params []model.FirmParameter) Source {
	return SourceFunc(func(context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
		return deals, params, nil
	})
}

// Loader takes snapshots from a Source with retries and an optional
// circuit breaker.
type Loader struct {
	src     Source
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewLoader builds a Loader. breaker may be nil.
func NewLoader(src Source, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) *Loader {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.LogRetries("registry")
	}
	return &Loader{src: src, retry: retry, breaker: breaker}
}

// Load takes a snapshot. Every failure wraps ErrDataUnavailable.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	type rows struct {
		deals  []model.FirmDeal
		params []model.FirmParameter
	}
	read := func(ctx context.Context) (rows, error) {
		deals, params, err := l.src.Snapshot(ctx)
		return rows{deals, params}, err
	}

	got, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (rows, error) {
		if l.breaker == nil {
			return read(ctx)
		}
		return resilience.ExecuteVal(ctx, l.breaker, read)
	})
	if err != nil {
		zap.L().Error("registry: load failed", zap.Error(err))
		// Keep both the sentinel and the cause matchable with errors.Is.
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	snap := NewSnapshot(got.deals, got.params)
	zap.L().Debug("registry: loaded snapshot",
		zap.Int("deals", len(got.deals)),
		zap.Int("params", len(got.params)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// Load takes one snapshot from src with the given retry policy.
func Load(ctx context.Context, src Source, retry resilience.RetryConfig) (*Snapshot, error) {
	return NewLoader(src, retry, nil).Load(ctx)
}
