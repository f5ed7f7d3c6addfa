// Package calculator wires form normalization, the firm registry and the
// projection engine into a single request/response service.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/config"
	"github.com/faaxis/advisor-calc/internal/engine"
	"github.com/faaxis/advisor-calc/internal/metrics"
	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/normalize"
	"github.com/faaxis/advisor-calc/internal/registry"
)

// Request is one calculator submission. Firms lists the firms to compare;
// an empty list compares every firm in the registry. IncludeIndependent,
// when set, overrides the advisor form's own includeIndependent field.
type Request struct {
	Advisor            map[string]any `json:"advisor"`
	Firms              []string       `json:"firms,omitempty"`
	IncludeIndependent *bool          `json:"includeIndependent,omitempty"`
}

// Loader takes registry snapshots.
type Loader interface {
	Load(ctx context.Context) (*registry.Snapshot, error)
}

// Service runs projections against the live registry.
type Service struct {
	loader Loader
	coef   config.EngineConfig
	source string
}

// Option configures a Service.
type Option func(*Service)

// WithSource sets the metrics label for calculations run through this
// service, e.g. "api" or "cli".
func WithSource(source string) Option {
	return func(s *Service) { s.source = source }
}

// NewService builds a Service after checking the coefficient set.
func NewService(loader Loader, coef config.EngineConfig, opts ...Option) (*Service, error) {
	if err := engine.ValidateCoefficients(coef); err != nil {
		return nil, eris.Wrap(err, "calculator: new service")
	}
	s := &Service{loader: loader, coef: coef, source: "cli"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Calculate normalizes the raw form, reads one registry snapshot and
// projects compensation. Invalid input fails before the registry is read.
func (s *Service) Calculate(ctx context.Context, req Request) (*model.CalculatorResults, error) {
	start := time.Now()

	advisor, err := normalize.Profile(req.Advisor)
	if err != nil {
		err = fmt.Errorf("%w: %w", engine.ErrInvalidInput, err)
		s.observe(start, err)
		return nil, err
	}
	if req.IncludeIndependent != nil {
		advisor.IncludeIndependent = *req.IncludeIndependent
	}
	return s.calculate(ctx, start, advisor, req.Firms)
}

// CalculateProfile is Calculate for an already typed profile.
func (s *Service) CalculateProfile(ctx context.Context, advisor *model.AdvisorInfo, firms []string) (*model.CalculatorResults, error) {
	return s.calculate(ctx, time.Now(), advisor, firms)
}

// Snapshot reads the registry once, for callers that run many projections
// against the same view.
func (s *Service) Snapshot(ctx context.Context) (*registry.Snapshot, error) {
	snap, err := s.loader.Load(ctx)
	if err != nil {
		metrics.ObserveRegistryLoad(err, 0)
		return nil, err
	}
	metrics.ObserveRegistryLoad(nil, snap.Len())
	return snap, nil
}

// Project runs one projection against snap.
func (s *Service) Project(snap *registry.Snapshot, advisor *model.AdvisorInfo, firms []string) (*model.CalculatorResults, error) {
	start := time.Now()
	res, err := s.project(snap, advisor, firms)
	s.observe(start, err)
	return res, err
}

func (s *Service) calculate(ctx context.Context, start time.Time, advisor *model.AdvisorInfo, firms []string) (*model.CalculatorResults, error) {
	if err := advisor.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", engine.ErrInvalidInput, err)
		s.observe(start, err)
		return nil, err
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.observe(start, err)
		return nil, err
	}

	res, err := s.project(snap, advisor, firms)
	s.observe(start, err)
	return res, err
}

func (s *Service) project(snap *registry.Snapshot, advisor *model.AdvisorInfo, firms []string) (*model.CalculatorResults, error) {
	deals, params, unknown := engine.SelectDeals(snap, firms, advisor.IncludeIndependent)

	res, err := engine.Compute(advisor, deals, params, s.coef)
	if err != nil {
		return nil, err
	}

	metrics.ObserveOmitted("unknown", len(unknown))
	metrics.ObserveOmitted("invalid_deal", len(res.OmittedFirms))
	if len(unknown) > 0 {
		zap.L().Info("calculator: firms not in registry", zap.Strings("firms", unknown))
		res.OmittedFirms = append(unknown, res.OmittedFirms...)
	}
	return res, nil
}

func (s *Service) observe(start time.Time, err error) {
	metrics.ObserveCalculation(s.source, Outcome(err), time.Since(start))
}

// Outcome classifies a calculation error for metrics and HTTP status
// mapping.
func Outcome(err error) string {
	var ve *model.ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, engine.ErrInvalidInput), errors.As(err, &ve):
		return metrics.OutcomeInvalid
	case errors.Is(err, registry.ErrDataUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
