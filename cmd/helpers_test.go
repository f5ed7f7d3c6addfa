package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/faaxis/advisor-calc/internal/calculator"
	"github.com/faaxis/advisor-calc/internal/engine"
	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/registry"
	"github.com/faaxis/advisor-calc/internal/resilience"
)

func testDeals() []model.FirmDeal {
	return []model.FirmDeal{
		{Firm: "UBS", UpfrontMin: 20, UpfrontMax: 25, BackendMin: 10, BackendMax: 15, TotalDealMin: 30, TotalDealMax: 40},
		{Firm: "RBC", UpfrontMin: 100, UpfrontMax: 150, BackendMin: 50, BackendMax: 100, TotalDealMin: 150, TotalDealMax: 250},
	}
}

func testParams() []model.FirmParameter {
	return []model.FirmParameter{
		{Firm: "RBC", ParamName: model.ParamGrid, Value: model.TextValue("40-50%")},
	}
}

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func newTestService(t *testing.T, src registry.Source) *calculator.Service {
	t.Helper()
	svc, err := calculator.NewService(registry.NewLoader(src, noRetry(), nil), engine.DefaultCoefficients(), calculator.WithSource("test"))
	require.NoError(t, err)
	return svc
}

func staticService(t *testing.T) *calculator.Service {
	return newTestService(t, registry.Static(testDeals(), testParams()))
}

func failingService(t *testing.T, err error) *calculator.Service {
	return newTestService(t, registry.SourceFunc(func(context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
		return nil, nil, err
	}))
}

func advisorForm() map[string]any {
	return map[string]any{
		"aum":                "150,000,000",
		"revenue":            "1,200,000",
		"feeBasedPercentage": 90,
		"city":               "Charlotte",
		"state":              "NC",
	}
}
