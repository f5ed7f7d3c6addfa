package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCalculation(t *testing.T) {
	before := testutil.ToFloat64(Calculations.WithLabelValues("test", OutcomeOK))
	ObserveCalculation("test", OutcomeOK, 3*time.Millisecond)
	ObserveCalculation("test", OutcomeInvalid, time.Millisecond)

	assert.InDelta(t, before+1, testutil.ToFloat64(Calculations.WithLabelValues("test", OutcomeOK)), 0.001)
	assert.GreaterOrEqual(t, testutil.ToFloat64(Calculations.WithLabelValues("test", OutcomeInvalid)), 1.0)
	assert.Positive(t, testutil.CollectAndCount(CalculationDuration))
}

func TestObserveOmitted(t *testing.T) {
	c := OmittedFirms.WithLabelValues("unknown")
	before := testutil.ToFloat64(c)

	ObserveOmitted("unknown", 0)
	assert.InDelta(t, before, testutil.ToFloat64(c), 0.001)

	ObserveOmitted("unknown", 2)
	assert.InDelta(t, before+2, testutil.ToFloat64(c), 0.001)
}

func TestObserveRegistryLoad(t *testing.T) {
	okBefore := testutil.ToFloat64(RegistryLoads.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(RegistryLoads.WithLabelValues("error"))

	ObserveRegistryLoad(nil, 12)
	assert.InDelta(t, 12, testutil.ToFloat64(RegistryFirms), 0.001)

	ObserveRegistryLoad(errors.New("down"), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(RegistryFirms), 0.001, "gauge keeps the last good size")

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(RegistryLoads.WithLabelValues("ok")), 0.001)
	assert.InDelta(t, errBefore+1, testutil.ToFloat64(RegistryLoads.WithLabelValues("error")), 0.001)
}
