package resilience

import (
	"time"

	"github.com/faaxis/advisor-calc/internal/config"
)

// FromRegistryConfig builds the retry and breaker settings used for
// registry reads. Zero values fall back to the package defaults.
func FromRegistryConfig(cfg config.RegistryConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}
	if cfg.RetryMaxMs > 0 {
		retry.MaxBackoff = time.Duration(cfg.RetryMaxMs) * time.Millisecond
	}

	breaker := DefaultCircuitBreakerConfig()
	if cfg.CircuitThreshold > 0 {
		breaker.FailureThreshold = cfg.CircuitThreshold
	}
	if cfg.CircuitResetSecs > 0 {
		breaker.ResetTimeout = time.Duration(cfg.CircuitResetSecs) * time.Second
	}
	return retry, breaker
}
