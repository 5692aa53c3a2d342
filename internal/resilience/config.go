package resilience

import (
	"time"
)

// RetryFromConfig builds a RetryConfig from the provider settings in config:
// maxRetries extra attempts after the first, starting at backoffMs.
func RetryFromConfig(service string, maxRetries, backoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries >= 0 {
		cfg.MaxAttempts = maxRetries + 1
	}
	if backoffMs > 0 {
		cfg.InitialBackoff = time.Duration(backoffMs) * time.Millisecond
	}
	cfg.OnRetry = RetryLogger(service)
	return cfg
}

// CircuitFromConfig builds a CircuitBreakerConfig. Zero values keep defaults.
func CircuitFromConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
