package alert

import (
	"sync"
	"time"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = time.Minute
)

// CircuitBreaker pauses delivery to a notification target after a streak of
// failures, keyed by target URL.
type CircuitBreaker struct {
	mu       sync.RWMutex
	failures map[string]int
	openedAt map[string]time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		failures: make(map[string]int),
		openedAt: make(map[string]time.Time),
	}
}

func (cb *CircuitBreaker) RecordFailure(target string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures[target]++

	if cb.failures[target] >= circuitBreakerThreshold {
		if _, exists := cb.openedAt[target]; !exists {
			cb.openedAt[target] = time.Now()
		}
	}
}

func (cb *CircuitBreaker) RecordSuccess(target string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures[target] = 0
	delete(cb.openedAt, target)
}

func (cb *CircuitBreaker) Allow(target string) bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	openedTime, exists := cb.openedAt[target]
	if !exists {
		return true
	}

	// After the timeout the next request goes through as a probe.
	return time.Since(openedTime) >= circuitBreakerTimeout
}

func (cb *CircuitBreaker) GetResetDelay(target string) time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	openedTime, exists := cb.openedAt[target]
	if !exists {
		return 0
	}

	elapsed := time.Since(openedTime)
	if elapsed >= circuitBreakerTimeout {
		return 0
	}

	return circuitBreakerTimeout - elapsed
}

func (cb *CircuitBreaker) GetFailureCount(target string) int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return cb.failures[target]
}

func (cb *CircuitBreaker) GetState(target string) string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	openedTime, exists := cb.openedAt[target]
	if !exists {
		return "closed"
	}

	if time.Since(openedTime) >= circuitBreakerTimeout {
		return "half-open"
	}

	return "open"
}
