package wasend

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("wasend: circuit breaker open")

type CircuitConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// CircuitBreaker wraps a Provider so a run of failures (a down provider,
// expired credentials) fails fast instead of letting every outbox job pay
// the full timeout.
type CircuitBreaker struct {
	inner Provider
	cfg   CircuitConfig
	mu    sync.Mutex

	state string // "closed" | "open" | "half_open"

	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewCircuitBreaker(inner Provider, cfg CircuitConfig) *CircuitBreaker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{inner: inner, cfg: cfg, state: "closed"}
}

func (c *CircuitBreaker) Send(ctx context.Context, senderID int64, phoneE164, text string) (string, error) {
	if !c.allowRequest() {
		return "", ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	id, err := c.inner.Send(sendCtx, senderID, phoneE164, text)
	c.afterRequest(err)
	return id, err
}

func (c *CircuitBreaker) allowRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case "closed":
		return true
	case "open":
		if time.Since(c.openedAt) >= c.cfg.Cooldown {
			c.state = "half_open"
			c.halfOpenInFlight = 0
			return true
		}
		return false
	case "half_open":
		if c.halfOpenInFlight >= c.cfg.HalfOpenMaxCalls {
			return false
		}
		c.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (c *CircuitBreaker) afterRequest(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == "half_open" && c.halfOpenInFlight > 0 {
		c.halfOpenInFlight--
	}

	if err == nil {
		c.consecutiveFailures = 0
		c.state = "closed"
		return
	}

	c.consecutiveFailures++

	if c.state == "half_open" {
		c.state = "open"
		c.openedAt = time.Now()
		return
	}

	if c.consecutiveFailures >= c.cfg.FailureThreshold {
		c.state = "open"
		c.openedAt = time.Now()
	}
}
