package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"cloudtally/internal/logging"
)

const (
	defaultRequestsPerSecond = 5.0
	defaultMaxRetries        = 5
	defaultBaseDelay         = 500 * time.Millisecond
	defaultMaxDelay          = 30 * time.Second
)

// Config holds the request rate and retry policy of one API surface
type Config struct {
	// RequestsPerSecond applies to APIs not listed in APILimits
	RequestsPerSecond float64
	// APILimits overrides the rate of specific APIs
	APILimits map[string]float64
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the first backoff interval
	BaseDelay time.Duration
	// MaxDelay caps a single backoff interval
	MaxDelay time.Duration
}

// DefaultConfig returns the defaults used for the Service Management API
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: defaultRequestsPerSecond,
		APILimits: map[string]float64{
			// The listing is one call per run; deployment reads fan out per service
			"ListHostedServices": 2,
		},
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
	}
}

// Limiter spaces calls per API and retries retryable failures
type Limiter struct {
	mu        sync.Mutex
	nextSlot  map[string]time.Time
	config    Config
	retryable func(error) bool
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.APILimits == nil {
		cfg.APILimits = def.APILimits
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Limiter{
		nextSlot:  make(map[string]time.Time),
		config:    cfg,
		retryable: ShouldRetry,
		sleep:     sleepContext,
	}
}

// getInterval returns the minimum interval between requests for a given API
func (l *Limiter) getInterval(apiName string) time.Duration {
	rps := l.config.RequestsPerSecond
	if limit, ok := l.config.APILimits[apiName]; ok && limit > 0 {
		rps = limit
	}
	return time.Duration(float64(time.Second) / rps)
}

// wait blocks until apiName may be called again
func (l *Limiter) wait(ctx context.Context, apiName string) error {
	l.mu.Lock()
	now := time.Now()
	slot := l.nextSlot[apiName]
	if slot.Before(now) {
		slot = now
	}
	l.nextSlot[apiName] = slot.Add(l.getInterval(apiName))
	l.mu.Unlock()

	if d := slot.Sub(now); d > 0 {
		return l.sleep(ctx, d)
	}
	return nil
}

// retryer is implemented by errors that know whether they are transient
type retryer interface {
	IsRetryable() bool
}

// ShouldRetry determines if an error is retryable
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var r retryer
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "server busy") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "connection reset")
}

// Execute runs operation once its API slot is free, retrying retryable
// failures with exponential backoff.
func (l *Limiter) Execute(ctx context.Context, apiName string, operation func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.config.BaseDelay
	bo.MaxInterval = l.config.MaxDelay
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		if err := l.wait(ctx, apiName); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := operation()
		if err != nil && !l.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logging.Debug("Throttled, retrying operation", map[string]interface{}{
			"api":      apiName,
			"attempt":  attempt,
			"maxRetry": l.config.MaxRetries,
			"delay":    next.String(),
			"error":    err.Error(),
		})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(l.config.MaxRetries)), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	if err != nil && attempt > l.config.MaxRetries && l.retryable(err) {
		return fmt.Errorf("max retries exceeded for %s: %w", apiName, err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
