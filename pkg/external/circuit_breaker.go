package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `json:"max_requests"`
	Interval     time.Duration `json:"interval"`
	Timeout      time.Duration `json:"timeout"`
	MinRequests  uint32        `json:"min_requests"`
	FailureRatio float64       `json:"failure_ratio"`
}

// DefaultCircuitBreakerConfig trips after three requests with at least 60% failures.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// StatusError is a non-2xx answer from a remote service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether err is worth another attempt: transport failures,
// throttling and server-side errors.
func retryable(err error) bool {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// resilientCaller guards calls to one remote service with a rate limiter, a circuit
// breaker and exponential retries.
type resilientCaller struct {
	service ServiceType
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retries int
	logger  *logrus.Logger
}

func newResilientCaller(service ServiceType, ratePerSecond, retries int, cb CircuitBreakerConfig, logger *logrus.Logger) *resilientCaller {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	if retries < 0 {
		retries = 0
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(service),
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cb.MinRequests && failureRatio >= cb.FailureRatio
		},
		// client errors say nothing about the health of the service
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &resilientCaller{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		breaker: breaker,
		retries: retries,
		logger:  logger,
	}
}

// do runs op until it succeeds, fails permanently or the retry budget is spent.
func (r *resilientCaller) do(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.retries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait failed: %w", err))
		}

		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%s service unavailable: %w", r.service, err))
		}
		if _, ok := err.(*backoff.PermanentError); ok {
			return err
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		r.logger.WithError(err).WithFields(logrus.Fields{
			"service": string(r.service),
			"attempt": attempt,
		}).Debug("Retrying remote call")
		return err
	}, b)
	return err
}

// health reports the breaker state and the counters of its current interval.
func (r *resilientCaller) health() ServiceHealth {
	state := r.breaker.State()
	counts := r.breaker.Counts()
	health := ServiceHealth{
		Service:             r.service,
		Healthy:             state != gobreaker.StateOpen,
		State:               state.String(),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		LastCheck:           time.Now(),
	}
	if state == gobreaker.StateOpen {
		health.Error = "circuit breaker open"
	}
	return health
}
