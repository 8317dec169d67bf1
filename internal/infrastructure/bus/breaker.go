package bus

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/messaging"
	"ytsoob/pkg/logger"
)

// BreakerConfig configures the publish circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns defaults for the external broker.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "outbox-broker",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker short-circuits publishes while the wrapped bus keeps failing.
// Open-circuit rejections are transient errors, so records simply retry.
type Breaker struct {
	next messaging.Bus
	cb   *gobreaker.CircuitBreaker[struct{}]
}

var _ messaging.Bus = (*Breaker)(nil)

// NewBreaker wraps next.
func NewBreaker(next messaging.Bus, cfg BreakerConfig, log *logger.Logger) *Breaker {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("bus-breaker")
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a rejected payload says nothing about broker health
		IsSuccessful: func(err error) bool {
			return err == nil || messaging.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Publish implements messaging.Bus.
func (b *Breaker) Publish(ctx context.Context, env *messaging.Envelope) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, env)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperror.NewUnavailable(b.cb.Name(), err)
	}
	return err
}

// State reports the breaker state for health checks.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
