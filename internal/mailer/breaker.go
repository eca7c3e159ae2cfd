package mailer

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/metrics"
)

// ErrCircuitOpen is returned while the SMTP relay is considered down.
var ErrCircuitOpen = errors.New("mailer: smtp circuit open")

// BreakerTransport stops calling the relay after repeated failures and
// probes it again once openTimeout has passed.
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerTransport opens the circuit after maxFailures consecutive errors.
func NewBreakerTransport(next Transport, maxFailures uint32, openTimeout time.Duration) *BreakerTransport {
	metrics.MailCircuitState.Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.MailCircuitState.Set(stateToFloat(to))
		},
	})
	return &BreakerTransport{next: next, cb: cb}
}

// Send forwards to the wrapped transport unless the circuit is open.
func (b *BreakerTransport) Send(ctx context.Context, msg *Message) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the breaker state for health output.
func (b *BreakerTransport) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
