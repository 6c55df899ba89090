// internal/button/monitor.go
package button

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/signal"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// DefaultDebounce is the quiet period after each accepted press.
const DefaultDebounce = 2 * time.Second

// Sleeper waits d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Monitor.
type Option func(*Monitor)

// WithSleeper replaces the debounce wait (tests).
func WithSleeper(s Sleeper) Option {
	return func(m *Monitor) { m.sleep = s }
}

// Monitor turns button wakes into disconnect requests.
// Presses during the debounce period coalesce into at most one more wake.
type Monitor struct {
	sig      *signal.Signal
	inbox    *queue.Queue[wifi.Message]
	debounce time.Duration
	sleep    Sleeper
	log      *slog.Logger
}

func New(sig *signal.Signal, inbox *queue.Queue[wifi.Message], debounce time.Duration, opts ...Option) (*Monitor, error) {
	if sig == nil || inbox == nil {
		return nil, errors.New("button: signal and inbox required")
	}
	if debounce < 0 {
		return nil, errors.New("button: debounce must be >= 0")
	}

	m := &Monitor{
		sig:      sig,
		inbox:    inbox,
		debounce: debounce,
		sleep:    sleepCtx,
		log:      slog.With("component", "button"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run waits for presses until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := m.sig.Wait(ctx); err != nil {
			return err
		}

		m.log.Info("button pressed, requesting station disconnect")
		err := m.inbox.Send(ctx, wifi.UserRequestedStaDisconnect{Source: "button"})
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrSendTimeout):
			m.log.Warn("disconnect request dropped: network manager busy")
		default:
			return err
		}

		if err := m.sleep(ctx, m.debounce); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
