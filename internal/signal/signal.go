// internal/signal/signal.go
package signal

import "context"

// Signal is a one-shot coalescing wake.
// Any number of Give calls before the next Wait wake the waiter once.
type Signal struct {
	ch chan struct{}
}

func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Give sets the signal. It never blocks and never allocates,
// so it is safe to call from GPIO event handlers.
func (s *Signal) Give() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is set, then clears it.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
