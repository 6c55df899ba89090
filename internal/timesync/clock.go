// internal/timesync/clock.go
package timesync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/status"
)

// Layout renders "dd.mm.yyyy HH:MM:SS".
const Layout = "02.01.2006 15:04:05"

// minValidYear: any earlier clock has not been set since power-on.
const minValidYear = 2016

const DefaultCheckInterval = 10 * time.Second

// Clock exposes wall time once the host clock has been set.
// The host NTP daemon disciplines the clock; this only observes it.
type Clock struct {
	loc      *time.Location
	now      func() time.Time
	status   *queue.Queue[status.Message]
	interval time.Duration
	started  atomic.Bool
	log      *slog.Logger
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

func WithCheckInterval(d time.Duration) Option {
	return func(c *Clock) { c.interval = d }
}

func New(loc *time.Location, statusQ *queue.Queue[status.Message], opts ...Option) *Clock {
	if loc == nil {
		loc = time.Local
	}
	c := &Clock{
		loc:      loc,
		now:      time.Now,
		status:   statusQ,
		interval: DefaultCheckInterval,
		log:      slog.With("component", "timesync"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synced reports whether the clock looks set.
func (c *Clock) Synced() bool {
	return c.now().Year() >= minValidYear
}

// Now returns the formatted local time, or false before sync.
func (c *Clock) Now() (string, bool) {
	t := c.now()
	if t.Year() < minValidYear {
		return "", false
	}
	return t.In(c.loc).Format(Layout), true
}

// Start launches the sync watcher once; later calls are no-ops.
func (c *Clock) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
}

// run reports TimeServiceInitialized the first time the clock is set.
func (c *Clock) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if c.Synced() {
			c.log.Info("time synchronized", "now", c.now().In(c.loc).Format(Layout))
			if err := c.status.Send(ctx, status.TimeServiceInitialized); err != nil {
				c.log.Error("status notify failed", "err", err)
			}
			return
		}
		c.log.Debug("time not set yet")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
