// internal/sensor/runner.go
package sensor

import (
	"context"
	"time"
)

// Run polls on every tick until ctx ends.
// One goroutine. No overlap. No retries within a tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	r, err := p.PollOnce()
	if err != nil {
		p.log.Warn("sensor poll failed", "err", err)
		return
	}
	p.log.Debug("sensor reading", "temp", r.Temperature, "humidity", r.Humidity)
}
