// internal/httpserver/monitor.go
package httpserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/status"
)

// DefaultRebootDelay leaves time for /OTAstatus to report success.
const DefaultRebootDelay = 8 * time.Second

// Rebooter restarts the device into the new boot target.
type Rebooter interface {
	Reboot() error
}

// Scheduler runs f once after d. time.AfterFunc in production.
type Scheduler func(d time.Duration, f func())

// Observer receives a copy of the snapshot after every change.
// It runs on the monitor goroutine and must not block.
type Observer func(s status.Snapshot)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

func WithRebootDelay(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.delay = d }
}

func WithScheduler(s Scheduler) MonitorOption {
	return func(m *Monitor) { m.schedule = s }
}

// Monitor is the single writer of the status snapshot.
// Each message updates exactly one field.
type Monitor struct {
	inbox    *queue.Queue[status.Message]
	reboot   Rebooter
	schedule Scheduler
	delay    time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	snap      status.Snapshot
	observers []Observer
	armed     bool
}

func NewMonitor(inbox *queue.Queue[status.Message], reboot Rebooter, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		inbox:  inbox,
		reboot: reboot,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		delay: DefaultRebootDelay,
		log:   slog.With("component", "http-monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current status. Safe from request handlers.
func (m *Monitor) Snapshot() status.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers an observer. Call before Run.
func (m *Monitor) Subscribe(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// Run consumes the inbox until ctx ends. No blocking I/O beyond Receive.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		msg, err := m.inbox.Receive(ctx)
		if err != nil {
			return err
		}
		m.Apply(msg)
	}
}

// Apply processes one message synchronously.
func (m *Monitor) Apply(msg status.Message) {
	m.mu.Lock()
	changed, rebootNow := m.transition(msg)
	snap := m.snap
	observers := m.observers
	m.mu.Unlock()

	if !changed {
		m.log.Debug("status message ignored", "msg", msg, "connect", snap.Connect, "ota", snap.Update)
		return
	}
	m.log.Info("status changed", "msg", msg, "connect", snap.Connect, "ota", snap.Update)

	if rebootNow {
		m.log.Warn("reboot scheduled", "in", m.delay)
		m.schedule(m.delay, func() {
			if err := m.reboot.Reboot(); err != nil {
				m.log.Error("reboot failed", "err", err)
			}
		})
	}

	for _, o := range observers {
		o(snap)
	}
}

// transition mutates the snapshot under m.mu.
func (m *Monitor) transition(msg status.Message) (changed, armReboot bool) {
	switch msg {
	case status.WifiConnectInit:
		// Never two consecutive Connecting.
		if m.snap.Connect == status.ConnectConnecting {
			return false, false
		}
		m.snap.Connect = status.ConnectConnecting

	case status.WifiConnectSuccess:
		if m.snap.Connect != status.ConnectConnecting {
			return false, false
		}
		m.snap.Connect = status.ConnectSucceeded

	case status.WifiConnectFail:
		if m.snap.Connect != status.ConnectConnecting {
			return false, false
		}
		m.snap.Connect = status.ConnectFailed

	case status.UserDisconnected:
		m.snap.Connect = status.ConnectDisconnected

	case status.OTAUpdateSuccessful:
		if m.snap.Update.Terminal() {
			return false, false
		}
		m.snap.Update = status.UpdateSuccessful
		if m.reboot != nil && !m.armed {
			m.armed = true
			return true, true
		}

	case status.OTAUpdateFailed:
		if m.snap.Update != status.UpdatePending {
			return false, false
		}
		m.snap.Update = status.UpdateFailed

	case status.TimeServiceInitialized:
		if m.snap.TimeSynced {
			return false, false
		}
		m.snap.TimeSynced = true

	default:
		return false, false
	}
	return true, false
}
