// internal/sensor/poller.go
package sensor

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Client abstracts the Modbus reads the poller needs.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration

	// FC selects holding (3) or input (4) registers.
	FC uint8

	TemperatureAddress uint16 // signed, tenths by default
	HumidityAddress    uint16 // unsigned

	// Scale converts raw register counts to engineering units.
	Scale float64
}

// Reading is one complete temperature/humidity sample.
type Reading struct {
	Temperature float64
	Humidity    float64
	At          time.Time
}

// Poller is a dumb, clock-driven reader. It keeps only the last good reading.
type Poller struct {
	cfg     Config
	client  Client
	factory func() (Client, error)
	log     *slog.Logger

	mu   sync.RWMutex
	last Reading
	ok   bool
}

// New creates a poller with immutable config.
// factory, when set, replaces the client after a failed cycle.
func New(cfg Config, client Client, factory func() (Client, error)) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("sensor: interval must be > 0")
	}
	if cfg.FC != 3 && cfg.FC != 4 {
		return nil, errors.New("sensor: fc must be 3 or 4")
	}
	if cfg.Scale == 0 {
		return nil, errors.New("sensor: scale must be non-zero")
	}
	if client == nil && factory == nil {
		return nil, errors.New("sensor: client or factory required")
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		factory: factory,
		log:     slog.With("component", "sensor"),
	}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle and keeps the previous reading.
func (p *Poller) PollOnce() (Reading, error) {
	if p.client == nil {
		c, err := p.factory()
		if err != nil {
			return Reading{}, err
		}
		p.client = c
	}

	temp, err := p.read(p.cfg.TemperatureAddress)
	if err != nil {
		p.drop()
		return Reading{}, err
	}
	hum, err := p.read(p.cfg.HumidityAddress)
	if err != nil {
		p.drop()
		return Reading{}, err
	}

	r := Reading{
		Temperature: float64(int16(temp)) * p.cfg.Scale,
		Humidity:    float64(hum) * p.cfg.Scale,
		At:          time.Now(),
	}

	// Commit only if all reads succeeded
	p.mu.Lock()
	p.last, p.ok = r, true
	p.mu.Unlock()
	return r, nil
}

// Last returns the most recent good reading.
func (p *Poller) Last() (Reading, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.ok
}

func (p *Poller) read(addr uint16) (uint16, error) {
	var (
		regs []uint16
		err  error
	)
	switch p.cfg.FC {
	case 3:
		regs, err = p.client.ReadHoldingRegisters(addr, 1)
	default:
		regs, err = p.client.ReadInputRegisters(addr, 1)
	}
	if err != nil {
		return 0, err
	}
	if len(regs) != 1 {
		return 0, errors.New("sensor: short register read")
	}
	return regs[0], nil
}

// drop discards a client after transport failure; the factory dials a new
// one on a later tick.
func (p *Poller) drop() {
	if p.factory == nil {
		return
	}
	if c, ok := p.client.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	p.client = nil
}
