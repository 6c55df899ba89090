// internal/wifi/sim/driver.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamzrod/provisiond/internal/wifi"
)

// Network is one reachable access point in the simulated air.
type Network struct {
	SSID     string
	Password string
}

// Config shapes the simulation.
type Config struct {
	Networks []Network
	Delay    time.Duration // association latency
	Subnet   string        // first three octets handed out, e.g. "192.168.1"
}

// Driver is an in-memory wifi.Driver.
// Events are delivered on a separate goroutine, like a real network stack.
type Driver struct {
	cfg Config

	mu        sync.Mutex
	handler   wifi.EventHandler
	apUp      bool
	connected bool
	gen       int
}

var _ wifi.Driver = (*Driver)(nil)

func New(cfg Config) *Driver {
	if cfg.Subnet == "" {
		cfg.Subnet = "192.168.1"
	}
	return &Driver{cfg: cfg}
}

func (d *Driver) SetEventHandler(h wifi.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *Driver) StartAP(ctx context.Context, ap wifi.APConfig) error {
	if ap.SSID == "" {
		return errors.New("sim: ap ssid required")
	}

	d.mu.Lock()
	d.apUp = true
	d.mu.Unlock()

	d.emit(0, wifi.Event{Kind: wifi.EventAPStarted})
	return nil
}

func (d *Driver) Connect(ctx context.Context, cfg wifi.Config) error {
	d.mu.Lock()
	if !d.apUp {
		d.mu.Unlock()
		return errors.New("sim: radio not started")
	}
	d.gen++
	gen := d.gen
	d.connected = false
	d.mu.Unlock()

	ssid, pwd := cfg.SSIDString(), cfg.PasswordString()

	for _, n := range d.cfg.Networks {
		if n.SSID != ssid {
			continue
		}
		if n.Password != pwd {
			d.emitAfter(gen, wifi.Event{Kind: wifi.EventStaDisconnected, Reason: "auth failed"})
			return nil
		}
		d.emitAfter(gen,
			wifi.Event{Kind: wifi.EventStaConnected},
			wifi.Event{Kind: wifi.EventStaGotIP, Info: wifi.IPInfo{
				IP:      fmt.Sprintf("%s.%d", d.cfg.Subnet, 100+gen%100),
				Netmask: "255.255.255.0",
				Gateway: d.cfg.Subnet + ".1",
				SSID:    ssid,
			}},
		)
		return nil
	}

	d.emitAfter(gen, wifi.Event{Kind: wifi.EventStaDisconnected, Reason: "no ap found"})
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	was := d.connected
	d.connected = false
	d.mu.Unlock()

	if was {
		d.emit(gen, wifi.Event{Kind: wifi.EventStaDisconnected, Reason: "assoc leave"})
	}
	return nil
}

// emitAfter delivers events in order after the association delay,
// unless a newer Connect or Disconnect superseded them.
func (d *Driver) emitAfter(gen int, evs ...wifi.Event) {
	go func() {
		if d.cfg.Delay > 0 {
			time.Sleep(d.cfg.Delay)
		}
		for _, ev := range evs {
			d.deliver(gen, ev)
		}
	}()
}

func (d *Driver) emit(gen int, ev wifi.Event) {
	go d.deliver(gen, ev)
}

func (d *Driver) deliver(gen int, ev wifi.Event) {
	d.mu.Lock()
	if gen != 0 && gen != d.gen {
		d.mu.Unlock()
		return
	}
	if ev.Kind == wifi.EventStaGotIP {
		d.connected = true
	}
	h := d.handler
	d.mu.Unlock()

	if h != nil {
		h(ev)
	}
}
