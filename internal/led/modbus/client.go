// internal/led/modbus/client.go
package modbus

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/provisiond/internal/led"
)

// RegisterWriter is the single Modbus operation the LED needs (FC 16).
type RegisterWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Config locates the three PWM duty registers (R, G, B consecutive).
type Config struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
	Timeout  time.Duration
}

// Client writes LED duty cycles to a PWM output module over Modbus TCP.
// Requests are serialized; the handler is shared.
type Client struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	writer  RegisterWriter
	addr    uint16
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("led modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{
		handler: h,
		writer:  modbus.NewClient(h),
		addr:    cfg.Address,
	}, nil
}

// NewWithWriter wires an existing register writer (tests, shared buses).
func NewWithWriter(w RegisterWriter, addr uint16) *Client {
	return &Client{writer: w, addr: addr}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// SetColor writes the duty triple as three holding registers.
func (c *Client) SetColor(col led.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	regs := []uint16{uint16(col.R), uint16(col.G), uint16(col.B)}
	_, err := c.writer.WriteMultipleRegisters(c.addr, uint16(len(regs)), packRegisters(regs))
	return err
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
