// internal/led/gpio.go
package led

import (
	"errors"
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// GPIOConfig names the chip and the three channel offsets.
type GPIOConfig struct {
	Chip      string
	Red       int
	Green     int
	Blue      int
	ActiveLow bool
}

// GPIO drives a common RGB LED from three digital lines.
// No PWM: a channel is lit when its duty is at least half scale.
type GPIO struct {
	mu    sync.Mutex
	lines *gpiod.Lines
	cfg   GPIOConfig
}

// NewGPIO requests the three output lines, initially dark.
func NewGPIO(cfg GPIOConfig) (*GPIO, error) {
	if cfg.Chip == "" {
		return nil, errors.New("led gpio: chip required")
	}

	g := &GPIO{cfg: cfg}
	off := g.level(false)

	lines, err := gpiod.RequestLines(
		cfg.Chip,
		[]int{cfg.Red, cfg.Green, cfg.Blue},
		gpiod.AsOutput(off, off, off),
		gpiod.WithConsumer("provisiond-led"),
	)
	if err != nil {
		return nil, fmt.Errorf("led gpio: request lines on %s: %w", cfg.Chip, err)
	}
	g.lines = lines
	return g, nil
}

func (g *GPIO) SetColor(c Color) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.lines.SetValues([]int{
		g.level(c.R >= 128),
		g.level(c.G >= 128),
		g.level(c.B >= 128),
	})
}

func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lines.Close()
}

func (g *GPIO) level(on bool) int {
	if on != g.cfg.ActiveLow {
		return 1
	}
	return 0
}
