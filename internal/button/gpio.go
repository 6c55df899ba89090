// internal/button/gpio.go
package button

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/tamzrod/provisiond/internal/signal"
)

// Line is a requested button input. Close releases it.
type Line struct {
	line *gpiod.Line
}

// Watch requests offset on chip as a pulled-up input and gives sig on
// every falling edge. The event handler runs on the library's goroutine
// and only gives the signal.
func Watch(chip string, offset int, sig *signal.Signal) (*Line, error) {
	l, err := gpiod.RequestLine(
		chip,
		offset,
		gpiod.AsInput,
		gpiod.WithPullUp,
		gpiod.WithFallingEdge,
		gpiod.WithConsumer("provisiond-button"),
		gpiod.WithEventHandler(func(gpiod.LineEvent) {
			sig.Give()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("button: request %s:%d: %w", chip, offset, err)
	}
	return &Line{line: l}, nil
}

func (l *Line) Close() error {
	return l.line.Close()
}
