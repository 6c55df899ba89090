// internal/led/led.go
package led

import "log/slog"

// Event is an application milestone shown on the status LED.
type Event int

const (
	AppStarted Event = iota
	HTTPServerStarted
	WifiConnected
)

func (e Event) String() string {
	switch e {
	case AppStarted:
		return "app_started"
	case HTTPServerStarted:
		return "http_server_started"
	case WifiConnected:
		return "wifi_connected"
	}
	return "unknown"
}

// Color is an 8-bit RGB duty triple.
type Color struct {
	R, G, B uint8
}

// ColorOf returns the fixed colour for an event.
func ColorOf(e Event) Color {
	switch e {
	case AppStarted:
		return Color{R: 255, G: 102, B: 255}
	case HTTPServerStarted:
		return Color{R: 204, G: 255, B: 51}
	case WifiConnected:
		return Color{R: 0, G: 255, B: 153}
	}
	return Color{}
}

// Indicator is fire-and-forget: no feedback, no error.
type Indicator interface {
	Notify(e Event)
}

// Setter is one LED backend.
type Setter interface {
	SetColor(c Color) error
}

// indicator adapts a Setter and logs backend failures.
type indicator struct {
	set Setter
	log *slog.Logger
}

// New wraps a backend. A nil backend yields a log-only indicator.
func New(set Setter) Indicator {
	return &indicator{set: set, log: slog.With("component", "led")}
}

func (i *indicator) Notify(e Event) {
	c := ColorOf(e)
	if i.set == nil {
		i.log.Info("status", "event", e, "r", c.R, "g", c.G, "b", c.B)
		return
	}
	if err := i.set.SetColor(c); err != nil {
		i.log.Warn("led update failed", "event", e, "err", err)
	}
}
