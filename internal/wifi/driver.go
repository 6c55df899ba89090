// internal/wifi/driver.go
package wifi

import "context"

// EventKind enumerates asynchronous driver notifications.
type EventKind int

const (
	EventAPStarted EventKind = iota
	EventStaConnected
	EventStaGotIP
	EventStaDisconnected
)

// Event is delivered on the driver's own goroutine.
type Event struct {
	Kind   EventKind
	Info   IPInfo // EventStaGotIP only
	Reason string // EventStaDisconnected only
}

// EventHandler must only enqueue; it must not block on long operations
// or touch manager state.
type EventHandler func(Event)

// IPInfo is the station address set reported on got-IP.
type IPInfo struct {
	IP      string
	Netmask string
	Gateway string
	SSID    string
}

// APConfig describes the provisioning access point.
type APConfig struct {
	Interface      string
	SSID           string
	Password       string
	Channel        int
	MaxConnections int
	Hidden         bool
	Address        string
	Gateway        string
	Netmask        string
}

// Driver is the narrow surface of the platform WiFi stack.
// Connect only initiates; the outcome arrives as an Event.
type Driver interface {
	SetEventHandler(h EventHandler)
	StartAP(ctx context.Context, ap APConfig) error
	Connect(ctx context.Context, cfg Config) error
	Disconnect(ctx context.Context) error
}
