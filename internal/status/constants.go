// internal/status/constants.go
package status

// Status codes reported by the JSON endpoints.
// These values define the wire protocol with the web UI and MUST NOT be configurable.

// ---- WIFI CONNECT STATUS ----

// ConnectStatus is the station connect state as seen by HTTP clients.
type ConnectStatus int

const (
	ConnectNone         ConnectStatus = 0
	ConnectConnecting   ConnectStatus = 1
	ConnectFailed       ConnectStatus = 2
	ConnectSucceeded    ConnectStatus = 3
	ConnectDisconnected ConnectStatus = 4
)

func (s ConnectStatus) String() string {
	switch s {
	case ConnectNone:
		return "none"
	case ConnectConnecting:
		return "connecting"
	case ConnectFailed:
		return "failed"
	case ConnectSucceeded:
		return "succeeded"
	case ConnectDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// ---- FIRMWARE UPDATE STATUS ----

// UpdateStatus is the firmware update state. Successful holds until restart;
// Failed allows another upload.
type UpdateStatus int

const (
	UpdatePending    UpdateStatus = 0
	UpdateSuccessful UpdateStatus = 1
	UpdateFailed     UpdateStatus = -1
)

// Terminal reports whether no further transition is allowed: a committed
// image waits for the reboot.
func (s UpdateStatus) Terminal() bool {
	return s == UpdateSuccessful
}

func (s UpdateStatus) String() string {
	switch s {
	case UpdatePending:
		return "pending"
	case UpdateSuccessful:
		return "successful"
	case UpdateFailed:
		return "failed"
	}
	return "unknown"
}
