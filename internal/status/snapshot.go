// internal/status/snapshot.go
package status

// Snapshot is exactly what HTTP clients are allowed to observe.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Connect    ConnectStatus
	Update     UpdateStatus
	TimeSynced bool
}

// Message is an event for the status monitor.
// Each kind updates exactly one Snapshot field.
type Message int

const (
	WifiConnectInit Message = iota
	WifiConnectSuccess
	WifiConnectFail
	UserDisconnected
	OTAUpdateSuccessful
	OTAUpdateFailed
	TimeServiceInitialized
)

func (m Message) String() string {
	switch m {
	case WifiConnectInit:
		return "wifi_connect_init"
	case WifiConnectSuccess:
		return "wifi_connect_success"
	case WifiConnectFail:
		return "wifi_connect_fail"
	case UserDisconnected:
		return "user_disconnected"
	case OTAUpdateSuccessful:
		return "ota_update_successful"
	case OTAUpdateFailed:
		return "ota_update_failed"
	case TimeServiceInitialized:
		return "time_service_initialized"
	}
	return "unknown"
}
