// internal/status/encode.go
package status

import "encoding/json"

// Build identifies the running image for /OTAstatus.
type Build struct {
	CompileTime string
	CompileDate string
}

type updateDoc struct {
	Status      UpdateStatus `json:"ota_update_status"`
	CompileTime string       `json:"compile_time"`
	CompileDate string       `json:"compile_date"`
}

type connectDoc struct {
	Status ConnectStatus `json:"wifi_connect_status"`
}

type snapshotDoc struct {
	WifiConnectStatus ConnectStatus `json:"wifi_connect_status"`
	OTAUpdateStatus   UpdateStatus  `json:"ota_update_status"`
	TimeSynced        bool          `json:"time_synced"`
}

// EncodeUpdate renders the firmware update document.
// Field order is protocol-locked.
func EncodeUpdate(s Snapshot, b Build) []byte {
	out, _ := json.Marshal(updateDoc{
		Status:      s.Update,
		CompileTime: b.CompileTime,
		CompileDate: b.CompileDate,
	})
	return out
}

// EncodeConnect renders the wifi connect status document.
func EncodeConnect(s Snapshot) []byte {
	out, _ := json.Marshal(connectDoc{Status: s.Connect})
	return out
}

// Encode renders the full snapshot for push channels (websocket, mqtt).
func Encode(s Snapshot) []byte {
	out, _ := json.Marshal(snapshotDoc{
		WifiConnectStatus: s.Connect,
		OTAUpdateStatus:   s.Update,
		TimeSynced:        s.TimeSynced,
	})
	return out
}
