// internal/httpserver/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tamzrod/provisiond/internal/ota"
	"github.com/tamzrod/provisiond/internal/status"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// Request headers carrying station credentials.
const (
	headerSSID     = "my-connect-ssid"
	headerPassword = "my-connect-pwd"
)

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeDoc(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, body)
}

// ---- firmware update ----

func (s *Server) handleOTAUpdate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Monitor.Snapshot().Update.Terminal() {
		http.Error(w, "firmware update already committed, restart pending", http.StatusConflict)
		return
	}

	var body io.Reader = r.Body
	if s.cfg.ReadTimeout > 0 {
		body = &deadlineReader{r: r.Body, rc: http.NewResponseController(w), timeout: s.cfg.ReadTimeout}
	}

	// The upload outlives a client that hangs up early: the status message must still land.
	ctx := context.WithoutCancel(r.Context())

	sess, err := s.deps.Updater.Process(ctx, body, r.ContentLength)
	if errors.Is(err, ota.ErrSessionActive) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.log.Info("firmware upload handled", "session", sess.ID, "written", sess.BytesWritten, "ok", err == nil)

	// Accepted for processing; the result is reported by /OTAstatus.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleOTAStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, status.EncodeUpdate(s.deps.Monitor.Snapshot(), s.cfg.Build))
}

// ---- wifi ----

func (s *Server) handleWifiConnect(w http.ResponseWriter, r *http.Request) {
	cfg, err := wifi.NewConfig(r.Header.Get(headerSSID), r.Header.Get(headerPassword))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg := wifi.ConnectingFromHTTPServer{Config: cfg}
	if err := s.deps.WifiInbox.Send(r.Context(), msg); err != nil {
		http.Error(w, fmt.Sprintf("network manager busy: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWifiConnectStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, status.EncodeConnect(s.deps.Monitor.Snapshot()))
}

type connectInfoDoc struct {
	IP      string `json:"ip"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gw"`
	AP      string `json:"ap"`
}

func (s *Server) handleWifiConnectInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.deps.Info.Info()
	if !ok || s.deps.Monitor.Snapshot().Connect != status.ConnectSucceeded {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeDoc(w, connectInfoDoc{
		IP:      info.IP,
		Netmask: info.Netmask,
		Gateway: info.Gateway,
		AP:      info.SSID,
	})
}

func (s *Server) handleWifiDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.WifiInbox.Send(r.Context(), wifi.UserRequestedStaDisconnect{Source: "http"}); err != nil {
		http.Error(w, fmt.Sprintf("network manager busy: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAPSSID(w http.ResponseWriter, r *http.Request) {
	writeDoc(w, struct {
		SSID string `json:"ssid"`
	}{s.cfg.APSSID})
}

// ---- collaborators ----

func (s *Server) handleLocalTime(w http.ResponseWriter, r *http.Request) {
	if s.deps.Clock == nil {
		writeJSON(w, nil)
		return
	}
	now, ok := s.deps.Clock.Now()
	if !ok {
		// not set yet: empty body, like connect info
		writeJSON(w, nil)
		return
	}
	writeDoc(w, struct {
		Time string `json:"time"`
	}{now})
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.deps.Sensor.Last()
	if !ok {
		// no reading yet: empty body, like local time
		writeJSON(w, nil)
		return
	}
	writeDoc(w, struct {
		Temp     string `json:"temp"`
		Humidity string `json:"humidity"`
	}{
		Temp:     fmt.Sprintf("%.1f", reading.Temperature),
		Humidity: fmt.Sprintf("%.1f", reading.Humidity),
	})
}

// deadlineReader arms a fresh read deadline before every body read, so a
// stalled client surfaces as a timeout error instead of hanging forever.
type deadlineReader struct {
	r       io.Reader
	rc      *http.ResponseController
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	_ = d.rc.SetReadDeadline(time.Now().Add(d.timeout))
	return d.r.Read(p)
}
