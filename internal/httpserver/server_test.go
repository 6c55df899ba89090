// internal/httpserver/server_test.go
package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tamzrod/provisiond/internal/ota"
	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/sensor"
	"github.com/tamzrod/provisiond/internal/status"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// ---- fakes ----

type fakeInfo struct {
	info wifi.IPInfo
	ok   bool
}

func (f *fakeInfo) Info() (wifi.IPInfo, bool) { return f.info, f.ok }

type fakeUpdater struct {
	calls int
	err   error
}

func (f *fakeUpdater) Process(ctx context.Context, body io.Reader, n int64) (ota.Session, error) {
	f.calls++
	io.Copy(io.Discard, body)
	return ota.Session{BytesExpected: n}, f.err
}

type fakeSensor struct {
	r  sensor.Reading
	ok bool
}

func (f *fakeSensor) Last() (sensor.Reading, bool) { return f.r, f.ok }

type fakeClock struct {
	now string
	ok  bool
}

func (f *fakeClock) Now() (string, bool) { return f.now, f.ok }

// ---- harness ----

type testServer struct {
	srv     *Server
	monitor *Monitor
	inbox   *queue.Queue[wifi.Message]
	info    *fakeInfo
	updater *fakeUpdater
	sched   *fakeScheduler
}

func newTestServer(t *testing.T, deps Deps) *testServer {
	t.Helper()

	sched := &fakeScheduler{}
	ts := &testServer{
		monitor: NewMonitor(queue.New[status.Message](queue.Config{}), &fakeRebooter{}, WithScheduler(sched.schedule)),
		inbox:   queue.New[wifi.Message](queue.Config{}),
		info:    &fakeInfo{},
		updater: &fakeUpdater{},
		sched:   sched,
	}

	deps.Monitor = ts.monitor
	deps.WifiInbox = ts.inbox
	deps.Info = ts.info
	deps.Updater = ts.updater

	srv, err := New(Config{
		Listen: "127.0.0.1:0",
		APSSID: "ESP32_AP",
		Build:  status.Build{CompileTime: "12:00:00", CompileDate: "Oct 19 2026"},
	}, deps)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	ts.srv = srv
	return ts
}

func (ts *testServer) do(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) nextMessage(t *testing.T) wifi.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := ts.inbox.Receive(ctx)
	if err != nil {
		t.Fatalf("no message posted: %v", err)
	}
	return msg
}

// ---- tests ----

func TestWifiConnect_PostsConfigInline(t *testing.T) {
	ts := newTestServer(t, Deps{})

	rec := ts.do(http.MethodPost, "/wifiConnect.json", nil, map[string]string{
		"my-connect-ssid": "TestNet",
		"my-connect-pwd":  "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	msg, ok := ts.nextMessage(t).(wifi.ConnectingFromHTTPServer)
	if !ok {
		t.Fatalf("expected ConnectingFromHTTPServer")
	}
	if msg.Config.SSIDString() != "TestNet" || msg.Config.PasswordString() != "secret123" {
		t.Fatalf("unexpected config %q/%q", msg.Config.SSIDString(), msg.Config.PasswordString())
	}
}

func TestWifiConnect_RejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, Deps{})

	if rec := ts.do(http.MethodPost, "/wifiConnect.json", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ssid: expected 400, got %d", rec.Code)
	}

	long := strings.Repeat("x", wifi.MaxSSIDLength+1)
	if rec := ts.do(http.MethodPost, "/wifiConnect.json", nil, map[string]string{"my-connect-ssid": long}); rec.Code != http.StatusBadRequest {
		t.Fatalf("long ssid: expected 400, got %d", rec.Code)
	}
	if ts.inbox.Len() != 0 {
		t.Fatalf("rejected request must not reach the network manager")
	}
}

func TestWifiConnectStatus(t *testing.T) {
	ts := newTestServer(t, Deps{})

	rec := ts.do(http.MethodPost, "/wifiConnectStatus", nil, nil)
	if body := rec.Body.String(); body != `{"wifi_connect_status":0}` {
		t.Fatalf("unexpected body %s", body)
	}

	ts.monitor.Apply(status.WifiConnectInit)
	ts.monitor.Apply(status.WifiConnectSuccess)

	rec = ts.do(http.MethodPost, "/wifiConnectStatus", nil, nil)
	if body := rec.Body.String(); body != `{"wifi_connect_status":3}` {
		t.Fatalf("unexpected body %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestWifiConnectInfo_OnlyWhenConnected(t *testing.T) {
	ts := newTestServer(t, Deps{})
	ts.info.info = wifi.IPInfo{IP: "192.168.1.50", Netmask: "255.255.255.0", Gateway: "192.168.1.1", SSID: "TestNet"}

	if body := ts.do(http.MethodGet, "/wifiConnectInfo.json", nil, nil).Body.String(); body != "" {
		t.Fatalf("expected empty body before connect, got %s", body)
	}

	ts.info.ok = true
	ts.monitor.Apply(status.WifiConnectInit)
	ts.monitor.Apply(status.WifiConnectSuccess)

	body := ts.do(http.MethodGet, "/wifiConnectInfo.json", nil, nil).Body.String()
	want := `{"ip":"192.168.1.50","netmask":"255.255.255.0","gw":"192.168.1.1","ap":"TestNet"}`
	if body != want {
		t.Fatalf("expected %s, got %s", want, body)
	}
}

func TestWifiDisconnect_PostsMessage(t *testing.T) {
	ts := newTestServer(t, Deps{})

	if rec := ts.do(http.MethodDelete, "/wifiDisconnect.json", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	msg, ok := ts.nextMessage(t).(wifi.UserRequestedStaDisconnect)
	if !ok || msg.Source != "http" {
		t.Fatalf("expected UserRequestedStaDisconnect from http")
	}
}

func TestOTAStatus(t *testing.T) {
	ts := newTestServer(t, Deps{})
	ts.monitor.Apply(status.OTAUpdateSuccessful)

	body := ts.do(http.MethodPost, "/OTAstatus", nil, nil).Body.String()
	want := `{"ota_update_status":1,"compile_time":"12:00:00","compile_date":"Oct 19 2026"}`
	if body != want {
		t.Fatalf("expected %s, got %s", want, body)
	}
}

func TestOTAUpdate_EmptyOKBody(t *testing.T) {
	ts := newTestServer(t, Deps{})
	ts.updater.err = ota.ErrDelimiterNotFound

	rec := ts.do(http.MethodPost, "/OTAupdate", strings.NewReader("garbage"), nil)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("expected 200 with empty body regardless of result, got %d %q", rec.Code, rec.Body.String())
	}
	if ts.updater.calls != 1 {
		t.Fatalf("expected one Process call, got %d", ts.updater.calls)
	}
}

func TestOTAUpdate_ConflictAfterTerminal(t *testing.T) {
	ts := newTestServer(t, Deps{})
	ts.monitor.Apply(status.OTAUpdateSuccessful)

	rec := ts.do(http.MethodPost, "/OTAupdate", strings.NewReader("x"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if ts.updater.calls != 0 {
		t.Fatalf("updater must not run after a terminal status")
	}
}

func TestOTAUpdate_ReuploadAfterFailure(t *testing.T) {
	ts := newTestServer(t, Deps{})
	ts.monitor.Apply(status.OTAUpdateFailed)

	rec := ts.do(http.MethodPost, "/OTAupdate", strings.NewReader("x"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after a failed update, got %d", rec.Code)
	}
	if ts.updater.calls != 1 {
		t.Fatalf("expected the updater to run again, got %d calls", ts.updater.calls)
	}
}

func TestOTAUpdate_ConflictWhileBusy(t *testing.T) {
	ts := newTestServer(t, Deps{})
	ts.updater.err = ota.ErrSessionActive

	if rec := ts.do(http.MethodPost, "/OTAupdate", strings.NewReader("x"), nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSensorEndpoint(t *testing.T) {
	ts := newTestServer(t, Deps{})
	if rec := ts.do(http.MethodGet, "/dhtSensor.json", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a sensor, got %d", rec.Code)
	}

	ts = newTestServer(t, Deps{Sensor: &fakeSensor{r: sensor.Reading{Temperature: 23.14, Humidity: 45.66}, ok: true}})
	body := ts.do(http.MethodGet, "/dhtSensor.json", nil, nil).Body.String()
	if body != `{"temp":"23.1","humidity":"45.7"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestSensorEndpoint_BeforeFirstReading(t *testing.T) {
	ts := newTestServer(t, Deps{Sensor: &fakeSensor{}})

	rec := ts.do(http.MethodGet, "/dhtSensor.json", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before the first reading, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "" {
		t.Fatalf("expected empty body, got %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestLocalTimeAndAPSSID(t *testing.T) {
	clock := &fakeClock{}
	ts := newTestServer(t, Deps{Clock: clock})

	if body := ts.do(http.MethodGet, "/localTime.json", nil, nil).Body.String(); body != "" {
		t.Fatalf("expected empty body before sync, got %s", body)
	}

	clock.now, clock.ok = "19.10.2026 09:15:00", true
	if body := ts.do(http.MethodGet, "/localTime.json", nil, nil).Body.String(); body != `{"time":"19.10.2026 09:15:00"}` {
		t.Fatalf("unexpected body %s", body)
	}

	if body := ts.do(http.MethodGet, "/apSSID.json", nil, nil).Body.String(); body != `{"ssid":"ESP32_AP"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestAssets(t *testing.T) {
	ts := newTestServer(t, Deps{})

	for path, mime := range map[string]string{
		"/":            "text/html",
		"/app.css":     "text/css",
		"/app.js":      "application/javascript",
		"/favicon.ico": "image/x-icon",
	} {
		rec := ts.do(http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
			t.Fatalf("%s: expected content, got %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != mime {
			t.Fatalf("%s: expected %s, got %s", path, mime, ct)
		}
	}
}

func TestMethodsEnforced(t *testing.T) {
	ts := newTestServer(t, Deps{})
	if rec := ts.do(http.MethodGet, "/wifiConnect.json", nil, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
