// internal/wifi/manager_test.go
package wifi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/status"
)

// ---- fakes ----

type fakeDriver struct {
	mu          sync.Mutex
	handler     EventHandler
	succeed     bool
	silent      bool
	apErr       error
	connects    int
	disconnects int
}

func (d *fakeDriver) SetEventHandler(h EventHandler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func (d *fakeDriver) StartAP(ctx context.Context, ap APConfig) error {
	return d.apErr
}

func (d *fakeDriver) Connect(ctx context.Context, cfg Config) error {
	d.mu.Lock()
	d.connects++
	h, ok, silent := d.handler, d.succeed, d.silent
	d.mu.Unlock()

	if silent {
		return nil
	}
	go func() {
		if ok {
			h(Event{Kind: EventStaGotIP, Info: IPInfo{
				IP: "192.168.1.50", Netmask: "255.255.255.0", Gateway: "192.168.1.1",
			}})
			return
		}
		h(Event{Kind: EventStaDisconnected, Reason: "auth failed"})
	}()
	return nil
}

func (d *fakeDriver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	d.disconnects++
	h := d.handler
	d.mu.Unlock()

	go h(Event{Kind: EventStaDisconnected, Reason: "user"})
	return nil
}

// emit delivers ev on its own goroutine, like an unsolicited driver event.
func (d *fakeDriver) emit(ev Event) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	go h(ev)
}

func (d *fakeDriver) connectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

type fakeServer struct{ err error }

func (s *fakeServer) Start(ctx context.Context) error { return s.err }

type memStore struct {
	mu     sync.Mutex
	cfg    Config
	found  bool
	saves  int
	clears int
}

func (s *memStore) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg, s.found = cfg, true
	s.saves++
	return nil
}

func (s *memStore) Load() (Config, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.found, nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg, s.found = Config{}, false
	s.clears++
	return nil
}

func (s *memStore) counts() (saves, clears int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.clears
}

// ---- harness ----

type harness struct {
	m      *Manager
	inbox  *queue.Queue[Message]
	status *queue.Queue[status.Message]
	driver *fakeDriver
	store  *memStore
	done   chan error
}

func start(t *testing.T, d *fakeDriver, store *memStore) *harness {
	t.Helper()

	h := &harness{
		inbox:  queue.New[Message](queue.Config{}),
		status: queue.New[status.Message](queue.Config{Capacity: 16}),
		driver: d,
		store:  store,
		done:   make(chan error, 1),
	}

	m, err := New(ManagerConfig{MaxRetries: DefaultMaxRetries}, Deps{
		Inbox:  h.inbox,
		Status: h.status,
		Driver: d,
		Server: &fakeServer{},
		Store:  store,
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	h.m = m

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { h.done <- m.Run(ctx) }()

	waitFor(t, func() bool { return m.State().Phase == PhaseRunning })
	return h
}

func (h *harness) expectStatus(t *testing.T, want ...status.Message) {
	t.Helper()
	for _, w := range want {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		got, err := h.status.Receive(ctx)
		cancel()
		if err != nil {
			t.Fatalf("expected status %s, got none (%v)", w, err)
		}
		if got != w {
			t.Fatalf("expected status %s, got %s", w, got)
		}
	}
}

func (h *harness) expectQuiet(t *testing.T) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	if n := h.status.Len(); n != 0 {
		t.Fatalf("expected no further status messages, got %d", n)
	}
}

func (h *harness) send(t *testing.T, msg Message) {
	t.Helper()
	if err := h.inbox.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send err=%v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached")
}

func mustConfig(t *testing.T, ssid, pwd string) Config {
	t.Helper()
	c, err := NewConfig(ssid, pwd)
	if err != nil {
		t.Fatalf("NewConfig err=%v", err)
	}
	return c
}

// ---- tests ----

func TestManager_ConnectFromHTTP_Success(t *testing.T) {
	h := start(t, &fakeDriver{succeed: true}, &memStore{})
	cfg := mustConfig(t, "TestNet", "secret123")

	h.send(t, ConnectingFromHTTPServer{Config: cfg})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	info, ok := h.m.Info()
	if !ok {
		t.Fatalf("expected connected state")
	}
	if info.IP != "192.168.1.50" || info.SSID != "TestNet" {
		t.Fatalf("unexpected info %+v", info)
	}

	waitFor(t, func() bool { s, _ := h.store.counts(); return s == 1 })
	got, found, _ := h.store.Load()
	if !found || got != cfg {
		t.Fatalf("expected saved credentials to match request")
	}
}

func TestManager_ConnectFromHTTP_RetriesExhausted(t *testing.T) {
	d := &fakeDriver{succeed: false}
	h := start(t, d, &memStore{})

	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "TestNet", "wrong")})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectFail)

	if n := d.connectCount(); n != 1+DefaultMaxRetries {
		t.Fatalf("expected %d connect calls, got %d", 1+DefaultMaxRetries, n)
	}
	if s := h.m.State().Sta; s != StaIdle {
		t.Fatalf("expected idle after failure, got %s", s)
	}
	if saves, _ := h.store.counts(); saves != 0 {
		t.Fatalf("failed attempt must not persist credentials")
	}
}

func TestManager_SecondRequestWhileConnectingIgnored(t *testing.T) {
	d := &fakeDriver{silent: true}
	h := start(t, d, &memStore{})

	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "A", "")})
	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "B", "")})
	h.send(t, UserRequestedStaDisconnect{Source: "http"})

	// Never two consecutive Connecting.
	h.expectStatus(t, status.WifiConnectInit, status.UserDisconnected)
	if n := d.connectCount(); n != 1 {
		t.Fatalf("expected 1 connect call, got %d", n)
	}
}

func TestManager_SavedCredentialsAtStartup(t *testing.T) {
	store := &memStore{}
	_ = store.Save(mustConfig(t, "HomeNet", "pw"))
	store.saves = 0

	h := start(t, &fakeDriver{succeed: true}, store)
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	if saves, _ := store.counts(); saves != 0 {
		t.Fatalf("saved-credential attempt must not re-save, got %d saves", saves)
	}
}

func TestManager_SavedCredentialsClearedOnFailure(t *testing.T) {
	store := &memStore{}
	_ = store.Save(mustConfig(t, "GoneNet", "pw"))

	h := start(t, &fakeDriver{succeed: false}, store)
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectFail)

	if _, clears := store.counts(); clears != 1 {
		t.Fatalf("expected credentials cleared once, got %d", clears)
	}
}

func TestManager_UserDisconnect(t *testing.T) {
	d := &fakeDriver{succeed: true}
	h := start(t, d, &memStore{})

	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "TestNet", "secret123")})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	h.send(t, UserRequestedStaDisconnect{Source: "button"})
	h.expectStatus(t, status.UserDisconnected)

	// The driver's own disconnect event is expected and produces nothing.
	h.expectQuiet(t)

	if s := h.m.State().Sta; s != StaUserDisconnected {
		t.Fatalf("expected disconnected, got %s", s)
	}
	if _, ok := h.m.Info(); ok {
		t.Fatalf("info must not be reported after disconnect")
	}
	if _, clears := h.store.counts(); clears != 1 {
		t.Fatalf("expected credentials cleared")
	}
}

func TestManager_DisconnectEventAfterUserDisconnectIgnored(t *testing.T) {
	d := &fakeDriver{succeed: true}
	h := start(t, d, &memStore{})

	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "TestNet", "secret123")})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	h.send(t, UserRequestedStaDisconnect{Source: "http"})
	h.expectStatus(t, status.UserDisconnected)

	// a late drop from the torn-down link
	d.emit(Event{Kind: EventStaDisconnected, Reason: "beacon timeout"})
	h.expectQuiet(t)

	if n := d.connectCount(); n != 1 {
		t.Fatalf("no reconnect after a user disconnect, got %d connects", n)
	}
	if s := h.m.State().Sta; s != StaUserDisconnected {
		t.Fatalf("expected user-disconnected, got %s", s)
	}
}

func TestManager_LinkLossReconnects(t *testing.T) {
	d := &fakeDriver{succeed: true}
	h := start(t, d, &memStore{})

	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "TestNet", "secret123")})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	d.emit(Event{Kind: EventStaDisconnected, Reason: "beacon timeout"})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	if n := d.connectCount(); n != 2 {
		t.Fatalf("expected one reconnect, got %d connects", n)
	}
	info, ok := h.m.Info()
	if !ok || info.SSID != "TestNet" {
		t.Fatalf("expected reconnected to TestNet, got %+v ok=%v", info, ok)
	}
	// only the HTTP attempt persists
	waitFor(t, func() bool { s, _ := h.store.counts(); return s == 1 })
	h.expectQuiet(t)
	if saves, _ := h.store.counts(); saves != 1 {
		t.Fatalf("reconnect must not re-save, got %d saves", saves)
	}
}

func TestManager_ConnectWhileConnectedReplacesLink(t *testing.T) {
	d := &fakeDriver{succeed: true}
	h := start(t, d, &memStore{})

	h.send(t, ConnectingFromHTTPServer{Config: mustConfig(t, "A", "secret123")})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	next := mustConfig(t, "B", "secret456")
	h.send(t, ConnectingFromHTTPServer{Config: next})
	h.expectStatus(t, status.WifiConnectInit, status.WifiConnectSuccess)

	if n := d.connectCount(); n != 2 {
		t.Fatalf("expected 2 connect calls, got %d", n)
	}
	if info, ok := h.m.Info(); !ok || info.SSID != "B" {
		t.Fatalf("expected connected to B, got %+v ok=%v", info, ok)
	}
	waitFor(t, func() bool { s, _ := h.store.counts(); return s == 2 })
	if got, found, _ := h.store.Load(); !found || got != next {
		t.Fatalf("expected the newer credentials saved")
	}
}

func TestManager_DriverEventOutlastsSendTimeout(t *testing.T) {
	inbox := queue.New[Message](queue.Config{Capacity: 1, SendTimeout: 20 * time.Millisecond})
	m, err := New(ManagerConfig{}, Deps{
		Inbox:  inbox,
		Status: queue.New[status.Message](queue.Config{}),
		Driver: &fakeDriver{},
		Server: &fakeServer{},
		Store:  &memStore{},
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := UserRequestedStaDisconnect{Source: "http"}
	if err := inbox.Send(ctx, req); err != nil {
		t.Fatalf("Send err=%v", err)
	}

	done := make(chan struct{})
	go func() {
		m.translate(ctx, Event{Kind: EventStaGotIP, Info: IPInfo{IP: "192.168.1.50"}})
		close(done)
	}()

	// well past the send timeout
	time.Sleep(60 * time.Millisecond)

	if msg, _ := inbox.Receive(ctx); msg != Message(req) {
		t.Fatalf("expected the queued request first, got %T", msg)
	}
	msg, err := inbox.Receive(ctx)
	if err != nil {
		t.Fatalf("got-ip lost on a full inbox: %v", err)
	}
	if got, ok := msg.(StaConnectedGotIP); !ok || got.Info.IP != "192.168.1.50" {
		t.Fatalf("expected got-ip, got %#v", msg)
	}
	<-done
}

func TestManager_DisconnectWhileIdleIgnored(t *testing.T) {
	h := start(t, &fakeDriver{succeed: true}, &memStore{})

	h.send(t, UserRequestedStaDisconnect{Source: "button"})
	h.expectQuiet(t)
}

func TestManager_StartAPFailureIsFatal(t *testing.T) {
	m, err := New(ManagerConfig{}, Deps{
		Inbox:  queue.New[Message](queue.Config{}),
		Status: queue.New[status.Message](queue.Config{}),
		Driver: &fakeDriver{apErr: errors.New("no radio")},
		Server: &fakeServer{},
		Store:  &memStore{},
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.Run(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected platform error, got %v", err)
	}
}

func TestNew_RequiresDriver(t *testing.T) {
	_, err := New(ManagerConfig{}, Deps{
		Inbox:  queue.New[Message](queue.Config{}),
		Status: queue.New[status.Message](queue.Config{}),
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}
