// internal/wifi/manager.go
package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tamzrod/provisiond/internal/led"
	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/status"
)

// DefaultMaxRetries bounds reconnect attempts after the first try.
const DefaultMaxRetries = 5

// Phase is the manager lifecycle.
type Phase int

const (
	PhaseAPOnly Phase = iota
	PhaseStarting
	PhaseRunning
)

// StaState is the station sub-state while running.
type StaState int

const (
	StaIdle StaState = iota
	StaConnecting
	StaConnected
	StaUserDisconnected
)

func (s StaState) String() string {
	switch s {
	case StaIdle:
		return "idle"
	case StaConnecting:
		return "connecting"
	case StaConnected:
		return "connected"
	case StaUserDisconnected:
		return "user-disconnected"
	}
	return "unknown"
}

// origin records who started the current attempt.
type origin int

const (
	originNone origin = iota
	originHTTP
	originSaved
	originReconnect
)

// HTTPServer is started once the access point is up.
type HTTPServer interface {
	Start(ctx context.Context) error
}

// CredentialStore persists station credentials across restarts.
type CredentialStore interface {
	Save(cfg Config) error
	Load() (Config, bool, error)
	Clear() error
}

// ConnectedHook runs on the manager goroutine after every got-IP.
// It must not block.
type ConnectedHook func(ctx context.Context, info IPInfo)

// ManagerConfig is the immutable runtime config.
type ManagerConfig struct {
	AP         APConfig
	MaxRetries int
}

// Deps are the manager's collaborators.
type Deps struct {
	Inbox  *queue.Queue[Message]
	Status *queue.Queue[status.Message]
	Driver Driver
	Server HTTPServer
	Store  CredentialStore
	LED    led.Indicator
	Hooks  []ConnectedHook
}

// State is a published copy of the manager state.
type State struct {
	Phase Phase
	Sta   StaState
	Info  IPInfo
}

// Manager is the network state machine.
// All transitions happen on the Run goroutine, driven by inbox messages.
type Manager struct {
	cfg  ManagerConfig
	deps Deps
	log  *slog.Logger

	// owned by Run
	phase   Phase
	sta     StaState
	station Config
	origin  origin
	retries int

	mu    sync.RWMutex
	state State
}

// New creates a manager with immutable config.
func New(cfg ManagerConfig, deps Deps) (*Manager, error) {
	if deps.Inbox == nil || deps.Status == nil {
		return nil, errors.New("wifi: inbox and status queues required")
	}
	if deps.Driver == nil {
		return nil, errors.New("wifi: driver required")
	}
	if deps.Server == nil {
		return nil, errors.New("wifi: http server required")
	}
	if deps.Store == nil {
		return nil, errors.New("wifi: credential store required")
	}
	if deps.LED == nil {
		deps.LED = led.New(nil)
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.New("wifi: max retries must be >= 0")
	}

	return &Manager{
		cfg:  cfg,
		deps: deps,
		log:  slog.With("component", "wifi"),
	}, nil
}

// Run processes the inbox until ctx ends or a platform error occurs.
// Platform errors (AP bring-up, server start) are returned: the caller
// exits instead of running half-initialized.
func (m *Manager) Run(ctx context.Context) error {
	m.deps.Driver.SetEventHandler(func(ev Event) {
		m.translate(ctx, ev)
	})

	// Self-post on an empty inbox before the loop starts.
	if err := m.deps.Inbox.Send(ctx, StartHTTPServer{}); err != nil {
		return err
	}

	for {
		msg, err := m.deps.Inbox.Receive(ctx)
		if err != nil {
			return err
		}
		if err := m.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// State returns a copy of the published state. Safe from any goroutine.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Info returns the station address set while connected.
func (m *Manager) Info() (IPInfo, bool) {
	s := m.State()
	return s.Info, s.Sta == StaConnected
}

// translate runs on the driver goroutine. Enqueue only.
func (m *Manager) translate(ctx context.Context, ev Event) {
	var msg Message
	switch ev.Kind {
	case EventStaGotIP:
		msg = StaConnectedGotIP{Info: ev.Info}
	case EventStaDisconnected:
		msg = StaDisconnected{Reason: ev.Reason}
	default:
		return
	}
	// Post, not Send: a lost got-IP would leave the attempt hanging.
	if err := m.deps.Inbox.Post(ctx, msg); err != nil {
		m.log.Warn("driver event dropped", "event", fmt.Sprintf("%T", msg), "err", err)
	}
}

func (m *Manager) handle(ctx context.Context, msg Message) error {
	if _, ok := msg.(StartHTTPServer); !ok && m.phase != PhaseRunning {
		m.log.Warn("message dropped before start", "msg", fmt.Sprintf("%T", msg))
		return nil
	}

	switch msg := msg.(type) {
	case StartHTTPServer:
		return m.startHTTPServer(ctx)
	case ConnectingFromHTTPServer:
		m.connectFromHTTP(ctx, msg.Config)
	case StaConnectedGotIP:
		m.staGotIP(ctx, msg.Info)
	case StaDisconnected:
		m.staDisconnected(ctx, msg.Reason)
	case UserRequestedStaDisconnect:
		m.userDisconnect(ctx, msg.Source)
	default:
		m.log.Warn("unknown message", "msg", fmt.Sprintf("%T", msg))
	}
	return nil
}

// --------------------
// Transitions
// --------------------

func (m *Manager) startHTTPServer(ctx context.Context) error {
	if m.phase != PhaseAPOnly {
		m.log.Warn("http server already started")
		return nil
	}
	m.setPhase(PhaseStarting)

	if err := m.deps.Driver.StartAP(ctx, m.cfg.AP); err != nil {
		return fmt.Errorf("wifi: start access point: %w", err)
	}
	if err := m.deps.Server.Start(ctx); err != nil {
		return fmt.Errorf("wifi: start http server: %w", err)
	}

	m.deps.LED.Notify(led.HTTPServerStarted)
	m.setPhase(PhaseRunning)
	m.log.Info("access point up", "ssid", m.cfg.AP.SSID, "address", m.cfg.AP.Address)

	// Handled inline: a self-post here could block on our own full inbox.
	m.loadSavedCredentials(ctx)
	return nil
}

func (m *Manager) loadSavedCredentials(ctx context.Context) {
	if m.sta == StaConnecting || m.sta == StaConnected {
		return
	}

	cfg, found, err := m.deps.Store.Load()
	if err != nil {
		m.log.Warn("saved credentials unreadable", "err", err)
		return
	}
	if !found || cfg.IsZero() {
		m.log.Info("no saved credentials")
		return
	}

	m.log.Info("connecting with saved credentials", "ssid", cfg.SSIDString())
	m.beginAttempt(ctx, cfg, originSaved)
}

func (m *Manager) connectFromHTTP(ctx context.Context, cfg Config) {
	if m.sta == StaConnecting {
		m.log.Warn("connect request ignored: attempt in progress", "ssid", cfg.SSIDString())
		return
	}
	m.log.Info("connect requested", "ssid", cfg.SSIDString())
	m.beginAttempt(ctx, cfg, originHTTP)
}

func (m *Manager) staGotIP(ctx context.Context, info IPInfo) {
	if m.sta != StaConnecting {
		m.log.Warn("got-ip outside an attempt ignored", "sta", m.sta)
		return
	}
	if info.SSID == "" {
		info.SSID = m.station.SSIDString()
	}

	m.setSta(StaConnected, info)
	m.deps.LED.Notify(led.WifiConnected)
	m.notify(ctx, status.WifiConnectSuccess)
	m.log.Info("station connected", "ssid", info.SSID, "ip", info.IP, "gw", info.Gateway)

	if m.origin == originHTTP {
		if err := m.deps.Store.Save(m.station); err != nil {
			m.log.Error("save credentials failed", "err", err)
		}
	}

	for _, h := range m.deps.Hooks {
		h(ctx, info)
	}
}

func (m *Manager) staDisconnected(ctx context.Context, reason string) {
	switch m.sta {
	case StaConnecting:
		m.log.Info("station attempt failed", "reason", reason, "retries", m.retries)
		m.retry(ctx)

	case StaConnected:
		m.log.Warn("station link lost, reconnecting", "reason", reason)
		m.beginAttempt(ctx, m.station, originReconnect)

	default:
		// Idle or user-disconnected: the drop is expected.
		m.log.Debug("station disconnect event", "sta", m.sta, "reason", reason)
	}
}

func (m *Manager) userDisconnect(ctx context.Context, source string) {
	if m.sta != StaConnecting && m.sta != StaConnected {
		m.log.Info("disconnect ignored: station not active", "source", source, "sta", m.sta)
		return
	}

	// State first: the driver's disconnect event must land on StaUserDisconnected.
	m.setSta(StaUserDisconnected, IPInfo{})
	if err := m.deps.Driver.Disconnect(ctx); err != nil {
		m.log.Error("station disconnect failed", "err", err)
	}
	if err := m.deps.Store.Clear(); err != nil {
		m.log.Error("clear credentials failed", "err", err)
	}

	m.station = Config{}
	m.origin = originNone
	m.retries = 0

	m.deps.LED.Notify(led.HTTPServerStarted)
	m.notify(ctx, status.UserDisconnected)
	m.log.Info("station disconnected by user", "source", source)
}

// --------------------
// Attempt helpers
// --------------------

func (m *Manager) beginAttempt(ctx context.Context, cfg Config, o origin) {
	m.station = cfg
	m.origin = o
	m.retries = 0

	m.setSta(StaConnecting, IPInfo{})
	m.notify(ctx, status.WifiConnectInit)

	if err := m.deps.Driver.Connect(ctx, cfg); err != nil {
		m.log.Warn("station connect failed", "ssid", cfg.SSIDString(), "err", err)
		m.retry(ctx)
	}
}

// retry reconnects until the driver accepts a request or retries run out.
func (m *Manager) retry(ctx context.Context) {
	for m.retries < m.cfg.MaxRetries {
		m.retries++
		err := m.deps.Driver.Connect(ctx, m.station)
		if err == nil {
			return
		}
		m.log.Warn("station reconnect failed", "retry", m.retries, "err", err)
	}
	m.attemptFailed(ctx)
}

func (m *Manager) attemptFailed(ctx context.Context) {
	m.log.Warn("station connection failed", "ssid", m.station.SSIDString(), "retries", m.retries)

	if m.origin == originSaved {
		if err := m.deps.Store.Clear(); err != nil {
			m.log.Error("clear credentials failed", "err", err)
		}
	}

	m.setSta(StaIdle, IPInfo{})
	m.station = Config{}
	m.origin = originNone
	m.retries = 0
	m.notify(ctx, status.WifiConnectFail)
}

func (m *Manager) notify(ctx context.Context, msg status.Message) {
	if err := m.deps.Status.Send(ctx, msg); err != nil {
		m.log.Error("status notify failed", "msg", msg, "err", err)
	}
}

func (m *Manager) setPhase(p Phase) {
	m.phase = p
	m.mu.Lock()
	m.state.Phase = p
	m.mu.Unlock()
}

func (m *Manager) setSta(s StaState, info IPInfo) {
	m.sta = s
	m.mu.Lock()
	m.state.Sta = s
	m.state.Info = info
	m.mu.Unlock()
}
