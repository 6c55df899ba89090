// internal/httpserver/server.go
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/tamzrod/provisiond/internal/ota"
	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/sensor"
	"github.com/tamzrod/provisiond/internal/status"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// InfoProvider reports the station address set while connected.
type InfoProvider interface {
	Info() (wifi.IPInfo, bool)
}

// Updater writes one firmware upload.
type Updater interface {
	Process(ctx context.Context, body io.Reader, contentLength int64) (ota.Session, error)
}

// SensorReader exposes the last good reading.
type SensorReader interface {
	Last() (sensor.Reading, bool)
}

// Clock exposes formatted wall time once synced.
type Clock interface {
	Now() (string, bool)
}

// Config is the immutable server config.
type Config struct {
	Listen      string
	APSSID      string
	Build       status.Build
	ReadTimeout time.Duration // per-read deadline on request bodies
}

// Deps are the server's collaborators. Sensor and Clock are optional.
type Deps struct {
	Monitor   *Monitor
	WifiInbox *queue.Queue[wifi.Message]
	Info      InfoProvider
	Updater   Updater
	Sensor    SensorReader
	Clock     Clock
}

// Server owns the listener, the routes and the status monitor.
type Server struct {
	cfg  Config
	deps Deps
	hub  *hub
	log  *slog.Logger

	router *mux.Router

	mu      sync.Mutex
	started bool
	srv     *http.Server
}

func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.Listen == "" {
		return nil, errors.New("httpserver: listen address required")
	}
	if deps.Monitor == nil || deps.WifiInbox == nil || deps.Info == nil || deps.Updater == nil {
		return nil, errors.New("httpserver: monitor, wifi inbox, info and updater required")
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		hub:  newHub(),
		log:  slog.With("component", "http"),
	}
	deps.Monitor.Subscribe(s.hub.broadcast)
	s.router = s.routes()
	return s, nil
}

// Handler exposes the router (tests, embedding).
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/OTAupdate", s.handleOTAUpdate).Methods(http.MethodPost)
	r.HandleFunc("/OTAstatus", s.handleOTAStatus).Methods(http.MethodPost)
	r.HandleFunc("/wifiConnect.json", s.handleWifiConnect).Methods(http.MethodPost)
	r.HandleFunc("/wifiConnectStatus", s.handleWifiConnectStatus).Methods(http.MethodPost)
	r.HandleFunc("/wifiConnectInfo.json", s.handleWifiConnectInfo).Methods(http.MethodGet)
	r.HandleFunc("/wifiDisconnect.json", s.handleWifiDisconnect).Methods(http.MethodDelete)
	r.HandleFunc("/apSSID.json", s.handleAPSSID).Methods(http.MethodGet)
	r.HandleFunc("/localTime.json", s.handleLocalTime).Methods(http.MethodGet)
	if s.deps.Sensor != nil {
		r.HandleFunc("/dhtSensor.json", s.handleSensor).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws/status", s.handleStatusSocket).Methods(http.MethodGet)

	registerAssets(r)
	return r
}

// Start binds the listener and launches the monitor. Idempotent.
// Bind errors are returned; serve errors after that are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.cfg.Listen, err)
	}

	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.started = true

	go func() {
		if err := s.deps.Monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("status monitor stopped", "err", err)
		}
	}()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http serve failed", "err", err)
		}
	}()

	s.log.Info("http server started", "listen", ln.Addr().String())
	return nil
}

// Shutdown stops accepting requests and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	s.hub.closeAll()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
