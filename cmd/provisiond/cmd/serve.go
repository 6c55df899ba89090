// cmd/provisiond/cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/provisiond/internal/button"
	"github.com/tamzrod/provisiond/internal/config"
	"github.com/tamzrod/provisiond/internal/creds"
	"github.com/tamzrod/provisiond/internal/httpserver"
	"github.com/tamzrod/provisiond/internal/led"
	ledmodbus "github.com/tamzrod/provisiond/internal/led/modbus"
	"github.com/tamzrod/provisiond/internal/logging"
	"github.com/tamzrod/provisiond/internal/mqtt"
	"github.com/tamzrod/provisiond/internal/ota"
	"github.com/tamzrod/provisiond/internal/ota/flash"
	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/restart"
	"github.com/tamzrod/provisiond/internal/sensor"
	"github.com/tamzrod/provisiond/internal/signal"
	"github.com/tamzrod/provisiond/internal/status"
	"github.com/tamzrod/provisiond/internal/timesync"
	"github.com/tamzrod/provisiond/internal/version"
	"github.com/tamzrod/provisiond/internal/wifi"
	"github.com/tamzrod/provisiond/internal/wifi/nm"
	"github.com/tamzrod/provisiond/internal/wifi/sim"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provisioning daemon",
	Long: `Run the access point, the HTTP status server and the network manager
until interrupted. Platform initialization errors exit non-zero so the
service supervisor restarts the daemon.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// starterFunc adapts a function to wifi.HTTPServer.
type starterFunc func(ctx context.Context) error

func (f starterFunc) Start(ctx context.Context) error { return f(ctx) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func runServe(cmd *cobra.Command, args []string) error {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	log := slog.With("component", "main")

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Queues
	// --------------------

	qcfg := queue.Config{Capacity: cfg.Queue.Capacity, SendTimeout: ms(cfg.Queue.SendTimeoutMs)}
	wifiQ := queue.New[wifi.Message](qcfg)
	statusQ := queue.New[status.Message](qcfg)

	// --------------------
	// LED
	// --------------------

	indicator, closeLED, err := buildLED(cfg.LED)
	if err != nil {
		return err
	}
	defer closeLED()
	indicator.Notify(led.AppStarted)

	// --------------------
	// Storage: credentials + firmware slots
	// --------------------

	store, err := creds.NewFileStore(cfg.Credentials.Path)
	if err != nil {
		return err
	}

	slots, err := flash.Open(flash.Config{Dir: cfg.OTA.Dir, Magic: cfg.OTA.Magic})
	if err != nil {
		return err
	}
	log.Info("firmware slots ready", "running", slots.Running().Label, "dir", cfg.OTA.Dir)

	updater, err := ota.New(slots, statusQ,
		ota.WithChunkSize(cfg.OTA.ChunkSize),
		ota.WithMaxHeaderBytes(cfg.OTA.MaxHeaderBytes),
		ota.WithMaxReadTimeouts(cfg.OTA.MaxReadTimeouts),
	)
	if err != nil {
		return err
	}

	// --------------------
	// Status monitor + collaborators
	// --------------------

	monitor := httpserver.NewMonitor(statusQ, restart.New(cfg.OTA.RebootCommand),
		httpserver.WithRebootDelay(ms(cfg.OTA.RebootDelayMs)))

	loc := time.Local
	if cfg.Time.Zone != "" {
		if loc, err = time.LoadLocation(cfg.Time.Zone); err != nil {
			return err
		}
	}
	clock := timesync.New(loc, statusQ, timesync.WithCheckInterval(ms(cfg.Time.CheckIntervalMs)))

	hooks := []wifi.ConnectedHook{
		func(ctx context.Context, _ wifi.IPInfo) { clock.Start(ctx) },
	}

	if cfg.MQTT != nil {
		pub, err := mqtt.New(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Timeout:     ms(cfg.MQTT.TimeoutMs),
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		monitor.Subscribe(pub.Observe)
		hooks = append(hooks, pub.Start)
	}

	var sensorReader httpserver.SensorReader
	if cfg.Sensor != nil {
		p, err := sensor.Build(*cfg.Sensor)
		if err != nil {
			return fmt.Errorf("sensor build failed: %w", err)
		}
		go p.Run(ctx)
		sensorReader = p
	}

	// --------------------
	// Network manager + HTTP server
	// --------------------

	driver, closeDriver, err := buildDriver(cfg.Wifi)
	if err != nil {
		return err
	}
	defer closeDriver()

	// The manager starts the server; the server reads the manager's address.
	var srv *httpserver.Server

	mgr, err := wifi.New(wifi.ManagerConfig{
		AP: wifi.APConfig{
			Interface:      cfg.Wifi.AP.Interface,
			SSID:           cfg.Wifi.AP.SSID,
			Password:       cfg.Wifi.AP.Password,
			Channel:        cfg.Wifi.AP.Channel,
			MaxConnections: cfg.Wifi.AP.MaxConnections,
			Hidden:         cfg.Wifi.AP.Hidden,
			Address:        cfg.Wifi.AP.Address,
			Gateway:        cfg.Wifi.AP.Gateway,
			Netmask:        cfg.Wifi.AP.Netmask,
		},
		MaxRetries: *cfg.Wifi.MaxRetries,
	}, wifi.Deps{
		Inbox:  wifiQ,
		Status: statusQ,
		Driver: driver,
		Server: starterFunc(func(ctx context.Context) error { return srv.Start(ctx) }),
		Store:  store,
		LED:    indicator,
		Hooks:  hooks,
	})
	if err != nil {
		return err
	}

	srv, err = httpserver.New(httpserver.Config{
		Listen:      cfg.HTTP.Listen,
		APSSID:      cfg.Wifi.AP.SSID,
		Build:       version.Build(),
		ReadTimeout: ms(cfg.HTTP.ReadTimeoutMs),
	}, httpserver.Deps{
		Monitor:   monitor,
		WifiInbox: wifiQ,
		Info:      mgr,
		Updater:   updater,
		Sensor:    sensorReader,
		Clock:     clock,
	})
	if err != nil {
		return err
	}

	// --------------------
	// Button (optional)
	// --------------------

	if cfg.Button != nil {
		sig := signal.New()
		line, err := button.Watch(cfg.Button.Chip, cfg.Button.Line, sig)
		if err != nil {
			return err
		}
		defer line.Close()

		bm, err := button.New(sig, wifiQ, ms(cfg.Button.DebounceMs))
		if err != nil {
			return err
		}
		go func() {
			if err := bm.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("button monitor stopped", "err", err)
			}
		}()
	}

	// --------------------
	// Run until interrupted
	// --------------------

	log.Info("provisiond starting", "version", version.Version, "ap", cfg.Wifi.AP.SSID, "driver", cfg.Wifi.Driver)
	runErr := mgr.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("network manager failed", "err", runErr)
		return runErr
	}
	log.Info("provisiond stopped")
	return nil
}

func buildLED(c config.LEDConfig) (led.Indicator, func() error, error) {
	noop := func() error { return nil }

	switch c.Backend {
	case "gpio":
		g, err := led.NewGPIO(led.GPIOConfig{
			Chip:      c.GPIO.Chip,
			Red:       c.GPIO.Red,
			Green:     c.GPIO.Green,
			Blue:      c.GPIO.Blue,
			ActiveLow: c.GPIO.ActiveLow,
		})
		if err != nil {
			return nil, noop, err
		}
		return led.New(g), g.Close, nil

	case "modbus":
		m, err := ledmodbus.New(ledmodbus.Config{
			Endpoint: c.Modbus.Endpoint,
			UnitID:   c.Modbus.UnitID,
			Address:  c.Modbus.Address,
			Timeout:  ms(c.Modbus.TimeoutMs),
		})
		if err != nil {
			return nil, noop, err
		}
		return led.New(m), m.Close, nil

	default:
		return led.New(nil), noop, nil
	}
}

func buildDriver(c config.WifiConfig) (wifi.Driver, func() error, error) {
	switch c.Driver {
	case "sim":
		nets := make([]sim.Network, 0, len(c.Sim.Networks))
		for _, n := range c.Sim.Networks {
			nets = append(nets, sim.Network{SSID: n.SSID, Password: n.Password})
		}
		d := sim.New(sim.Config{Networks: nets, Delay: ms(c.Sim.DelayMs)})
		return d, func() error { return nil }, nil

	default:
		d, err := nm.New(nm.Config{StationInterface: c.Interface})
		if err != nil {
			return nil, func() error { return nil }, fmt.Errorf("networkmanager: %w", err)
		}
		return d, d.Close, nil
	}
}
