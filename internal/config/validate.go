// internal/config/validate.go
package config

import (
	"fmt"
	"net"
	"time"
)

// Limits shared with the wifi package's fixed-size blobs.
const (
	maxSSIDLength     = 32
	maxPasswordLength = 64
	minWPAPassword    = 8
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// Zero values are legal wherever Normalize supplies a default.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: must be debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: must be text or json", cfg.Log.Format)
	}

	// ------------------------------------------------------------
	// HTTP + QUEUES
	// ------------------------------------------------------------

	if cfg.HTTP.ReadTimeoutMs < 0 {
		return fmt.Errorf("http.read_timeout_ms must be >= 0")
	}
	if cfg.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity must be >= 0")
	}
	if cfg.Queue.SendTimeoutMs < 0 {
		return fmt.Errorf("queue.send_timeout_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// WIFI
	// ------------------------------------------------------------

	if err := validateWifi(&cfg.Wifi); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------

	if cfg.Credentials.Path == "" {
		return fmt.Errorf("credentials.path is required")
	}
	if err := validateOTA(&cfg.OTA); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// COLLABORATORS
	// ------------------------------------------------------------

	if err := validateLED(&cfg.LED); err != nil {
		return err
	}

	if b := cfg.Button; b != nil {
		if b.Chip == "" {
			return fmt.Errorf("button.chip is required")
		}
		if b.Line < 0 {
			return fmt.Errorf("button.line must be >= 0")
		}
		if b.DebounceMs < 0 {
			return fmt.Errorf("button.debounce_ms must be >= 0")
		}
	}

	if s := cfg.Sensor; s != nil {
		if s.Endpoint == "" {
			return fmt.Errorf("sensor.endpoint is required")
		}
		if s.FC != 0 && s.FC != 3 && s.FC != 4 {
			return fmt.Errorf("sensor.fc %d: must be 3 or 4", s.FC)
		}
		if s.IntervalMs < 0 || s.TimeoutMs < 0 {
			return fmt.Errorf("sensor: interval_ms and timeout_ms must be >= 0")
		}
		if s.Scale < 0 {
			return fmt.Errorf("sensor.scale must be >= 0")
		}
	}

	if cfg.Time.Zone != "" {
		if _, err := time.LoadLocation(cfg.Time.Zone); err != nil {
			return fmt.Errorf("time.zone %q: %w", cfg.Time.Zone, err)
		}
	}
	if cfg.Time.CheckIntervalMs < 0 {
		return fmt.Errorf("time.check_interval_ms must be >= 0")
	}

	if m := cfg.MQTT; m != nil {
		if m.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if m.QoS > 2 {
			return fmt.Errorf("mqtt.qos %d: must be 0, 1 or 2", m.QoS)
		}
		if m.TimeoutMs < 0 {
			return fmt.Errorf("mqtt.timeout_ms must be >= 0")
		}
	}

	return nil
}

func validateWifi(w *WifiConfig) error {
	switch w.Driver {
	case "", "nm":
		if w.Interface == "" {
			return fmt.Errorf("wifi.interface is required for the nm driver")
		}
		// NetworkManager runs one connection per device: a shared AP would be
		// torn down by every station attempt.
		if w.AP.Interface == "" || w.AP.Interface == w.Interface {
			return fmt.Errorf("wifi.ap.interface must name a device other than wifi.interface for the nm driver")
		}
	case "sim":
		for i, n := range w.Sim.Networks {
			if n.SSID == "" {
				return fmt.Errorf("wifi.sim.networks[%d]: ssid is required", i)
			}
		}
		if w.Sim.DelayMs < 0 {
			return fmt.Errorf("wifi.sim.delay_ms must be >= 0")
		}
	default:
		return fmt.Errorf("wifi.driver %q: must be nm or sim", w.Driver)
	}

	if w.MaxRetries != nil && *w.MaxRetries < 0 {
		return fmt.Errorf("wifi.max_retries must be >= 0")
	}

	ap := &w.AP
	if len(ap.SSID) > maxSSIDLength {
		return fmt.Errorf("wifi.ap.ssid: longer than %d bytes", maxSSIDLength)
	}
	if n := len(ap.Password); n > 0 && (n < minWPAPassword || n > maxPasswordLength) {
		return fmt.Errorf("wifi.ap.password: must be %d..%d bytes or empty", minWPAPassword, maxPasswordLength)
	}
	if ap.Channel < 0 || ap.Channel > 13 {
		return fmt.Errorf("wifi.ap.channel %d: must be 1..13", ap.Channel)
	}
	if ap.MaxConnections < 0 || ap.MaxConnections > 10 {
		return fmt.Errorf("wifi.ap.max_connections %d: must be 1..10", ap.MaxConnections)
	}

	for name, v := range map[string]string{
		"address": ap.Address,
		"gateway": ap.Gateway,
		"netmask": ap.Netmask,
	} {
		if v == "" {
			continue
		}
		if ip := net.ParseIP(v); ip == nil || ip.To4() == nil {
			return fmt.Errorf("wifi.ap.%s %q: not an IPv4 address", name, v)
		}
	}
	return nil
}

func validateOTA(o *OTAConfig) error {
	if o.Dir == "" {
		return fmt.Errorf("ota.dir is required")
	}
	if o.ChunkSize < 0 {
		return fmt.Errorf("ota.chunk_size must be >= 0")
	}
	// room for at least the delimiter itself
	if o.MaxHeaderBytes != 0 && o.MaxHeaderBytes < 4 {
		return fmt.Errorf("ota.max_header_bytes must be >= 4")
	}
	if o.MaxReadTimeouts < 0 {
		return fmt.Errorf("ota.max_read_timeouts must be >= 0")
	}
	if o.RebootDelayMs < 0 {
		return fmt.Errorf("ota.reboot_delay_ms must be >= 0")
	}
	if o.SkipMagic && o.Magic != nil {
		return fmt.Errorf("ota: magic and skip_magic are mutually exclusive")
	}
	return nil
}

func validateLED(l *LEDConfig) error {
	switch l.Backend {
	case "", "log":
	case "gpio":
		g := l.GPIO
		if g.Chip == "" {
			return fmt.Errorf("led.gpio.chip is required")
		}
		if g.Red < 0 || g.Green < 0 || g.Blue < 0 {
			return fmt.Errorf("led.gpio: line offsets must be >= 0")
		}
		if g.Red == g.Green || g.Red == g.Blue || g.Green == g.Blue {
			return fmt.Errorf("led.gpio: red, green and blue must be distinct lines")
		}
	case "modbus":
		if l.Modbus.Endpoint == "" {
			return fmt.Errorf("led.modbus.endpoint is required")
		}
		if l.Modbus.TimeoutMs < 0 {
			return fmt.Errorf("led.modbus.timeout_ms must be >= 0")
		}
		// three consecutive registers
		if l.Modbus.Address > 0xFFFF-2 {
			return fmt.Errorf("led.modbus.address %d: no room for three registers", l.Modbus.Address)
		}
	default:
		return fmt.Errorf("led.backend %q: must be log, gpio or modbus", l.Backend)
	}
	return nil
}
