// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultListen          = ":80"
	DefaultQueueCapacity   = 3
	DefaultMaxRetries      = 5
	DefaultAPSSID          = "ESP32_AP"
	DefaultAPPassword      = "password"
	DefaultAPChannel       = 1
	DefaultAPMaxConns      = 5
	DefaultAPAddress       = "192.168.0.1"
	DefaultAPNetmask       = "255.255.255.0"
	DefaultChunkSize       = 1024
	DefaultMaxHeaderBytes  = 2048
	DefaultRebootDelayMs   = 8000
	DefaultDebounceMs      = 2000
	DefaultImageMagic      = 0xE9
	DefaultSensorInterval  = 5000
	DefaultSensorTimeout   = 1000
	DefaultSensorScale     = 0.1
	DefaultTimeCheckMs     = 10000
	DefaultMQTTTopicPrefix = "provisiond"
	DefaultMQTTTimeoutMs   = 5000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultListen
	}
	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = DefaultQueueCapacity
	}

	// ------------------------------------------------------------
	// WIFI
	// ------------------------------------------------------------

	w := &cfg.Wifi
	if w.Driver == "" {
		w.Driver = "nm"
	}
	if w.MaxRetries == nil {
		n := DefaultMaxRetries
		w.MaxRetries = &n
	}

	ap := &w.AP
	if ap.Interface == "" && w.Driver == "sim" {
		// simulated single radio: the AP shares the station interface
		ap.Interface = w.Interface
	}
	if ap.SSID == "" {
		ap.SSID = DefaultAPSSID
	}
	if ap.Password == "" {
		ap.Password = DefaultAPPassword
	}
	if ap.Channel == 0 {
		ap.Channel = DefaultAPChannel
	}
	if ap.MaxConnections == 0 {
		ap.MaxConnections = DefaultAPMaxConns
	}
	if ap.Address == "" {
		ap.Address = DefaultAPAddress
	}
	if ap.Gateway == "" {
		ap.Gateway = ap.Address
	}
	if ap.Netmask == "" {
		ap.Netmask = DefaultAPNetmask
	}

	// ------------------------------------------------------------
	// FIRMWARE UPDATE
	// ------------------------------------------------------------

	o := &cfg.OTA
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxHeaderBytes == 0 {
		o.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if o.RebootDelayMs == 0 {
		o.RebootDelayMs = DefaultRebootDelayMs
	}
	if o.Magic == nil && !o.SkipMagic {
		m := uint8(DefaultImageMagic)
		o.Magic = &m
	}

	// ------------------------------------------------------------
	// COLLABORATORS
	// ------------------------------------------------------------

	if cfg.LED.Backend == "" {
		cfg.LED.Backend = "log"
	}
	if cfg.Button != nil && cfg.Button.DebounceMs == 0 {
		cfg.Button.DebounceMs = DefaultDebounceMs
	}

	if s := cfg.Sensor; s != nil {
		if s.FC == 0 {
			s.FC = 4
		}
		if s.IntervalMs == 0 {
			s.IntervalMs = DefaultSensorInterval
		}
		if s.TimeoutMs == 0 {
			s.TimeoutMs = DefaultSensorTimeout
		}
		if s.Scale == 0 {
			s.Scale = DefaultSensorScale
		}
	}

	if cfg.Time.CheckIntervalMs == 0 {
		cfg.Time.CheckIntervalMs = DefaultTimeCheckMs
	}

	if m := cfg.MQTT; m != nil {
		if m.TopicPrefix == "" {
			m.TopicPrefix = DefaultMQTTTopicPrefix
		}
		if m.ClientID == "" {
			m.ClientID = "provisiond-" + ap.SSID
		}
		if m.TimeoutMs == 0 {
			m.TimeoutMs = DefaultMQTTTimeoutMs
		}
	}
}
