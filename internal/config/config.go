// internal/config/config.go
package config

type Config struct {
	Log         LogConfig         `yaml:"log"`
	HTTP        HTTPConfig        `yaml:"http"`
	Queue       QueueConfig       `yaml:"queue"`
	Wifi        WifiConfig        `yaml:"wifi"`
	Credentials CredentialsConfig `yaml:"credentials"`
	OTA         OTAConfig         `yaml:"ota"`
	LED         LEDConfig         `yaml:"led"`
	Time        TimeConfig        `yaml:"time"`

	// Optional collaborators: absent section = feature off.
	Button *ButtonConfig `yaml:"button"`
	Sensor *SensorConfig `yaml:"sensor"`
	MQTT   *MQTTConfig   `yaml:"mqtt"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen        string `yaml:"listen"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // per-read body deadline, 0 = none
}

// ---- QUEUES ----

// QueueConfig applies to every inbox.
type QueueConfig struct {
	Capacity      int `yaml:"capacity"`
	SendTimeoutMs int `yaml:"send_timeout_ms"` // 0 = block until space
}

// ---- WIFI ----

type WifiConfig struct {
	Driver     string `yaml:"driver"`    // nm | sim
	Interface  string `yaml:"interface"` // station interface
	MaxRetries *int   `yaml:"max_retries"`

	AP  APConfig  `yaml:"ap"`
	Sim SimConfig `yaml:"sim"`
}

type APConfig struct {
	Interface      string `yaml:"interface"`
	SSID           string `yaml:"ssid"`
	Password       string `yaml:"password"`
	Channel        int    `yaml:"channel"`
	MaxConnections int    `yaml:"max_connections"`
	Hidden         bool   `yaml:"hidden"`
	Address        string `yaml:"address"`
	Gateway        string `yaml:"gateway"`
	Netmask        string `yaml:"netmask"`
}

type SimConfig struct {
	Networks []SimNetwork `yaml:"networks"`
	DelayMs  int          `yaml:"delay_ms"`
}

type SimNetwork struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// ---- CREDENTIALS ----

type CredentialsConfig struct {
	Path string `yaml:"path"`
}

// ---- FIRMWARE UPDATE ----

type OTAConfig struct {
	Dir             string `yaml:"dir"`
	ChunkSize       int    `yaml:"chunk_size"`
	MaxHeaderBytes  int    `yaml:"max_header_bytes"`
	MaxReadTimeouts int    `yaml:"max_read_timeouts"`

	// Magic is the required first image byte. Nil after Normalize only when
	// SkipMagic is set.
	Magic     *uint8 `yaml:"magic"`
	SkipMagic bool   `yaml:"skip_magic"`

	RebootDelayMs int      `yaml:"reboot_delay_ms"`
	RebootCommand []string `yaml:"reboot_command"` // empty = exit and let the supervisor restart
}

// ---- BUTTON ----

type ButtonConfig struct {
	Chip       string `yaml:"chip"`
	Line       int    `yaml:"line"`
	DebounceMs int    `yaml:"debounce_ms"`
}

// ---- LED ----

type LEDConfig struct {
	Backend string          `yaml:"backend"` // log | gpio | modbus
	GPIO    LEDGPIOConfig   `yaml:"gpio"`
	Modbus  LEDModbusConfig `yaml:"modbus"`
}

type LEDGPIOConfig struct {
	Chip      string `yaml:"chip"`
	Red       int    `yaml:"red"`
	Green     int    `yaml:"green"`
	Blue      int    `yaml:"blue"`
	ActiveLow bool   `yaml:"active_low"`
}

type LEDModbusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	IntervalMs int    `yaml:"interval_ms"`

	FC                 uint8   `yaml:"fc"`
	TemperatureAddress uint16  `yaml:"temperature_address"`
	HumidityAddress    uint16  `yaml:"humidity_address"`
	Scale              float64 `yaml:"scale"`
}

// ---- TIME ----

type TimeConfig struct {
	Zone            string `yaml:"zone"` // IANA name, empty = local
	CheckIntervalMs int    `yaml:"check_interval_ms"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}
