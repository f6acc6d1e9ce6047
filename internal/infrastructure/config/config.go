package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-radio/internal/framing"
)

// Config is the root configuration structure for the radio gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Redis    RedisConfig    `yaml:"redis"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	LoRa     LoRaConfig     `yaml:"lora"`
	BLE      BLEConfig      `yaml:"ble"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// RedisConfig contains Redis connection settings. Redis is optional and only
// used as a shared duplicate-suppression store between gateways.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// WebSocket configures the live event stream at /api/v1/ws.
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Panel serves the live monitor page at /monitor/.
	Panel PanelConfig `yaml:"panel"`
}

// PanelConfig contains monitor page settings.
type PanelConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir serves the page from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// WebSocketConfig contains live event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text or console
	Output string `yaml:"output"` // stdout or stderr
}

// LoRa transports.
const (
	LoRaTransportMQTT   = "mqtt"
	LoRaTransportSerial = "serial"
)

// LoRaConfig contains the encrypted LoRa link settings.
type LoRaConfig struct {
	Enabled bool `yaml:"enabled"`

	// KeyHex is the shared AES key as 32, 48 or 64 hex characters.
	// Set it via RADIOGW_LORA_KEY rather than in the file.
	KeyHex string `yaml:"key_hex"`

	// Transport is "mqtt" (Shelly LoRa add-on over RPC) or "serial" (RYLR896 UART).
	Transport string `yaml:"transport"`

	// DeviceTopic is the MQTT topic prefix of the Shelly device carrying the
	// LoRa add-on, e.g. "shellyplus1-a8032ab12345".
	DeviceTopic string `yaml:"device_topic"`

	// ComponentID is the id of the LoRa component on that device.
	ComponentID int `yaml:"component_id"`

	// CoverDeviceTopic is the MQTT prefix of the device whose covers incoming
	// cover commands drive. Defaults to DeviceTopic.
	CoverDeviceTopic string `yaml:"cover_device_topic"`

	// Covers is the allow-list of cover ids. Empty allows any id.
	Covers []int `yaml:"covers"`

	Serial LoRaSerialConfig `yaml:"serial"`
}

// LoRaSerialConfig configures an RYLR896 module on a UART.
type LoRaSerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	Address     int           `yaml:"address"`      // peer address used by AT+SEND
	NetworkID   int           `yaml:"network_id"`   // informational; set on the module
	ReadTimeout time.Duration `yaml:"read_timeout"` // UART read timeout

	// ReconnectDelay is the first wait before reopening a failed port. It
	// doubles per failed attempt up to MaxReconnectDelay.
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
}

// Dedupe backends.
const (
	DedupeMemory = "memory"
	DedupeRedis  = "redis"
)

// BLEConfig contains the BLE gateway settings.
type BLEConfig struct {
	Enabled bool `yaml:"enabled"`

	// ScanTopic is the MQTT topic scanners publish raw scan results to.
	// A single-level wildcard is allowed, e.g. "graylogic/scan/ble/+".
	ScanTopic string `yaml:"scan_topic"`

	// WebSocketURL is an optional scanner stream (one JSON scan result per message).
	WebSocketURL string `yaml:"websocket_url"`

	// Scanner runs a local scanner process instead of a WebSocket stream.
	Scanner BLEScannerConfig `yaml:"scanner"`

	// Addresses is an allow-list of device addresses. Empty accepts every device.
	Addresses []string `yaml:"addresses"`

	Dedupe  BLEDedupeConfig `yaml:"dedupe"`
	Buttons []ButtonBinding `yaml:"buttons"`

	// History keeps every accepted reading in reading_history, not just the latest.
	History bool `yaml:"history"`
}

// BLEScannerConfig configures a supervised scanner process that prints one
// scan result (JSON or hex frame) per stdout line.
type BLEScannerConfig struct {
	// Command is the binary followed by its arguments. Empty disables it.
	Command []string `yaml:"command"`

	// StallAfter restarts a scanner that printed nothing for this long.
	// 0 disables the watchdog.
	StallAfter time.Duration `yaml:"stall_after"`

	// RestartDelay is the first restart backoff delay. Default 5s.
	RestartDelay time.Duration `yaml:"restart_delay"`
}

// BLEDedupeConfig configures duplicate advertisement suppression.
type BLEDedupeConfig struct {
	Backend string        `yaml:"backend"` // memory or redis
	TTL     time.Duration `yaml:"ttl"`     // redis key lifetime
}

// ButtonBinding maps the buttons of one PTM215B switch to MQTT publishes.
type ButtonBinding struct {
	Address string `yaml:"address"`

	// LockDelay suppresses further actions after one fired. Default 600ms.
	LockDelay time.Duration `yaml:"lock_delay"`

	// Actions is keyed by button number (1-4).
	Actions map[int]ButtonAction `yaml:"actions"`
}

// ButtonAction is a single MQTT publish fired by a button.
type ButtonAction struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	Retain  bool   `yaml:"retain"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RADIOGW_SECTION_KEY
// For example: RADIOGW_DATABASE_PATH, RADIOGW_LORA_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used by CLI subcommands that run without a config file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Radio Gateway",
		},
		Database: DatabaseConfig{
			Path:        "./data/radiogw.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "radiogw",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 4096,
				PingInterval:   30,
				PongTimeout:    10,
			},
			Panel: PanelConfig{
				Enabled: true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		LoRa: LoRaConfig{
			Transport:   LoRaTransportMQTT,
			ComponentID: 100,
			Serial: LoRaSerialConfig{
				Port:        "/dev/ttyUSB0",
				Baud:              115200,
				ReadTimeout:       time.Second,
				ReconnectDelay:    time.Second,
				MaxReconnectDelay: 30 * time.Second,
			},
		},
		BLE: BLEConfig{
			ScanTopic: "graylogic/scan/ble/+",
			Dedupe: BLEDedupeConfig{
				Backend: DedupeMemory,
				TTL:     10 * time.Minute,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RADIOGW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("RADIOGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("RADIOGW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RADIOGW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RADIOGW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Redis
	if v := os.Getenv("RADIOGW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RADIOGW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// API
	if v := os.Getenv("RADIOGW_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("RADIOGW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("RADIOGW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// LoRa key (keep it out of the config file)
	if v := os.Getenv("RADIOGW_LORA_KEY"); v != "" {
		cfg.LoRa.KeyHex = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.LoRa.Enabled {
		errs = append(errs, c.LoRa.validate()...)
	}

	if c.BLE.Enabled {
		errs = append(errs, c.BLE.validate(c.Redis.Enabled)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (l *LoRaConfig) validate() []string {
	var errs []string

	if l.KeyHex == "" {
		errs = append(errs, "lora.key_hex is required (set RADIOGW_LORA_KEY environment variable)")
	} else if _, err := framing.ParseKey(l.KeyHex); err != nil {
		errs = append(errs, "lora.key_hex must be 32, 48 or 64 hex characters")
	}

	switch l.Transport {
	case LoRaTransportMQTT:
		if l.DeviceTopic == "" {
			errs = append(errs, "lora.device_topic is required for the mqtt transport")
		}
	case LoRaTransportSerial:
		if l.Serial.Port == "" {
			errs = append(errs, "lora.serial.port is required for the serial transport")
		}
		if l.Serial.Baud <= 0 {
			errs = append(errs, "lora.serial.baud must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("lora.transport must be %q or %q", LoRaTransportMQTT, LoRaTransportSerial))
	}

	if l.ComponentID < 0 {
		errs = append(errs, "lora.component_id must not be negative")
	}
	for _, id := range l.Covers {
		if id < 0 {
			errs = append(errs, "lora.covers must not contain negative ids")
			break
		}
	}

	return errs
}

func (b *BLEConfig) validate(redisEnabled bool) []string {
	var errs []string

	hasScanner := len(b.Scanner.Command) > 0
	if b.ScanTopic == "" && b.WebSocketURL == "" && !hasScanner {
		errs = append(errs, "ble needs scan_topic, websocket_url or scanner.command")
	}
	if b.WebSocketURL != "" && hasScanner {
		errs = append(errs, "ble.websocket_url and ble.scanner.command are mutually exclusive")
	}
	if hasScanner && b.Scanner.Command[0] == "" {
		errs = append(errs, "ble.scanner.command must start with a binary path")
	}
	if b.Scanner.StallAfter < 0 || b.Scanner.RestartDelay < 0 {
		errs = append(errs, "ble.scanner durations must not be negative")
	}

	switch b.Dedupe.Backend {
	case DedupeMemory:
	case DedupeRedis:
		if !redisEnabled {
			errs = append(errs, "ble.dedupe.backend redis requires redis.enabled")
		}
		if b.Dedupe.TTL <= 0 {
			errs = append(errs, "ble.dedupe.ttl must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("ble.dedupe.backend must be %q or %q", DedupeMemory, DedupeRedis))
	}

	for i, btn := range b.Buttons {
		if btn.Address == "" {
			errs = append(errs, fmt.Sprintf("ble.buttons[%d].address is required", i))
		}
		for n, act := range btn.Actions {
			if n < 1 || n > 4 {
				errs = append(errs, fmt.Sprintf("ble.buttons[%d].actions: button %d out of range 1-4", i, n))
			}
			if act.Topic == "" {
				errs = append(errs, fmt.Sprintf("ble.buttons[%d].actions[%d].topic is required", i, n))
			}
		}
	}

	return errs
}

// LoRaCoverDeviceTopic returns the device prefix cover commands go to.
func (c *Config) LoRaCoverDeviceTopic() string {
	if c.LoRa.CoverDeviceTopic != "" {
		return c.LoRa.CoverDeviceTopic
	}
	return c.LoRa.DeviceTopic
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
