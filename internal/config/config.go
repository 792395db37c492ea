package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of the agrisecure binaries.
type Config struct {
	// ServerAddress is the gRPC server address.
	ServerAddress string `yaml:"server_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// LogFormat is the log encoder (console, json).
	LogFormat string `yaml:"log_format"`
	// Storage selects and configures the persistence backend.
	Storage StorageConfig `yaml:"storage"`
	// MQTT configures the ingestion and command broker connection.
	MQTT MQTTConfig `yaml:"mqtt"`
	// Arming tunes the arming controller.
	Arming ArmingConfig `yaml:"arming"`
	// Alarms tunes the alarm policy tables.
	Alarms AlarmsConfig `yaml:"alarms"`
	// Stats tunes the statistics view.
	Stats StatsConfig `yaml:"stats"`
	// Nodes tunes node health derivation.
	Nodes NodesConfig `yaml:"nodes"`
	// Seed lists nodes and zones registered at startup.
	Seed SeedConfig `yaml:"seed"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "file" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the JSON state file used by the file driver.
	Path string `yaml:"path"`
	// PostgresDSN is the lib/pq connection string used by the postgres driver.
	PostgresDSN string `yaml:"postgres_dsn"`
	// MaxOpenConns limits the Postgres pool size.
	MaxOpenConns int `yaml:"max_open_conns"`
	// MaxIdleConns limits idle Postgres connections.
	MaxIdleConns int `yaml:"max_idle_conns"`
	// ConnMaxLifetime recycles Postgres connections.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	// Enabled turns ingestion and command publishing on.
	Enabled bool `yaml:"enabled"`
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker"`
	// ClientID identifies this process on the broker.
	ClientID string `yaml:"client_id"`
	// Username is the optional broker user.
	Username string `yaml:"username"`
	// Password is the optional broker password.
	Password string `yaml:"password"`
	// QoS is the quality of service for subscriptions and publications.
	QoS byte `yaml:"qos"`
	// SecurityTopic is the subscription pattern for security events.
	SecurityTopic string `yaml:"security_topic"`
	// StatusTopic is the subscription pattern for node heartbeats.
	StatusTopic string `yaml:"status_topic"`
	// CommandTopic is the publication topic format; %s is the gateway id.
	CommandTopic string `yaml:"command_topic"`
	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration `yaml:"keep_alive"`
	// ConnectTimeout bounds the initial connection.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// AutoRegister registers unknown nodes seen on the broker.
	AutoRegister *bool `yaml:"auto_register"`
}

// ArmingConfig tunes the arming controller.
type ArmingConfig struct {
	// EligibleNodeTypes are the node types that can be armed.
	EligibleNodeTypes []string `yaml:"eligible_node_types"`
	// ZoneDefaultMode is used when a zone is armed while disarmed.
	// Empty rejects such requests.
	ZoneDefaultMode string `yaml:"zone_default_mode"`
	// ZoneArmedPolicy is "all" or "any".
	ZoneArmedPolicy string `yaml:"zone_armed_policy"`
}

// AlarmsConfig tunes the alarm policy tables.
type AlarmsConfig struct {
	// PriorityPolicy overrides classification -> priority entries.
	PriorityPolicy map[string]string `yaml:"priority_policy"`
	// BypassClassifications create alarms regardless of the arm state.
	BypassClassifications []string `yaml:"bypass_classifications"`
	// AlarmingClassifications are the classes that create alarms at all.
	AlarmingClassifications []string `yaml:"alarming_classifications"`
}

// StatsConfig tunes the statistics view.
type StatsConfig struct {
	// WindowDays is the default summary window.
	WindowDays int `yaml:"window_days"`
}

// NodesConfig tunes node health derivation.
type NodesConfig struct {
	// WarningAfter marks a node warning when its heartbeat is older.
	WarningAfter time.Duration `yaml:"warning_after"`
	// OfflineAfter marks a node offline when its heartbeat is older.
	OfflineAfter time.Duration `yaml:"offline_after"`
	// CriticalBattery marks a node warning at or below this charge.
	CriticalBattery int `yaml:"critical_battery"`
	// RefreshInterval is how often the server re-derives node statuses.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// SeedConfig lists registry entries created at startup.
type SeedConfig struct {
	// Nodes are registered (or updated) at startup.
	Nodes []SeedNode `yaml:"nodes"`
	// Zones are registered (or updated) at startup.
	Zones []SeedZone `yaml:"zones"`
}

// SeedNode is a node registered at startup.
type SeedNode struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// SeedZone is a zone registered at startup.
type SeedZone struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Members     []string `yaml:"members"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "agrisecure-settings.yaml"

	// DefaultStateFilename is the default filename for the JSON state store.
	DefaultStateFilename = "agrisecure-state.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600

	// DefaultStatsWindowDays is the default statistics window.
	DefaultStatsWindowDays = 30

	// DriverFile stores state in a JSON document.
	DriverFile = "file"
	// DriverPostgres stores state in PostgreSQL.
	DriverPostgres = "postgres"

	// EnvPostgresDSN overrides Storage.PostgresDSN.
	EnvPostgresDSN = "AGRISECURE_POSTGRES_DSN"
	// EnvMQTTUsername overrides MQTT.Username.
	EnvMQTTUsername = "AGRISECURE_MQTT_USERNAME"
	// EnvMQTTPassword overrides MQTT.Password.
	EnvMQTTPassword = "AGRISECURE_MQTT_PASSWORD"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownDriver is returned for unsupported storage drivers.
	errUnknownDriver = errors.New("unknown storage driver")
	// errPostgresDSNRequired is returned when the postgres driver has no DSN.
	errPostgresDSNRequired = errors.New("postgres DSN must be provided")
	// errBrokerRequired is returned when MQTT is enabled without a broker.
	errBrokerRequired = errors.New("mqtt broker must be provided")
	// errInvalidZonePolicy is returned for unknown zone armed policies.
	errInvalidZonePolicy = errors.New("zone armed policy must be all or any")
	// errInvalidThresholds is returned when offline comes before warning.
	errInvalidThresholds = errors.New("offline threshold must not be shorter than warning threshold")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	// A missing .env file is fine: plain environment variables still apply.
	_ = godotenv.Load() //nolint:errcheck // Optional file.

	ApplyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets from the environment when set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Storage.PostgresDSN = v
	}

	if v := os.Getenv(EnvMQTTUsername); v != "" {
		cfg.MQTT.Username = v
	}

	if v := os.Getenv(EnvMQTTPassword); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate checks the provided settings for required fields and fills defaults.
//
//nolint:cyclop,funlen // A flat list of independent checks reads best.
func Validate(settings *Config) error {
	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if settings.LogFormat == "" {
		settings.LogFormat = "console"
	}

	switch strings.ToLower(settings.Storage.Driver) {
	case "", DriverFile:
		settings.Storage.Driver = DriverFile

		if settings.Storage.Path == "" {
			settings.Storage.Path = DefaultStateFilename
		}
	case DriverPostgres:
		settings.Storage.Driver = DriverPostgres

		if settings.Storage.PostgresDSN == "" {
			return errPostgresDSNRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, settings.Storage.Driver)
	}

	if settings.Storage.MaxOpenConns <= 0 {
		settings.Storage.MaxOpenConns = 10
	}

	if settings.Storage.MaxIdleConns <= 0 {
		settings.Storage.MaxIdleConns = 2
	}

	if settings.Storage.ConnMaxLifetime <= 0 {
		settings.Storage.ConnMaxLifetime = 5 * time.Minute
	}

	if err := validateMQTT(&settings.MQTT); err != nil {
		return err
	}

	switch settings.Arming.ZoneArmedPolicy {
	case "":
		settings.Arming.ZoneArmedPolicy = "all"
	case "all", "any":
	default:
		return fmt.Errorf("%w: %q", errInvalidZonePolicy, settings.Arming.ZoneArmedPolicy)
	}

	if settings.Stats.WindowDays <= 0 {
		settings.Stats.WindowDays = DefaultStatsWindowDays
	}

	if settings.Nodes.WarningAfter <= 0 {
		settings.Nodes.WarningAfter = time.Hour
	}

	if settings.Nodes.OfflineAfter <= 0 {
		settings.Nodes.OfflineAfter = 2 * time.Hour
	}

	if settings.Nodes.OfflineAfter < settings.Nodes.WarningAfter {
		return errInvalidThresholds
	}

	if settings.Nodes.CriticalBattery <= 0 {
		settings.Nodes.CriticalBattery = 10
	}

	if settings.Nodes.RefreshInterval <= 0 {
		settings.Nodes.RefreshInterval = time.Minute
	}

	return nil
}

// validateMQTT fills MQTT defaults and checks the broker when enabled.
func validateMQTT(m *MQTTConfig) error {
	if m.ClientID == "" {
		m.ClientID = "agrisecure-core"
	}

	if m.SecurityTopic == "" {
		m.SecurityTopic = "agrisecure/+/security/#"
	}

	if m.StatusTopic == "" {
		m.StatusTopic = "agrisecure/+/status"
	}

	if m.CommandTopic == "" {
		m.CommandTopic = "agrisecure/%s/command"
	}

	if m.QoS > 2 {
		m.QoS = 1
	}

	if m.KeepAlive <= 0 {
		m.KeepAlive = 60 * time.Second
	}

	if m.ConnectTimeout <= 0 {
		m.ConnectTimeout = 10 * time.Second
	}

	if m.AutoRegister == nil {
		enabled := true
		m.AutoRegister = &enabled
	}

	if m.Enabled && m.Broker == "" {
		return errBrokerRequired
	}

	return nil
}
