package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Monitor     MonitorConfig     `toml:"monitor"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Yandex  YandexConfig  `toml:"yandex"`
}

// SpotifyConfig contains Spotify API credentials.
//
// TokenPath is where the OAuth token obtained by `auth login` is persisted
// between runs.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"`
}

// YandexConfig contains Yandex Music API settings.
//
// The OAuth token itself is read from the environment variable named by
// TokenEnv, never from the config file.
type YandexConfig struct {
	BaseURL  string `toml:"base_url"`
	TokenEnv string `toml:"token_env"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the status endpoint and OAuth callback.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SyncConfig contains defaults for the sync loop. CLI flags override these.
type SyncConfig struct {
	SleepSeconds   int    `toml:"sleep_seconds"`
	TrackTarget    string `toml:"track_target"`
	FavoriteTarget string `toml:"favorite_target"`
}

// MonitorConfig contains host monitoring settings.
type MonitorConfig struct {
	StatePath         string                 `toml:"state_path"`
	RetentionDays     int                    `toml:"retention_days"`
	CPUCores          int                    `toml:"cpu_cores"`
	LoadWindowMinutes int                    `toml:"load_window_minutes"`
	MemoryThreshold   float64                `toml:"memory_threshold"`
	DockerService     string                 `toml:"docker_service"`
	ServiceName       string                 `toml:"service_name"`
	StatusURL         string                 `toml:"status_url"`
	AppChecks         []ContainerCheckConfig `toml:"app_checks"`
	DBCheck           DatabaseCheckConfig    `toml:"db_check"`
	LogChecks         []LogCheckConfig       `toml:"log_checks"`
	DiskDevices       []DiskDeviceConfig     `toml:"disk_devices"`
	DiskUsage         []DiskUsageConfig      `toml:"disk_usage"`
	Notification      NotificationConfig     `toml:"notification"`
}

// ContainerCheckConfig identifies a Docker container whose running state is checked.
type ContainerCheckConfig struct {
	Container string `toml:"container"`
	Name      string `toml:"name"`
}

// DatabaseCheckConfig describes the database reachability check.
type DatabaseCheckConfig struct {
	Container string `toml:"container"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
}

// LogCheckConfig describes a log file scanned for an error pattern.
type LogCheckConfig struct {
	Path    string `toml:"path"`
	Pattern string `toml:"pattern"`
}

// DiskDeviceConfig describes a block device tracked for IOPS.
type DiskDeviceConfig struct {
	Name          string `toml:"name"`
	MaxIOPS       int    `toml:"max_iops"`
	IncludeReads  bool   `toml:"include_reads"`
	IncludeWrites bool   `toml:"include_writes"`
}

// DiskUsageConfig describes a mount point checked for free space.
type DiskUsageConfig struct {
	Name            string `toml:"name"`
	Path            string `toml:"path"`
	WarnPercent     int    `toml:"warn_percent"`
	CriticalPercent int    `toml:"critical_percent"`
	MinFreeGB       int    `toml:"min_free_gb"`
}

// NotificationConfig groups alert delivery channels.
type NotificationConfig struct {
	Mail     MailConfig     `toml:"mail"`
	Telegram TelegramConfig `toml:"telegram"`
}

// MailConfig contains SMTP notification settings.
type MailConfig struct {
	Enabled       bool     `toml:"enabled"`
	Recipients    []string `toml:"recipients"`
	Sender        string   `toml:"sender"`
	SubjectPrefix string   `toml:"subject_prefix"`
	CC            []string `toml:"cc"`
}

// TelegramConfig contains Telegram bot notification settings.
//
// The bot token is read from the environment variable named by TokenEnv.
type TelegramConfig struct {
	Enabled         bool     `toml:"enabled"`
	ChatIDs         []string `toml:"chat_ids"`
	TokenEnv        string   `toml:"token_env"`
	APIBase         string   `toml:"api_base"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	SubscriberStore string   `toml:"subscriber_store"`
	PollUpdates     bool     `toml:"poll_updates"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidArgument)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
