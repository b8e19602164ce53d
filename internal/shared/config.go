package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const appDir = "yt2spotify"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Recognition RecognitionConfig `toml:"recognition"`
	Search      SearchConfig      `toml:"search"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	AudD     AudDConfig     `toml:"audd"`
	ACRCloud ACRCloudConfig `toml:"acrcloud"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIBaseURL   string `toml:"api_base_url"`
}

// AudDConfig contains the AudD recognition token and request options.
type AudDConfig struct {
	APIKey   string `toml:"api_key"`
	Endpoint string `toml:"endpoint"`
	Return   string `toml:"return"`
}

// ACRCloudConfig contains ACRCloud file-scanning container credentials.
type ACRCloudConfig struct {
	ContainerID string `toml:"container_id"`
	AccessToken string `toml:"access_token"`
	BaseURL     string `toml:"base_url"`
}

// RecognitionConfig selects providers and bounds each call.
type RecognitionConfig struct {
	Providers      []string `toml:"providers"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	MaxPolls       int      `toml:"max_polls"`
}

// SearchConfig tunes catalog lookups.
type SearchConfig struct {
	Limit     int     `toml:"limit"`
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
	UseCache  bool    `toml:"use_cache"`
}

// PlaylistConfig controls created playlists.
type PlaylistConfig struct {
	Public     bool   `toml:"public"`
	NamePrefix string `toml:"name_prefix"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the log level and the file used while the TUI owns the terminal.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Timeout is the per-call budget for external requests.
func (c RecognitionConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Budget bounds a whole recognition attempt. With ACRCloud configured it covers every status poll.
func (c RecognitionConfig) Budget() time.Duration {
	budget := c.Timeout()
	for _, p := range c.Providers {
		if strings.EqualFold(strings.TrimSpace(p), "acrcloud") && c.MaxPolls > 0 {
			budget += time.Duration(c.MaxPolls) * c.PollInterval()
		}
	}
	return budget
}

// PollInterval is the delay between ACRCloud status checks.
func (c RecognitionConfig) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Addr returns host:port for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
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
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfigPath returns path when it exists, otherwise the XDG config file when that exists.
//
// An empty result means no config file was found and defaults apply.
func ResolveConfigPath(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if p, err := xdg.SearchConfigFile(appDir + "/config.toml"); err == nil {
		return p
	}
	return ""
}

// LoadEnv reads key=value pairs from the given dotenv files into the process environment.
//
// Missing files are skipped. Variables already set in the environment win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials with environment variables when set.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	set(&c.Credentials.AudD.APIKey, "AUDD_API_KEY")
	set(&c.Credentials.ACRCloud.ContainerID, "ACR_FS_CONTAINER_ID")
	set(&c.Credentials.ACRCloud.AccessToken, "ACR_FS_ACCESS_TOKEN")
	set(&c.Credentials.ACRCloud.BaseURL, "ACR_FS_BASE_URL")
}

// ResolvePaths fills empty database and log paths with locations under the XDG data and state homes.
func (c *Config) ResolvePaths() error {
	if c.Database.Path == "" {
		p, err := xdg.DataFile(appDir + "/yt2spotify.db")
		if err != nil {
			return fmt.Errorf("failed to resolve database path: %w", err)
		}
		c.Database.Path = p
	}
	if c.Log.File == "" {
		p, err := xdg.StateFile(appDir + "/yt2spotify.log")
		if err != nil {
			return fmt.Errorf("failed to resolve log path: %w", err)
		}
		c.Log.File = p
	}
	return nil
}

// Validate checks the settings the conversion pipeline depends on.
func (c *Config) Validate() error {
	if c.Search.Limit < 1 {
		return fmt.Errorf("%w: search.limit must be at least 1", ErrInvalidConfig)
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("%w: search.workers must not be negative", ErrInvalidConfig)
	}
	if c.Search.RateLimit < 0 {
		return fmt.Errorf("%w: search.rate_limit must not be negative", ErrInvalidConfig)
	}
	if len(c.Recognition.Providers) == 0 {
		return fmt.Errorf("%w: recognition.providers is empty", ErrInvalidConfig)
	}
	return nil
}

// SpotifyConfigured reports whether OAuth client credentials are present.
func (c *Config) SpotifyConfigured() bool {
	s := c.Credentials.Spotify
	return s.ClientID != "" && s.ClientSecret != "" && s.RedirectURI != ""
}
