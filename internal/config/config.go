package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultStaleAfter is how old the catalog store may get before
	// a refresh is forced at startup.
	DefaultStaleAfter = 14 * 24 * time.Hour

	// DefaultFetchTimeout covers the small provider resources
	// (account info, category lists).
	DefaultFetchTimeout = 30 * time.Second

	// DefaultStreamsFetchTimeout covers the live/VOD stream lists,
	// which can run to tens of megabytes on large providers.
	DefaultStreamsFetchTimeout = 120 * time.Second
)

// Config holds provider credentials, file locations and tunables.
// Secrets (Username, Password) must never be logged; use Redacted.
type Config struct {
	ServerURL string
	Username  string
	Password  string

	// DataDir is the base for all derived paths below. Each path may be
	// overridden individually; empty values are filled from DataDir.
	DataDir       string
	DBPath        string
	SnapshotDir   string
	FavoritesPath string
	PlaylistPath  string

	StaleAfter          time.Duration
	FetchTimeout        time.Duration
	StreamsFetchTimeout time.Duration

	// HTTPAddr enables the local status/playlist/metrics server when set
	// (e.g. ":8474"). Empty disables it.
	HTTPAddr string

	UserAgent string
}

// fileConfig is the YAML file shape. Durations are strings ("24h") since
// yaml cannot decode into time.Duration directly.
type fileConfig struct {
	ServerURL string `yaml:"server_url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`

	DataDir       string `yaml:"data_dir"`
	DBPath        string `yaml:"db_path"`
	SnapshotDir   string `yaml:"snapshot_dir"`
	FavoritesPath string `yaml:"favorites_path"`
	PlaylistPath  string `yaml:"playlist_path"`

	StaleAfter          string `yaml:"stale_after"`
	FetchTimeout        string `yaml:"fetch_timeout"`
	StreamsFetchTimeout string `yaml:"streams_fetch_timeout"`

	HTTPAddr  string `yaml:"http_addr"`
	UserAgent string `yaml:"user_agent"`
}

// Load builds config from defaults, then the YAML file (IPTVDECK_CONFIG or
// ./iptvdeck.yaml when present), then environment variables. A .env in the
// working directory is loaded first so env always wins over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		DataDir:             getEnv("IPTVDECK_DATA_DIR", "."),
		StaleAfter:          DefaultStaleAfter,
		FetchTimeout:        DefaultFetchTimeout,
		StreamsFetchTimeout: DefaultStreamsFetchTimeout,
		UserAgent:           "iptvdeck/1.0",
	}

	path := getEnv("IPTVDECK_CONFIG", "iptvdeck.yaml")
	if err := c.loadFile(path); err != nil {
		return nil, err
	}
	c.loadEnv()
	c.fillPaths()
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	setString(&c.ServerURL, f.ServerURL)
	setString(&c.Username, f.Username)
	setString(&c.Password, f.Password)
	setString(&c.DataDir, f.DataDir)
	setString(&c.DBPath, f.DBPath)
	setString(&c.SnapshotDir, f.SnapshotDir)
	setString(&c.FavoritesPath, f.FavoritesPath)
	setString(&c.PlaylistPath, f.PlaylistPath)
	setString(&c.HTTPAddr, f.HTTPAddr)
	setString(&c.UserAgent, f.UserAgent)
	if err := setDuration(&c.StaleAfter, f.StaleAfter); err != nil {
		return fmt.Errorf("config file %s: stale_after: %w", path, err)
	}
	if err := setDuration(&c.FetchTimeout, f.FetchTimeout); err != nil {
		return fmt.Errorf("config file %s: fetch_timeout: %w", path, err)
	}
	if err := setDuration(&c.StreamsFetchTimeout, f.StreamsFetchTimeout); err != nil {
		return fmt.Errorf("config file %s: streams_fetch_timeout: %w", path, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func (c *Config) loadEnv() {
	c.ServerURL = getEnv("IPTV_SERVER_URL", c.ServerURL)
	c.Username = getEnv("IPTV_USERNAME", c.Username)
	c.Password = getEnv("IPTV_PASSWORD", c.Password)
	c.DataDir = getEnv("IPTVDECK_DATA_DIR", c.DataDir)
	c.DBPath = getEnv("IPTVDECK_DB", c.DBPath)
	c.SnapshotDir = getEnv("IPTVDECK_SNAPSHOT_DIR", c.SnapshotDir)
	c.FavoritesPath = getEnv("IPTVDECK_FAVORITES", c.FavoritesPath)
	c.PlaylistPath = getEnv("IPTVDECK_PLAYLIST", c.PlaylistPath)
	c.HTTPAddr = getEnv("IPTVDECK_HTTP_ADDR", c.HTTPAddr)
	c.UserAgent = getEnv("IPTVDECK_USER_AGENT", c.UserAgent)
	c.StaleAfter = getEnvDuration("IPTVDECK_STALE_AFTER", c.StaleAfter)
	c.FetchTimeout = getEnvDuration("IPTVDECK_FETCH_TIMEOUT", c.FetchTimeout)
	c.StreamsFetchTimeout = getEnvDuration("IPTVDECK_STREAMS_FETCH_TIMEOUT", c.StreamsFetchTimeout)
}

func (c *Config) fillPaths() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "iptv.db")
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = c.DataDir
	}
	if c.FavoritesPath == "" {
		c.FavoritesPath = filepath.Join(c.DataDir, "favorites.json")
	}
	if c.PlaylistPath == "" {
		c.PlaylistPath = filepath.Join(c.DataDir, "favorites.m3u8")
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.StreamsFetchTimeout <= 0 {
		c.StreamsFetchTimeout = DefaultStreamsFetchTimeout
	}
}

// Validate reports the missing required settings by name so the user can
// fix the .env in one pass.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ServerURL) == "" {
		missing = append(missing, "IPTV_SERVER_URL")
	}
	if c.Username == "" {
		missing = append(missing, "IPTV_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "IPTV_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if _, err := url.Parse(c.ServerURL); err != nil {
		return fmt.Errorf("IPTV_SERVER_URL: %w", err)
	}
	return nil
}

// Redacted returns a loggable one-line summary with secrets masked.
func (c *Config) Redacted() string {
	return fmt.Sprintf("server=%s user=%s db=%s snapshots=%s stale_after=%s http=%q",
		RedactURL(c.ServerURL), mask(c.Username), c.DBPath, c.SnapshotDir, c.StaleAfter, c.HTTPAddr)
}

// RedactURL masks credential-bearing query parameters and path segments in
// provider URLs so they can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}
	q := u.Query()
	for _, k := range []string{"username", "password"} {
		if q.Has(k) {
			q.Set(k, "xxx")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func mask(s string) string {
	if len(s) <= 2 {
		return "**"
	}
	return s[:1] + "***" + s[len(s)-1:]
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
