// Package config loads AutoDash client configuration from layered sources.
// Priority (highest to lowest): flags > environment > local .env > config .env > config.yaml > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"autodash/internal/logger"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "AUTODASH"

// Configuration keys.
const (
	KeyAPIURL       = "api_url"
	KeySessionToken = "session_token"
	KeyTimeout      = "timeout"
	KeyColorTheme   = "color_theme"
	KeyStateDir     = "state_dir"
	KeyPreviewRows  = "preview_rows"
	KeyStream       = "stream"
	KeyDisplayTheme = "theme"
	KeyEditor       = "editor"
	KeyTraceHTTP    = "trace_http"
)

// Config is the resolved client configuration.
type Config struct {
	APIURL       string        // Backend base URL
	SessionToken string        // Session credential sent with every request
	Timeout      time.Duration // Per-request timeout (streams are bounded by context only)
	ColorTheme   string        // Palette name sent with analyze requests
	StateDir     string        // Workspace and preference files
	PreviewRows  int           // Rows requested for dataset previews
	Stream       bool          // Ask the backend for an event stream on first generation
	DisplayTheme string        // Terminal display theme
	Editor       string        // Command used to edit notes, falls back to $VISUAL and $EDITOR
	TraceHTTP    bool          // Record backend exchanges for the http-log command
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		KeyAPIURL:       "http://localhost:8000",
		KeyTimeout:      "120s",
		KeyColorTheme:   "default",
		KeyPreviewRows:  10,
		KeyStream:       true,
		KeyDisplayTheme: "default",
		KeyTraceHTTP:    false,
	}
}

// Loader resolves configuration. Zero values fall back to the user's directories.
type Loader struct {
	Viper     *viper.Viper // Flags are bound here by the CLI before Load
	ConfigDir string       // Directory holding config.yaml and the config .env
	WorkDir   string       // Directory holding the local .env
}

// NewLoader creates a loader with a fresh viper instance.
func NewLoader() *Loader {
	return &Loader{Viper: viper.New()}
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/autodash (or the platform equivalent).
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "autodash"), nil
}

// Load resolves every source in priority order and validates the result.
func (l *Loader) Load() (*Config, error) {
	v := l.Viper
	if v == nil {
		v = viper.New()
		l.Viper = v
	}

	configDir := l.ConfigDir
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}
	workDir := l.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working dir: %w", err)
		}
		workDir = wd
	}

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetDefault(KeyStateDir, configDir)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	}

	// Local .env overrides the config-dir .env.
	for _, path := range []string{filepath.Join(configDir, ".env"), filepath.Join(workDir, ".env")} {
		values, err := readDotEnv(path)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		if err := v.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
		logger.Debug("Loaded dotenv layer", "path", path, "keys", len(values))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	timeout, err := parseTimeout(v.GetString(KeyTimeout))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:       strings.TrimRight(v.GetString(KeyAPIURL), "/"),
		SessionToken: v.GetString(KeySessionToken),
		Timeout:      timeout,
		ColorTheme:   v.GetString(KeyColorTheme),
		StateDir:     v.GetString(KeyStateDir),
		PreviewRows:  v.GetInt(KeyPreviewRows),
		Stream:       v.GetBool(KeyStream),
		DisplayTheme: v.GetString(KeyDisplayTheme),
		Editor:       v.GetString(KeyEditor),
		TraceHTTP:    v.GetBool(KeyTraceHTTP),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to reach the backend.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url %q: %w", c.APIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PreviewRows <= 0 {
		return fmt.Errorf("preview_rows must be positive, got %d", c.PreviewRows)
	}
	return nil
}

// readDotEnv reads AUTODASH_* entries from a .env file, keyed by configuration key.
// A missing file yields no values.
func readDotEnv(path string) (map[string]any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	values := make(map[string]any)
	for name, value := range env {
		key, ok := strings.CutPrefix(name, EnvPrefix+"_")
		if !ok {
			continue
		}
		values[strings.ToLower(key)] = value
	}
	return values, nil
}

// parseTimeout accepts Go durations ("90s") and bare seconds ("90").
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	return d, nil
}
