// Package config loads metastream's command-line configuration from TOML
// files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	appName = "metastream"

	// DefaultSettleDelay is how long a file must stay unchanged before the
	// watcher extracts it.
	DefaultSettleDelay = 2 * time.Second
)

type Config struct {
	Log LogConfig `koanf:"log"`

	// Jobs bounds concurrent extractions; 0 means one per CPU.
	Jobs int `koanf:"jobs" validate:"gte=0"`
	// BufferSize is the lookahead window in bytes; 0 keeps the default.
	BufferSize int  `koanf:"buffer_size" validate:"omitempty,min=512"`
	AlbumArt   bool `koanf:"album_art"`
	// DurationScan derives durations from the audio stream when no tag
	// has one.
	DurationScan bool   `koanf:"duration_scan"`
	Catalog      string `koanf:"catalog"` // SQLite database path

	Watch WatchConfig `koanf:"watch"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type WatchConfig struct {
	// SettleDelay of 0 keeps DefaultSettleDelay.
	SettleDelay time.Duration `koanf:"settle_delay" validate:"gte=0"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Log:          LogConfig{Level: "info", Format: "text"},
		DurationScan: true,
		Catalog:      filepath.Join(xdg.DataHome, appName, "catalog.db"),
		Watch:        WatchConfig{SettleDelay: DefaultSettleDelay},
	}
}

// SearchPaths lists the config files read by Load, lowest priority first.
func SearchPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		appName + ".toml",
	}
}

// Load reads the default search paths and then explicit, if not empty.
// Missing default files are skipped; a missing explicit file is an error.
func Load(explicit string) (*Config, error) {
	paths := SearchPaths()
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		paths = append(paths, explicit)
	}
	return LoadFiles(paths...)
}

// LoadFiles layers the given TOML files over Default. Later files win.
// Files that do not exist are skipped.
func LoadFiles(paths ...string) (*Config, error) {
	k := koanf.New(".")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Catalog = expandPath(cfg.Catalog)
	if cfg.Watch.SettleDelay == 0 {
		cfg.Watch.SettleDelay = DefaultSettleDelay
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration after files and flags are applied.
// Level and format names are case-insensitive and stored in lower case.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	name := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("%s %q must be one of: %s", name, e.Value(), e.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", name)
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, e.Param())
	default:
		return fmt.Sprintf("%s fails %s", name, e.Tag())
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
