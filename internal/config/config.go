// Package config loads the glesutil runner configuration from CLI flags,
// environment variables and a TOML file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is read when -config is not given and the file exists.
const DefaultFile = "glesutil.toml"

// Config holds all configuration settings for the runner.
type Config struct {
	Runtime  RuntimeConfig  `toml:"runtime"`
	Headless HeadlessConfig `toml:"headless"`
	Assets   AssetsConfig   `toml:"assets"`
	Logging  LoggingConfig  `toml:"logging"`

	Script string   `toml:"-"` // first positional argument
	Args   []string `toml:"-"` // remaining positional arguments
}

// RuntimeConfig selects the native driver and argument policy.
type RuntimeConfig struct {
	Driver          string `toml:"driver"` // "glfw", "headless"
	StrictArguments bool   `toml:"strict_arguments"`
}

// HeadlessConfig drives the headless driver.
type HeadlessConfig struct {
	Frames int      `toml:"frames"`
	Delta  Duration `toml:"delta"`
	Width  int      `toml:"width"` // largest window accepted, 0 = any
	Height int      `toml:"height"`
}

// AssetsConfig holds the directory relative image paths are resolved in.
type AssetsConfig struct {
	Root string `toml:"root"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "text", "json"
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{Driver: "glfw"},
		Headless: HeadlessConfig{
			Frames: 60,
			Delta:  Duration(time.Second / 60),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("glesutil", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "TOML configuration file (default "+DefaultFile+" if present)")
	driver := fs.String("driver", "", "Native driver: glfw, headless")
	strict := fs.Bool("strict", false, "Throw on malformed script arguments")
	frames := fs.Int("frames", 0, "Frames per mainLoop with the headless driver")
	delta := fs.Duration("delta", 0, "Update delta with the headless driver")
	assets := fs.String("assets", "", "Directory relative image paths are resolved in")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: text, json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := *configPath
	if path == "" {
		path = DefaultFile
	}
	if err := cfg.loadTOML(path); err != nil {
		if *configPath != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if *driver != "" {
		cfg.Runtime.Driver = *driver
	}
	if isSet(fs, "strict") {
		cfg.Runtime.StrictArguments = *strict
	}
	if *frames != 0 {
		cfg.Headless.Frames = *frames
	}
	if *delta != 0 {
		cfg.Headless.Delta = Duration(*delta)
	}
	if *assets != "" {
		cfg.Assets.Root = *assets
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if rest := fs.Args(); len(rest) > 0 {
		cfg.Script, cfg.Args = rest[0], rest[1:]
	}
	return cfg, cfg.Validate()
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() error {
	if v := os.Getenv("GLESUTIL_DRIVER"); v != "" {
		c.Runtime.Driver = v
	}
	if v := os.Getenv("GLESUTIL_STRICT"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GLESUTIL_STRICT: %w", err)
		}
		c.Runtime.StrictArguments = strict
	}
	if v := os.Getenv("GLESUTIL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GLESUTIL_ASSETS"); v != "" {
		c.Assets.Root = v
	}
	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Runtime.Driver {
	case "glfw", "headless":
	default:
		return fmt.Errorf("unknown driver %q", c.Runtime.Driver)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Headless.Frames < 0 || c.Headless.Delta < 0 {
		return errors.New("headless frames and delta must not be negative")
	}
	return nil
}

// Level returns the slog level for Logging.Level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return level, nil
}

// Logger builds the logger described by Logging, writing to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
