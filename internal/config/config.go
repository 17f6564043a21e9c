// Package config loads the client configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/predict"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/store"
)

// Config is the full client configuration.
type Config struct {
	ClientID   int64  `yaml:"client_id"`
	OwnerField string `yaml:"owner_field"`
	SchemasDir string `yaml:"schemas_dir"`

	// TickRate is how many prediction ticks run per second.
	TickRate float64 `yaml:"tick_rate"`

	Transport  TransportConfig `yaml:"transport"`
	Journal    JournalConfig   `yaml:"journal"`
	Registry   RegistryConfig  `yaml:"registry"`
	Movement   MovementConfig  `yaml:"movement"`
	Prediction predict.Config  `yaml:"prediction"`
	Log        LogConfig       `yaml:"log"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

type TransportConfig struct {
	URL            string        `yaml:"url"`
	ValidateFrames bool          `yaml:"validate_frames"`
	SendBuffer     int           `yaml:"send_buffer"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
}

type JournalConfig struct {
	// Path of the SQLite journal. Empty disables journaling.
	Path  string `yaml:"path"`
	Label string `yaml:"label"`

	BusyTimeout time.Duration `yaml:"busy_timeout"`
	// Synchronous is the SQLite synchronous level: off, normal, full or extra.
	Synchronous string `yaml:"synchronous"`
}

type RegistryConfig struct {
	TempIDBase uint64 `yaml:"temp_id_base"`
}

type MovementConfig struct {
	TransformField string   `yaml:"transform_field"`
	VelocityField  string   `yaml:"velocity_field"`
	TrackedFields  []string `yaml:"tracked_fields"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() Config {
	return Config{
		OwnerField: authority.DefaultOwnerField,
		SchemasDir: "schemas",
		TickRate:   60,
		Transport: TransportConfig{
			ValidateFrames: true,
			SendBuffer:     256,
			ReadTimeout:    60 * time.Second,
		},
		Journal: JournalConfig{
			BusyTimeout: store.DefaultBusyTimeout,
			Synchronous: store.DefaultSynchronous,
		},
		Registry: RegistryConfig{TempIDBase: uint64(registry.DefaultTempIDBase)},
		Movement: MovementConfig{
			TransformField: session.DefaultTransformField,
			VelocityField:  session.DefaultVelocityField,
		},
		Prediction: predict.DefaultConfig(),
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the file at path on top of the defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML strictly: unknown keys are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.ClientID <= 0 {
		errs = append(errs, fmt.Errorf("client_id must be > 0, got %d", c.ClientID))
	}
	if strings.TrimSpace(c.OwnerField) == "" {
		errs = append(errs, errors.New("owner_field is required"))
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate must be > 0, got %v", c.TickRate))
	}
	if c.Transport.URL != "" && !strings.HasPrefix(c.Transport.URL, "ws://") && !strings.HasPrefix(c.Transport.URL, "wss://") {
		errs = append(errs, fmt.Errorf("transport.url must be ws:// or wss://, got %q", c.Transport.URL))
	}
	if c.Transport.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("transport.send_buffer must be >= 1, got %d", c.Transport.SendBuffer))
	}
	if c.Transport.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("transport.read_timeout must be >= 0, got %v", c.Transport.ReadTimeout))
	}
	if c.Journal.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("journal.busy_timeout must be >= 0, got %v", c.Journal.BusyTimeout))
	}
	if !slices.Contains(store.SynchronousModes, strings.ToLower(c.Journal.Synchronous)) {
		errs = append(errs, fmt.Errorf("journal.synchronous must be one of %s, got %q",
			strings.Join(store.SynchronousModes, ", "), c.Journal.Synchronous))
	}
	if c.Registry.TempIDBase == 0 {
		errs = append(errs, errors.New("registry.temp_id_base must be > 0"))
	}
	if c.Movement.TransformField == "" || c.Movement.VelocityField == "" {
		errs = append(errs, errors.New("movement.transform_field and movement.velocity_field are required"))
	}
	if err := c.Prediction.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("prediction: %w", err))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// TickInterval is the wall time between prediction ticks.
func (c Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate)
}

// SessionOptions translates the configuration into session options.
func (c Config) SessionOptions() []session.Option {
	opts := []session.Option{
		session.WithOwnerField(c.OwnerField),
		session.WithTempIDBase(registry.ID(c.Registry.TempIDBase)),
		session.WithPredictionConfig(c.Prediction),
		session.WithMovementFields(c.Movement.TransformField, c.Movement.VelocityField),
	}
	if len(c.Movement.TrackedFields) > 0 {
		opts = append(opts, session.WithTrackedFields(c.Movement.TrackedFields...))
	}
	if c.Journal.Label != "" {
		opts = append(opts, session.WithLabel(c.Journal.Label))
	}
	return opts
}

// StoreOptions translates the journal section into store options.
func (c JournalConfig) StoreOptions() []store.Option {
	return []store.Option{
		store.WithBusyTimeout(c.BusyTimeout),
		store.WithSynchronous(c.Synchronous),
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the handler the log section asks for.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
