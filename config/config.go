// Package config provides configuration management for GoDispatcher.
// Settings are read from a JSON or INI file on top of safe defaults.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Duration is a time.Duration that decodes from either a Go duration string
// ("5s", "250ms") or an integer number of nanoseconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds all tunable parameters of the dispatcher.
// It is loaded once at startup and then shared read-only between goroutines.
type Config struct {
	// ListenAddr is the TCP address the file server accepts connections on.
	ListenAddr string `json:"listen_addr"`

	// PoolSize is the number of worker goroutines serving connections.
	// Must be > 0.
	PoolSize int `json:"pool_size"`

	// MaxConnections stops the accept loop after this many connections and
	// starts a graceful shutdown.  Zero means unlimited.
	MaxConnections int `json:"max_connections"`

	// MaxOpenConns caps the number of simultaneously open connections; the
	// listener stops accepting while the cap is reached.  Zero means no cap.
	MaxOpenConns int `json:"max_open_conns"`

	// PublicDir holds hello.html and 404.html.
	PublicDir string `json:"public_dir"`

	// SleepDuration is how long GET /sleep stalls before answering.
	SleepDuration Duration `json:"sleep_duration"`

	// ReadTimeout bounds how long a worker waits for a request to arrive on
	// an accepted connection.
	ReadTimeout Duration `json:"read_timeout"`

	// Compression enables br/gzip response bodies when the client asks.
	Compression bool `json:"compression"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel        string `json:"log_level"`
	LogReportCaller bool   `json:"log_report_caller"`

	// ReportInterval is how often a metrics summary is logged.  Zero
	// disables the report.
	ReportInterval Duration `json:"report_interval"`

	// DashboardAddr is where the admin HTTP server listens.  Empty disables it.
	DashboardAddr string `json:"dashboard_addr"`
}

// DefaultConfig returns a *Config pre-filled with defaults.  Each call
// returns a fresh independent copy.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:7878",
		PoolSize:       4,
		MaxConnections: 0,
		MaxOpenConns:   0,
		PublicDir:      "public",
		SleepDuration:  Duration(5 * time.Second),
		ReadTimeout:    Duration(10 * time.Second),
		Compression:    true,
		LogLevel:       "info",
		ReportInterval: Duration(10 * time.Second),
		DashboardAddr:  "127.0.0.1:8080",
	}
}

// LoadConfig reads filename on top of DefaultConfig and validates the result.
// Files ending in .ini are parsed as INI; anything else as JSON.
func LoadConfig(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename) // #nosec G304 – filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(filename), ".ini") {
		err = cfg.decodeINI(raw)
	} else {
		err = cfg.decodeJSON(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) decodeJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields() // catch typos in config files early
	return dec.Decode(cfg)
}

func (cfg *Config) decodeINI(raw []byte) error {
	f, err := ini.Load(raw)
	if err != nil {
		return err
	}

	server := f.Section("server")
	cfg.ListenAddr = server.Key("listenAddr").MustString(cfg.ListenAddr)
	cfg.MaxConnections = server.Key("maxConnections").MustInt(cfg.MaxConnections)
	cfg.MaxOpenConns = server.Key("maxOpenConns").MustInt(cfg.MaxOpenConns)
	cfg.PublicDir = server.Key("publicDir").MustString(cfg.PublicDir)
	cfg.Compression = server.Key("compression").MustBool(cfg.Compression)
	if cfg.SleepDuration, err = iniDuration(server, "sleepDuration", cfg.SleepDuration); err != nil {
		return err
	}
	if cfg.ReadTimeout, err = iniDuration(server, "readTimeout", cfg.ReadTimeout); err != nil {
		return err
	}

	cfg.PoolSize = f.Section("pool").Key("size").MustInt(cfg.PoolSize)

	log := f.Section("log")
	cfg.LogLevel = log.Key("level").MustString(cfg.LogLevel)
	cfg.LogReportCaller = log.Key("reportCaller").MustBool(cfg.LogReportCaller)
	if cfg.ReportInterval, err = iniDuration(log, "reportInterval", cfg.ReportInterval); err != nil {
		return err
	}

	dash := f.Section("dashboard")
	if dash.HasKey("addr") {
		cfg.DashboardAddr = dash.Key("addr").String()
	}
	return nil
}

func iniDuration(sec *ini.Section, key string, def Duration) (Duration, error) {
	if !sec.HasKey(key) {
		return def, nil
	}
	v, err := sec.Key(key).Duration()
	if err != nil {
		return def, fmt.Errorf("%s.%s: %w", sec.Name(), key, err)
	}
	return Duration(v), nil
}

// Validate reports every invalid field.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if cfg.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("pool_size must be > 0, got %d", cfg.PoolSize))
	}
	if cfg.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("max_connections must be >= 0, got %d", cfg.MaxConnections))
	}
	if cfg.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("max_open_conns must be >= 0, got %d", cfg.MaxOpenConns))
	}
	if cfg.SleepDuration < 0 || cfg.ReadTimeout < 0 || cfg.ReportInterval < 0 {
		errs = append(errs, errors.New("durations must be >= 0"))
	}
	if cfg.PublicDir == "" {
		errs = append(errs, errors.New("public_dir is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}
