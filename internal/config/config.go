// Package config loads herd's settings from herd.yaml and HERD_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. HERD_LOG_LEVEL.
const EnvPrefix = "HERD"

// Executor modes.
const (
	ExecutorLocal  = "local"
	ExecutorDryRun = "dry-run"
)

type Distribution struct {
	// Version selects an embedded distribution
	Version string `mapstructure:"version" yaml:"version"`

	// File overrides the embedded catalog when set
	File string `mapstructure:"file" yaml:"file"`
}

type Executor struct {
	Mode string `mapstructure:"mode" yaml:"mode"`

	// Root is the directory the local executor keeps per-instance
	// working directories under
	Root string `mapstructure:"root" yaml:"root"`
}

type Heartbeat struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Monitor struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Schedule     string        `mapstructure:"schedule" yaml:"schedule"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

type Repos struct {
	UbuntuBase      string `mapstructure:"ubuntu_base" yaml:"ubuntu_base"`
	UbuntuEcosystem string `mapstructure:"ubuntu_ecosystem" yaml:"ubuntu_ecosystem"`
	CentOSBase      string `mapstructure:"centos_base" yaml:"centos_base"`
	CentOSEcosystem string `mapstructure:"centos_ecosystem" yaml:"centos_ecosystem"`
}

// Image records the tags of a registered machine image.
type Image struct {
	ID   string   `mapstructure:"id" yaml:"id"`
	Tags []string `mapstructure:"tags" yaml:"tags"`
}

type Metrics struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type Config struct {
	DataDir      string       `mapstructure:"data_dir" yaml:"data_dir"`
	ConfDir      string       `mapstructure:"conf_dir" yaml:"conf_dir"`
	Parallelism  int          `mapstructure:"parallelism" yaml:"parallelism"`
	Log          log.Config   `mapstructure:"log" yaml:"log"`
	Distribution Distribution `mapstructure:"distribution" yaml:"distribution"`
	Executor     Executor     `mapstructure:"executor" yaml:"executor"`
	Heartbeat    Heartbeat    `mapstructure:"heartbeat" yaml:"heartbeat"`
	Monitor      Monitor      `mapstructure:"monitor" yaml:"monitor"`
	Repos        Repos        `mapstructure:"repos" yaml:"repos"`
	Images       []Image      `mapstructure:"images" yaml:"images"`
	Metrics      Metrics      `mapstructure:"metrics" yaml:"metrics"`
}

func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir:      dataDir,
		ConfDir:      "/opt/herd/conf",
		Parallelism:  8,
		Log:          log.Config{Level: "info", Format: "text"},
		Distribution: Distribution{Version: "6.1.0"},
		Executor:     Executor{Mode: ExecutorDryRun, Root: filepath.Join(dataDir, "instances")},
		Heartbeat:    Heartbeat{Port: 5660, PollInterval: time.Second, Timeout: 5 * time.Minute},
		Monitor:      Monitor{Schedule: "@every 1m", ProbeTimeout: 5 * time.Second},
		Metrics:      Metrics{Addr: ":9464"},
	}
}

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return "./data"
	}
	return filepath.Join(home, ".herd")
}

// Load reads the config file at path, or herd.yaml from the working
// directory or /etc/herd when path is empty. A missing file is not an
// error. HERD_ environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("herd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/herd/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment overrides apply
// even when the file does not mention the key.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("conf_dir", d.ConfDir)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("distribution.version", d.Distribution.Version)
	v.SetDefault("distribution.file", d.Distribution.File)
	v.SetDefault("executor.mode", d.Executor.Mode)
	v.SetDefault("executor.root", d.Executor.Root)
	v.SetDefault("heartbeat.port", d.Heartbeat.Port)
	v.SetDefault("heartbeat.poll_interval", d.Heartbeat.PollInterval)
	v.SetDefault("heartbeat.timeout", d.Heartbeat.Timeout)
	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.schedule", d.Monitor.Schedule)
	v.SetDefault("monitor.probe_timeout", d.Monitor.ProbeTimeout)
	v.SetDefault("repos.ubuntu_base", d.Repos.UbuntuBase)
	v.SetDefault("repos.ubuntu_ecosystem", d.Repos.UbuntuEcosystem)
	v.SetDefault("repos.centos_base", d.Repos.CentOSBase)
	v.SetDefault("repos.centos_ecosystem", d.Repos.CentOSEcosystem)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Validate rejects settings herd cannot run with.
func (c *Config) Validate() error {
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.Heartbeat.PollInterval <= 0 || c.Heartbeat.Timeout <= 0 {
		return fmt.Errorf("heartbeat poll interval and timeout must be positive")
	}
	switch c.Executor.Mode {
	case ExecutorLocal, ExecutorDryRun:
	default:
		return fmt.Errorf("unknown executor mode %q", c.Executor.Mode)
	}
	seen := make(map[string]bool, len(c.Images))
	for _, img := range c.Images {
		if img.ID == "" {
			return fmt.Errorf("image entry has no id")
		}
		if seen[img.ID] {
			return fmt.Errorf("image %q is listed twice", img.ID)
		}
		seen[img.ID] = true
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// RepoDefaults returns the configured repository locations keyed by the
// catalog option they fill in. Unset locations are omitted.
func (c *Config) RepoDefaults() map[string]string {
	out := make(map[string]string)
	for name, url := range map[string]string{
		catalog.UbuntuBaseRepo:      c.Repos.UbuntuBase,
		catalog.UbuntuEcosystemRepo: c.Repos.UbuntuEcosystem,
		catalog.CentOSBaseRepo:      c.Repos.CentOSBase,
		catalog.CentOSEcosystemRepo: c.Repos.CentOSEcosystem,
	} {
		if url != "" {
			out[name] = url
		}
	}
	return out
}

// ImageTags returns the registered images keyed by ID.
func (c *Config) ImageTags() map[string][]string {
	out := make(map[string][]string, len(c.Images))
	for _, img := range c.Images {
		out[img.ID] = img.Tags
	}
	return out
}
