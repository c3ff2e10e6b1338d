// Package config handles configuration loading and management for digestflow.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/digestflow/internal/count"
	"github.com/ShayCichocki/digestflow/internal/digest"
	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/internal/state"
	"github.com/ShayCichocki/digestflow/internal/watch"
)

const (
	// ProjectFile is the project config file searched for upward from the
	// working directory.
	ProjectFile = ".digestflow.yaml"
	// EnvPrefix prefixes environment overrides, e.g. DIGESTFLOW_DIGEST_ENZYME.
	EnvPrefix = "DIGESTFLOW"
)

// Config holds all configuration for digestflow.
type Config struct {
	Digest   DigestConfig   `mapstructure:"digest"`
	Count    CountConfig    `mapstructure:"count"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// DigestConfig holds the digest step parameters.
type DigestConfig struct {
	// Enzyme is a registered enzyme name or a raw cleavage pattern.
	Enzyme          string `mapstructure:"enzyme"`
	MissedCleavages int    `mapstructure:"missed_cleavages"`
	MinLength       int    `mapstructure:"min_length"`
	MaxLength       int    `mapstructure:"max_length"`
}

// CountConfig holds the count step parameters.
type CountConfig struct {
	AminoAcid string `mapstructure:"amino_acid"`
}

// ExecutorConfig selects where steps run.
type ExecutorConfig struct {
	Name string `mapstructure:"name"`
	// Workers is the concurrency of the threads and process executors.
	// Zero means one per CPU.
	Workers      int           `mapstructure:"workers"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// PathsConfig holds output locations.
type PathsConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// CacheConfig holds memoization settings.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	// Path overrides the project state database location.
	Path string `mapstructure:"path"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Params returns the pipeline parameters described by the config.
func (c *Config) Params() pipeline.Params {
	return pipeline.Params{
		Enzyme:          c.Digest.Enzyme,
		MissedCleavages: c.Digest.MissedCleavages,
		MinLength:       c.Digest.MinLength,
		MaxLength:       c.Digest.MaxLength,
		AminoAcid:       c.Count.AminoAcid,
	}
}

// StatePath returns the state database path for a project rooted at root.
func (c *Config) StatePath(root string) string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return state.ProjectDBPath(root)
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (DIGESTFLOW_<SECTION>_<KEY>)
// 2. Project config (.digestflow.yaml in current directory or parent)
// 3. User config (~/.config/digestflow/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the executor name, cache driver and step parameters.
func (c *Config) Validate() error {
	switch c.Executor.Name {
	case executor.NameDefault, executor.NameThreads, executor.NameProcess:
	default:
		return fmt.Errorf("config executor.name: %w: %q", executor.ErrUnknownExecutor, c.Executor.Name)
	}
	switch c.Cache.Driver {
	case state.DriverPureGo, state.DriverCgo:
	default:
		return fmt.Errorf("config cache.driver: %w: %q", state.ErrUnknownDriver, c.Cache.Driver)
	}
	if c.Executor.Workers < 0 || c.Executor.Retries < 0 {
		return fmt.Errorf("config executor: workers and retries must not be negative")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save writes cfg to the given config file, creating its directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for _, k := range Keys() {
		v.Set(k, fileValue(cfg, k))
	}

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("digest.enzyme", d.Digest.Enzyme)
	v.SetDefault("digest.missed_cleavages", d.Digest.MissedCleavages)
	v.SetDefault("digest.min_length", d.Digest.MinLength)
	v.SetDefault("digest.max_length", d.Digest.MaxLength)

	v.SetDefault("count.amino_acid", d.Count.AminoAcid)

	v.SetDefault("executor.name", d.Executor.Name)
	v.SetDefault("executor.workers", d.Executor.Workers)
	v.SetDefault("executor.retries", d.Executor.Retries)
	v.SetDefault("executor.retry_backoff", d.Executor.RetryBackoff.String())

	v.SetDefault("paths.data_dir", d.Paths.DataDir)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.path", d.Cache.Path)

	v.SetDefault("watch.debounce", d.Watch.Debounce.String())
}

// bindEnv maps DIGESTFLOW_SECTION_KEY variables onto section.key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// getUserConfigDir returns the XDG config directory for digestflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "digestflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "digestflow")
	}
	return filepath.Join(home, ".config", "digestflow")
}

// findProjectConfig searches for .digestflow.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Digest: DigestConfig{
			Enzyme:          digest.DefaultEnzyme,
			MissedCleavages: digest.DefaultMissedCleavages,
			MinLength:       digest.DefaultMinLength,
			MaxLength:       digest.DefaultMaxLength,
		},
		Count: CountConfig{
			AminoAcid: count.DefaultAminoAcid,
		},
		Executor: ExecutorConfig{
			Name:         executor.NameDefault,
			Workers:      0,
			Retries:      0,
			RetryBackoff: time.Second,
		},
		Paths: PathsConfig{
			DataDir: "data",
		},
		Cache: CacheConfig{
			Enabled: true,
			Driver:  state.DriverPureGo,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
	}
}
