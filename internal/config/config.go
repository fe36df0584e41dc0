// Package config holds the cloudsync settings read from config.yaml, the environment
// and command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/cloudsync/internal/cloudpath"
	"github.com/openmined/cloudsync/internal/sync"
	"github.com/openmined/cloudsync/internal/utils"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "CLOUDSYNC"
	ConfigFileName = "config"
	ConfigFileType = "yaml"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigDir   = filepath.Join(home, ".cloudsync")
	DefaultConfigPath  = filepath.Join(DefaultConfigDir, ConfigFileName+"."+ConfigFileType)
	DefaultLogFilePath = filepath.Join(DefaultConfigDir, "logs", "cloudsync.log")
	DefaultLocalDir    = filepath.Join(home, "CloudSync")

	// SearchPaths are the folders config.yaml is looked up in, in order.
	SearchPaths = []string{
		".",
		DefaultConfigDir,
		filepath.Join(home, ".config", "cloudsync"),
		"/etc/cloudsync",
	}
)

var (
	ErrNoLocalDir   = errors.New("local_dir is required")
	ErrInvalidValue = errors.New("invalid config value")
)

type Config struct {
	Storage   string   `mapstructure:"storage" yaml:"storage"`
	LocalDir  string   `mapstructure:"local_dir" yaml:"local_dir"`
	CloudDir  string   `mapstructure:"cloud_dir" yaml:"cloud_dir"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive"`
	DryRun    bool     `mapstructure:"dry_run" yaml:"dry_run"`
	Workers   int      `mapstructure:"workers" yaml:"workers"`
	FailFast  bool     `mapstructure:"fail_fast" yaml:"fail_fast"`
	Include   []string `mapstructure:"include" yaml:"include,omitempty"`
	LogLevel  string   `mapstructure:"log_level" yaml:"log_level"`

	Dropbox DropboxConfig `mapstructure:"dropbox" yaml:"dropbox"`
	GDrive  GDriveConfig  `mapstructure:"gdrive" yaml:"gdrive"`
	S3      S3Config      `mapstructure:"s3" yaml:"s3"`

	Path string `mapstructure:"-" yaml:"-"`
}

type DropboxConfig struct {
	AccessToken  string `mapstructure:"access_token" yaml:"access_token"`
	RefreshToken string `mapstructure:"refresh_token" yaml:"refresh_token"`
	AppKey       string `mapstructure:"app_key" yaml:"app_key"`
	AppSecret    string `mapstructure:"app_secret" yaml:"app_secret"`
}

type GDriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	ClientID        string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret    string `mapstructure:"client_secret" yaml:"client_secret"`
	RefreshToken    string `mapstructure:"refresh_token" yaml:"refresh_token"`
	AccessToken     string `mapstructure:"access_token" yaml:"access_token"`
	RootID          string `mapstructure:"root_id" yaml:"root_id"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
}

// SetDefaults registers every key so that environment variables such as
// CLOUDSYNC_DROPBOX_ACCESS_TOKEN are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage", string(sync.BackendDropbox))
	v.SetDefault("local_dir", DefaultLocalDir)
	v.SetDefault("cloud_dir", cloudpath.Root)
	v.SetDefault("recursive", true)
	v.SetDefault("dry_run", false)
	v.SetDefault("workers", 0)
	v.SetDefault("fail_fast", false)
	v.SetDefault("include", []string{})
	v.SetDefault("log_level", "info")

	for _, key := range []string{
		"dropbox.access_token", "dropbox.refresh_token", "dropbox.app_key", "dropbox.app_secret",
		"gdrive.credentials_file", "gdrive.client_id", "gdrive.client_secret", "gdrive.refresh_token", "gdrive.access_token", "gdrive.root_id",
		"s3.bucket", "s3.prefix", "s3.region", "s3.access_key", "s3.secret_key", "s3.endpoint",
	} {
		v.SetDefault(key, "")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes the values in place and reports the first invalid one.
func (c *Config) Validate() error {
	backend, err := sync.ParseBackend(c.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	c.Storage = string(backend)

	if strings.TrimSpace(c.LocalDir) == "" {
		return ErrNoLocalDir
	}
	if c.LocalDir, err = utils.ResolvePath(c.LocalDir); err != nil {
		return fmt.Errorf("local_dir: %w", err)
	}
	if utils.FileExists(c.LocalDir) {
		return fmt.Errorf("%w: local_dir %q is a file", ErrInvalidValue, c.LocalDir)
	}

	c.CloudDir = cloudpath.Clean(c.CloudDir)

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidValue, c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}

	for i, pattern := range c.Include {
		pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "/")
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: include pattern %q", ErrInvalidValue, c.Include[i])
		}
		c.Include[i] = pattern
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	return c.validateStorage(backend)
}

func (c *Config) validateStorage(backend sync.Backend) error {
	switch backend {
	case sync.BackendDropbox:
		d := c.Dropbox
		if d.AccessToken == "" && d.RefreshToken == "" {
			return fmt.Errorf("%w: dropbox.access_token or dropbox.refresh_token is required", ErrInvalidValue)
		}
		if d.RefreshToken != "" && d.AppKey == "" {
			return fmt.Errorf("%w: dropbox.app_key is required with dropbox.refresh_token", ErrInvalidValue)
		}
	case sync.BackendGDrive:
		g := c.GDrive
		if g.CredentialsFile == "" && g.RefreshToken == "" && g.AccessToken == "" {
			return fmt.Errorf("%w: gdrive.credentials_file, gdrive.refresh_token or gdrive.access_token is required", ErrInvalidValue)
		}
		if g.CredentialsFile != "" {
			path, err := utils.ResolvePath(g.CredentialsFile)
			if err != nil {
				return fmt.Errorf("gdrive.credentials_file: %w", err)
			}
			c.GDrive.CredentialsFile = path
		}
	case sync.BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: s3.bucket is required", ErrInvalidValue)
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return fmt.Errorf("%w: s3.access_key and s3.secret_key must be set together", ErrInvalidValue)
		}
		c.S3.Prefix = strings.Trim(c.S3.Prefix, "/")
		c.S3.Endpoint = strings.TrimRight(c.S3.Endpoint, "/")
	}
	return nil
}

// Level is the parsed log_level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidValue, c.LogLevel)
	}
	return level, nil
}

func (c *Config) Backend() sync.Backend {
	return sync.Backend(c.Storage)
}

func (c *Config) MapperConfig() *sync.MapperConfig {
	return &sync.MapperConfig{
		Recursive: c.Recursive,
		Workers:   c.Workers,
		FailFast:  c.FailFast,
	}
}

// LogValue keeps secrets out of logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("storage", c.Storage),
		slog.String("local_dir", c.LocalDir),
		slog.String("cloud_dir", c.CloudDir),
		slog.Bool("recursive", c.Recursive),
		slog.Bool("dry_run", c.DryRun),
		slog.Int("workers", c.Workers),
		slog.String("dropbox_token", utils.MaskSecret(c.Dropbox.AccessToken)),
		slog.String("s3_bucket", c.S3.Bucket),
		slog.String("path", c.Path),
	)
}
