package config

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// BENCHTRACK_GLOBAL_LOG_LEVEL.
	EnvPrefix = "BENCHTRACK"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSuite is the suite name used when none is configured.
	DefaultSuite = "Benchmark"

	// DefaultDocumentFormat is the default persisted document format.
	DefaultDocumentFormat = "js"

	// DefaultMaxDocumentSize caps the size of a persisted document.
	DefaultMaxDocumentSize = "64MB"

	// DefaultLockTimeout bounds how long a writer waits for the store lock.
	DefaultLockTimeout = "2m"

	// DefaultMaxAttempts bounds read-modify-write retries on conflicts.
	DefaultMaxAttempts = 5

	// DefaultS3Key is the object key of the document in S3.
	DefaultS3Key = "benchmarks/data.js"
)

// Config is the root configuration for benchtrack.
type Config struct {
	Global  GlobalConfig  `yaml:"global" mapstructure:"global"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Index   *IndexConfig  `yaml:"index,omitempty" mapstructure:"index"`
	API     *APIConfig    `yaml:"api,omitempty" mapstructure:"api"`
	GitHub  GitHubConfig  `yaml:"github,omitempty" mapstructure:"github"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// StoreConfig describes the benchmark history document.
type StoreConfig struct {
	RepoURL   string          `yaml:"repo_url" mapstructure:"repo_url"`
	Suite     string          `yaml:"suite" mapstructure:"suite"`
	Format    string          `yaml:"format" mapstructure:"format"`
	Alert     AlertConfig     `yaml:"alert" mapstructure:"alert"`
	Retention RetentionConfig `yaml:"retention,omitempty" mapstructure:"retention"`
}

// AlertConfig configures regression checking on append.
type AlertConfig struct {
	Threshold            float64 `yaml:"threshold" mapstructure:"threshold"`
	OnImprovement        bool    `yaml:"on_improvement" mapstructure:"on_improvement"`
	ImprovementThreshold float64 `yaml:"improvement_threshold" mapstructure:"improvement_threshold"`
	Comparison           string  `yaml:"comparison,omitempty" mapstructure:"comparison"`
	Range                int     `yaml:"range,omitempty" mapstructure:"range"`
	FailOnAlert          bool    `yaml:"fail_on_alert" mapstructure:"fail_on_alert"`
}

// RetentionConfig bounds stored history. Zero values disable a limit.
type RetentionConfig struct {
	MaxEntries int    `yaml:"max_entries,omitempty" mapstructure:"max_entries"`
	MaxAge     string `yaml:"max_age,omitempty" mapstructure:"max_age"`
}

// StorageConfig selects where the document is persisted. Only one backend
// (S3 or local) may be enabled at a time.
type StorageConfig struct {
	Local           *LocalStorageConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3              *S3StorageConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
	MaxDocumentSize string              `yaml:"max_document_size,omitempty" mapstructure:"max_document_size"`
	LockTimeout     string              `yaml:"lock_timeout,omitempty" mapstructure:"lock_timeout"`
	MaxAttempts     int                 `yaml:"max_attempts,omitempty" mapstructure:"max_attempts"`
}

// LocalStorageConfig persists the document as a file guarded by a lock file.
type LocalStorageConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	// Owner optionally chowns written files, as "UID:GID".
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// S3StorageConfig persists the document as a single S3 object written with
// conditional requests.
type S3StorageConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Key             string `yaml:"key" mapstructure:"key"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// GitHubConfig is used to resolve commit metadata.
type GitHubConfig struct {
	Token  string `yaml:"token,omitempty" mapstructure:"token"`
	APIURL string `yaml:"api_url,omitempty" mapstructure:"api_url"`
}

// Load reads and merges the given YAML files, applies environment overrides
// and defaults. With no paths, only environment and defaults apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for i, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // path from the command line
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if i == 0 {
			err = v.ReadConfig(bytes.NewReader(data))
		} else {
			err = v.MergeConfig(bytes.NewReader(data))
		}

		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// AutomaticEnv only resolves keys viper already knows about, so bind
	// every field to make overrides work for keys absent from the file.
	bindEnv(v, reflect.TypeOf(Config{}), "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func bindEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	for i := range t.NumField() {
		field := t.Field(i)

		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct {
			bindEnv(v, ft, key)

			continue
		}

		_ = v.BindEnv(key)
	}
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Store.Suite == "" {
		c.Store.Suite = DefaultSuite
	}

	if c.Store.Format == "" {
		c.Store.Format = DefaultDocumentFormat
	}

	if c.Store.Alert.Threshold == 0 {
		c.Store.Alert.Threshold = history.DefaultAlertThreshold
	}

	if c.Store.Alert.ImprovementThreshold == 0 {
		c.Store.Alert.ImprovementThreshold = history.DefaultImprovementThreshold
	}

	if c.Store.Alert.Comparison == "" {
		c.Store.Alert.Comparison = string(history.ComparePrevious)
	}

	if c.Storage.MaxDocumentSize == "" {
		c.Storage.MaxDocumentSize = DefaultMaxDocumentSize
	}

	if c.Storage.LockTimeout == "" {
		c.Storage.LockTimeout = DefaultLockTimeout
	}

	if c.Storage.MaxAttempts <= 0 {
		c.Storage.MaxAttempts = DefaultMaxAttempts
	}

	if c.Storage.S3 != nil && c.Storage.S3.Key == "" {
		c.Storage.S3.Key = DefaultS3Key
	}

	if c.Index != nil {
		c.Index.applyDefaults()
	}

	if c.API != nil {
		c.API.applyDefaults()
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	if c.Store.Suite == "" {
		return fmt.Errorf("store.suite is required")
	}

	if _, err := history.ParseFormat(c.Store.Format); err != nil {
		return fmt.Errorf("store.format: %w", err)
	}

	if err := c.Store.HistoryAlertConfig().Validate(); err != nil {
		return fmt.Errorf("store.alert: %w", err)
	}

	if _, err := c.Store.RetentionPolicy(); err != nil {
		return err
	}

	return c.Storage.Validate()
}

// Validate checks the storage section.
func (s *StorageConfig) Validate() error {
	localEnabled := s.Local != nil && s.Local.Enabled
	s3Enabled := s.S3 != nil && s.S3.Enabled

	switch {
	case localEnabled && s3Enabled:
		return fmt.Errorf("storage: cannot enable both local and s3")
	case !localEnabled && !s3Enabled:
		return fmt.Errorf("storage: one of local or s3 must be enabled")
	case localEnabled && s.Local.Path == "":
		return fmt.Errorf("storage.local.path is required")
	case s3Enabled && s.S3.Bucket == "":
		return fmt.Errorf("storage.s3.bucket is required")
	}

	if _, err := s.MaxDocumentSizeBytes(); err != nil {
		return err
	}

	if _, err := s.LockTimeoutDuration(); err != nil {
		return err
	}

	return nil
}

// MaxDocumentSizeBytes parses MaxDocumentSize (e.g. "64MB").
func (s *StorageConfig) MaxDocumentSizeBytes() (int64, error) {
	size, err := units.FromHumanSize(s.MaxDocumentSize)
	if err != nil {
		return 0, fmt.Errorf("storage.max_document_size: %w", err)
	}

	if size <= 0 {
		return 0, fmt.Errorf("storage.max_document_size must be positive")
	}

	return size, nil
}

// LockTimeoutDuration parses LockTimeout.
func (s *StorageConfig) LockTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("storage.lock_timeout: %w", err)
	}

	return d, nil
}

// HistoryAlertConfig converts the alert section for the history store.
func (s *StoreConfig) HistoryAlertConfig() history.AlertConfig {
	return history.AlertConfig{
		AlertThreshold:       s.Alert.Threshold,
		AlertOnImprovement:   s.Alert.OnImprovement,
		ImprovementThreshold: s.Alert.ImprovementThreshold,
		Comparison:           history.Comparison(s.Alert.Comparison),
		Range:                s.Alert.Range,
	}
}

// RetentionPolicy converts the retention section for the history store.
func (s *StoreConfig) RetentionPolicy() (history.RetentionPolicy, error) {
	policy := history.RetentionPolicy{MaxEntries: s.Retention.MaxEntries}

	if s.Retention.MaxEntries < 0 {
		return policy, fmt.Errorf("store.retention.max_entries must not be negative")
	}

	if s.Retention.MaxAge != "" {
		d, err := time.ParseDuration(s.Retention.MaxAge)
		if err != nil {
			return policy, fmt.Errorf("store.retention.max_age: %w", err)
		}

		policy.MaxAge = d
	}

	return policy, nil
}

// DocumentFormat returns the parsed persisted format.
func (s *StoreConfig) DocumentFormat() history.Format {
	f, err := history.ParseFormat(s.Format)
	if err != nil {
		return history.FormatJSON
	}

	return f
}
