// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SessionCookieName is the cookie the platform uses to authenticate requests.
const SessionCookieName = "__Host-ans_session"

// Grading scheme choices accepted by archive.grading_scheme.
const (
	SchemeOld     = "old"
	SchemeNew     = "new"
	SchemeCurrent = "current"
)

// Artifact store backends accepted by storage.provider.
const (
	StorageLocal = "local"
	StorageNoOp  = "noop"
	StorageGCS   = "gcs"
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Config captures all archiver configuration knobs loaded via Viper.
type Config struct {
	ANS       ANSConfig       `mapstructure:"ans"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Print     PrintConfig     `mapstructure:"print"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ANSConfig identifies the platform and the authenticated session.
type ANSConfig struct {
	// Token is either the raw session token or a cookie-header fragment
	// such as "__Host-ans_session=abc123; other=x".
	Token       string `mapstructure:"token"`
	BaseURL     string `mapstructure:"base_url"`
	CoursesPath string `mapstructure:"courses_path"`
}

// ArchiveConfig controls what gets archived and where.
type ArchiveConfig struct {
	BasePath      string `mapstructure:"base_path"`
	Year          string `mapstructure:"year"`
	GradingScheme string `mapstructure:"grading_scheme"`
}

// RateLimitConfig governs outbound request admission control.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	JitterFactor      float64 `mapstructure:"jitter_factor"`
}

// HTTPConfig configures the fetch layer.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StorageConfig selects the artifact store backend.
type StorageConfig struct {
	Provider string    `mapstructure:"provider"`
	GCS      GCSConfig `mapstructure:"gcs"`
}

// GCSConfig holds Google Cloud Storage parameters.
type GCSConfig struct {
	BucketName string `mapstructure:"bucket_name"`
	Prefix     string `mapstructure:"prefix"`
}

// MetricsConfig controls the optional debug listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// PrintConfig configures the headless-Chrome print subcommand.
type PrintConfig struct {
	NavTimeoutSeconds int `mapstructure:"chrome_nav_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ans.base_url", "https://ans.app/")
	v.SetDefault("archive.base_path", "./archive")
	v.SetDefault("archive.year", "latest")
	v.SetDefault("archive.grading_scheme", SchemeCurrent)
	v.SetDefault("ratelimit.requests_per_second", 4.0)
	v.SetDefault("ratelimit.jitter_factor", 0.0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("storage.provider", StorageLocal)
	v.SetDefault("storage.gcs.prefix", "archive")
	v.SetDefault("print.chrome_nav_timeout_seconds", 45)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ANS.Token) == "" {
		return fmt.Errorf("ans.token must be set")
	}
	if _, err := url.Parse(c.ANS.BaseURL); err != nil {
		return fmt.Errorf("ans.base_url is not a valid URL: %w", err)
	}
	if c.Archive.Year != "latest" && c.Archive.Year != "all" && !yearPattern.MatchString(c.Archive.Year) {
		return fmt.Errorf("archive.year must be 'latest', 'all' or a 4-digit year, got %q", c.Archive.Year)
	}
	switch c.Archive.GradingScheme {
	case SchemeOld, SchemeNew, SchemeCurrent:
	default:
		return fmt.Errorf("archive.grading_scheme must be one of old, new, current, got %q", c.Archive.GradingScheme)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case StorageLocal, StorageNoOp:
	case StorageGCS:
		if c.Storage.GCS.BucketName == "" {
			return fmt.Errorf("storage.gcs.bucket_name must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	return nil
}

// SessionToken extracts the bare session token from ans.token, accepting
// either the raw value or a pasted cookie-header fragment.
func (c Config) SessionToken() string {
	return ParseSessionToken(c.ANS.Token)
}

// ParseSessionToken pulls the session token value out of a raw token or a
// "name=value; other=x" cookie-header fragment.
func ParseSessionToken(token string) string {
	marker := SessionCookieName + "="
	if idx := strings.Index(token, marker); idx != -1 {
		rest := token[idx+len(marker):]
		if end := strings.Index(rest, ";"); end != -1 {
			return rest[:end]
		}
		return rest
	}
	value, _, _ := strings.Cut(token, ";")
	return value
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout converts the print navigation timeout config into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Print.NavTimeoutSeconds) * time.Second
}
