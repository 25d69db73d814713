package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "RENDEZVOUS_"

// Config captures the settings of the rendez-vous service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Token      TokenConfig      `yaml:"token"`
	Log        LogConfig        `yaml:"log"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool `yaml:"secure_cookies"`
}

// SQLiteConfig names the database file.
type SQLiteConfig struct {
	DSN string `yaml:"dsn"`
}

// TokenConfig configures session tokens.
type TokenConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulingConfig carries the engine settings.
type SchedulingConfig struct {
	// Timezone interprets the calendar days members pick in the editor.
	Timezone              string `yaml:"timezone"`
	ExcludeOrganizerVotes bool   `yaml:"exclude_organizer_votes"`
	AllowPastDates        bool   `yaml:"allow_past_dates"`
	MaxVoteRetries        int    `yaml:"max_vote_retries"`
}

// Location resolves Timezone, defaulting to UTC.
func (s SchedulingConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Options tells Load where to look.
type Options struct {
	// ConfigFile is an optional YAML file. RENDEZVOUS_CONFIG is used when empty.
	ConfigFile string
	// EnvFile is an optional dotenv file; ".env" when empty. A missing file
	// is ignored.
	EnvFile string
	// Lookup reads environment variables; os.LookupEnv when nil.
	Lookup func(string) (string, bool)
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:           8080,
			RequestTimeout: 30 * time.Second,
		},
		SQLite: SQLiteConfig{DSN: "rendez-vous.db"},
		Token:  TokenConfig{TTL: 24 * time.Hour},
		Log:    LogConfig{Level: "info", Format: "json"},
		Scheduling: SchedulingConfig{
			Timezone:       "UTC",
			MaxVoteRetries: 3,
		},
	}
}

// Load layers the dotenv file, the YAML file and the environment over the
// defaults. Variables already present in the environment win over the
// dotenv file. Every missing or invalid value is reported in one error.
func Load(opts Options) (Config, error) {
	lookup, err := newLookup(opts)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	path := opts.ConfigFile
	if path == "" {
		path, _ = lookup(envPrefix + "CONFIG")
	}
	if path = strings.TrimSpace(path); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var missing, invalid []string

	intVar := func(name string, dst *int, floor int) {
		if raw, ok := lookup(envPrefix + name); ok && strings.TrimSpace(raw) != "" {
			v, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || v < floor {
				invalid = append(invalid, envPrefix+name)
				return
			}
			*dst = v
		}
	}
	boolVar := func(name string, dst *bool) {
		if raw, ok := lookup(envPrefix + name); ok && strings.TrimSpace(raw) != "" {
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				invalid = append(invalid, envPrefix+name)
				return
			}
			*dst = v
		}
	}
	durationVar := func(name string, dst *time.Duration) {
		if raw, ok := lookup(envPrefix + name); ok && strings.TrimSpace(raw) != "" {
			v, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil || v <= 0 {
				invalid = append(invalid, envPrefix+name)
				return
			}
			*dst = v
		}
	}
	stringVar := func(name string, dst *string) {
		if raw, ok := lookup(envPrefix + name); ok && strings.TrimSpace(raw) != "" {
			*dst = strings.TrimSpace(raw)
		}
	}

	intVar("HTTP_PORT", &cfg.HTTP.Port, 1)
	durationVar("HTTP_REQUEST_TIMEOUT", &cfg.HTTP.RequestTimeout)
	boolVar("SECURE_COOKIES", &cfg.HTTP.SecureCookies)
	if raw, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok && strings.TrimSpace(raw) != "" {
		cfg.HTTP.AllowedOrigins = splitList(raw)
	}
	stringVar("SQLITE_DSN", &cfg.SQLite.DSN)
	stringVar("TOKEN_SECRET", &cfg.Token.Secret)
	durationVar("TOKEN_TTL", &cfg.Token.TTL)
	stringVar("LOG_LEVEL", &cfg.Log.Level)
	stringVar("LOG_FORMAT", &cfg.Log.Format)
	stringVar("TIMEZONE", &cfg.Scheduling.Timezone)
	boolVar("EXCLUDE_ORGANIZER_VOTES", &cfg.Scheduling.ExcludeOrganizerVotes)
	boolVar("ALLOW_PAST_DATES", &cfg.Scheduling.AllowPastDates)
	intVar("MAX_VOTE_RETRIES", &cfg.Scheduling.MaxVoteRetries, 0)

	if cfg.Token.Secret == "" {
		missing = append(missing, envPrefix+"TOKEN_SECRET")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		invalid = appendOnce(invalid, envPrefix+"HTTP_PORT")
	}
	if cfg.SQLite.DSN == "" {
		missing = append(missing, envPrefix+"SQLITE_DSN")
	}
	if cfg.Token.TTL <= 0 {
		invalid = appendOnce(invalid, envPrefix+"TOKEN_TTL")
	}
	if cfg.Scheduling.MaxVoteRetries < 0 {
		invalid = appendOnce(invalid, envPrefix+"MAX_VOTE_RETRIES")
	}
	if _, err := time.LoadLocation(cfg.Scheduling.Timezone); err != nil {
		invalid = appendOnce(invalid, envPrefix+"TIMEZONE")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = appendOnce(invalid, envPrefix+"LOG_LEVEL")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		invalid = appendOnce(invalid, envPrefix+"LOG_FORMAT")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required settings are missing: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("settings have invalid values: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func newLookup(opts Options) (func(string) (string, bool), error) {
	base := opts.Lookup
	if base == nil {
		base = os.LookupEnv
	}

	explicit := opts.EnvFile != ""
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	values, err := godotenv.Read(envFile)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", envFile, err)
	}

	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendOnce(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
