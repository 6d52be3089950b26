// Package config loads notesync settings from, in order of precedence,
// command-line flags, environment variables, a .env file, a YAML file and
// built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// DevMode points AWS and Redis clients at local emulators without TLS.
	DevMode bool          `yaml:"dev_mode"`
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Editor  EditorConfig  `yaml:"editor"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// APIConfig describes the remote notes backend.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

const (
	SessionMemory = "memory"
	SessionFile   = "file"
	SessionRedis  = "redis"
	SessionDynamo = "dynamo"
)

type SessionConfig struct {
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path"`
	Profile        string `yaml:"profile"`
	RedisEndpoint  string `yaml:"redis_endpoint"`
	DynamoEndpoint string `yaml:"dynamodb_endpoint"`
	DynamoTable    string `yaml:"dynamodb_table"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SyncConfig controls cross-process invalidation of collections.
type SyncConfig struct {
	RedisEndpoint string        `yaml:"redis_endpoint"`
	RefreshTick   time.Duration `yaml:"refresh_tick"`
}

type IngestConfig struct {
	SQSEndpoint string `yaml:"sqs_endpoint"`
	QueueName   string `yaml:"queue_name"`
}

type EditorConfig struct {
	AutosaveDelay time.Duration `yaml:"autosave_delay"`
	Format        string        `yaml:"format"` // plain or html
}

func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   30 * time.Second,
			RateLimit: 20,
			Burst:     40,
		},
		Session: SessionConfig{
			Backend:     SessionFile,
			Path:        filepath.Join(home, ".notesync", "session.yaml"),
			Profile:     "default",
			DynamoTable: "NoteSync",
		},
		Server: ServerConfig{
			Addr:           ":5173",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Sync:   SyncConfig{RefreshTick: 500 * time.Millisecond},
		Ingest: IngestConfig{QueueName: "NoteIngestQueue"},
		Editor: EditorConfig{AutosaveDelay: 3 * time.Second, Format: "plain"},
	}
}

type flagValues struct {
	configFile     *string
	envFile        *string
	devMode        *string
	logLevel       *string
	logFormat      *string
	apiURL         *string
	sessionBackend *string
	sessionPath    *string
	profile        *string
	addr           *string
	staticDir      *string
	autosaveDelay  *string
}

func registerFlags(flagSet *flag.FlagSet) flagValues {
	return flagValues{
		configFile:     flagSet.String("config", "", "Path to YAML config file"),
		envFile:        flagSet.String("env-file", ".env", "Path to .env file"),
		devMode:        flagSet.String("dev", "", "Use local AWS and Redis endpoints (true/false)"),
		logLevel:       flagSet.String("log-level", "", "Log level (debug, info, warn, error)"),
		logFormat:      flagSet.String("log-format", "", "Log format (console, json)"),
		apiURL:         flagSet.String("api-url", "", "Notes backend base URL"),
		sessionBackend: flagSet.String("session", "", "Session store (memory, file, redis, dynamo)"),
		sessionPath:    flagSet.String("session-path", "", "Session file for the file store"),
		profile:        flagSet.String("profile", "", "Session profile name"),
		addr:           flagSet.String("addr", "", "Local UI server listen address"),
		staticDir:      flagSet.String("static-dir", "", "Directory of the built web app"),
		autosaveDelay:  flagSet.String("autosave-delay", "", "Editor autosave delay (e.g. 3s)"),
	}
}

// Load parses the global flags in args and returns the config together with
// the arguments left after them.
func Load(args []string) (*Config, []string, error) {
	flagSet := flag.NewFlagSet("notesync", flag.ContinueOnError)
	flags := registerFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := Default()

	configFile := getConfigValue(*flags.configFile, "NOTESYNC_CONFIG", "")
	if configFile != "" {
		if err := cfg.loadYAML(configFile); err != nil {
			return nil, nil, err
		}
	}

	// Variables already in the environment win over the file
	if err := godotenv.Load(*flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load env file %q: %w", *flags.envFile, err)
	}

	if err := cfg.applyEnvAndFlags(flags); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, flagSet.Args(), nil
}

func (c *Config) loadYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvAndFlags(f flagValues) error {
	c.DevMode = getBoolConfigValue(*f.devMode, "DEV_MODE", c.DevMode)

	c.Log.Level = getConfigValue(*f.logLevel, "LOG_LEVEL", c.Log.Level)
	c.Log.Format = getConfigValue(*f.logFormat, "LOG_FORMAT", c.Log.Format)

	c.API.BaseURL = getConfigValue(*f.apiURL, "BACKEND_URL", c.API.BaseURL)

	c.Session.Backend = getConfigValue(*f.sessionBackend, "SESSION_BACKEND", c.Session.Backend)
	c.Session.Path = getConfigValue(*f.sessionPath, "SESSION_PATH", c.Session.Path)
	c.Session.Profile = getConfigValue(*f.profile, "SESSION_PROFILE", c.Session.Profile)
	c.Session.RedisEndpoint = getConfigValue("", "REDIS_ENDPOINT", c.Session.RedisEndpoint)
	c.Session.DynamoEndpoint = getConfigValue("", "DYNAMODB_ENDPOINT", c.Session.DynamoEndpoint)
	c.Session.DynamoTable = getConfigValue("", "DYNAMODB_TABLE", c.Session.DynamoTable)

	c.Server.Addr = getConfigValue(*f.addr, "FRONTEND_ADDR", c.Server.Addr)
	if port := os.Getenv("FRONTEND_PORT"); port != "" && *f.addr == "" && os.Getenv("FRONTEND_ADDR") == "" {
		c.Server.Addr = ":" + port
	}
	c.Server.StaticDir = getConfigValue(*f.staticDir, "STATIC_DIR", c.Server.StaticDir)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Sync.RedisEndpoint = getConfigValue("", "SYNC_REDIS_ENDPOINT", c.Sync.RedisEndpoint)

	c.Ingest.SQSEndpoint = getConfigValue("", "SQS_ENDPOINT", c.Ingest.SQSEndpoint)
	c.Ingest.QueueName = getConfigValue("", "INGEST_QUEUE", c.Ingest.QueueName)

	c.Editor.Format = getConfigValue("", "EDITOR_FORMAT", c.Editor.Format)

	var err error
	if c.API.Timeout, err = getDurationConfigValue("", "API_TIMEOUT", c.API.Timeout); err != nil {
		return err
	}
	if c.Sync.RefreshTick, err = getDurationConfigValue("", "REFRESH_TICK", c.Sync.RefreshTick); err != nil {
		return err
	}
	if c.Editor.AutosaveDelay, err = getDurationConfigValue(*f.autosaveDelay, "AUTOSAVE_DELAY", c.Editor.AutosaveDelay); err != nil {
		return err
	}
	return nil
}

var (
	validLevels   = []string{"debug", "info", "warn", "error"}
	validFormats  = []string{"console", "json"}
	validSessions = []string{SessionMemory, SessionFile, SessionRedis, SessionDynamo}
)

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if !slices.Contains(validFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Log.Format)
	}
	if c.API.BaseURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	if !slices.Contains(validSessions, c.Session.Backend) {
		return fmt.Errorf("invalid session backend: %s", c.Session.Backend)
	}
	if c.Session.Backend == SessionFile && c.Session.Path == "" {
		return errors.New("session path is required for the file session backend")
	}
	if c.Session.Backend == SessionRedis && c.Session.RedisEndpoint == "" {
		return errors.New("REDIS_ENDPOINT is required for the redis session backend")
	}
	if c.Session.Backend == SessionDynamo && c.Session.DynamoTable == "" {
		return errors.New("DYNAMODB_TABLE is required for the dynamo session backend")
	}
	if c.Sync.RefreshTick < time.Millisecond {
		return fmt.Errorf("refresh tick must be at least 1ms, got %s", c.Sync.RefreshTick)
	}
	if c.Editor.AutosaveDelay <= 0 {
		return fmt.Errorf("autosave delay must be positive, got %s", c.Editor.AutosaveDelay)
	}
	if c.Editor.Format != "plain" && c.Editor.Format != "html" {
		return fmt.Errorf("invalid editor format: %s (must be plain or html)", c.Editor.Format)
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := strings.ToLower(getConfigValue(flagValue, envKey, ""))
	if strValue == "" {
		return defaultValue
	}
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		// Bare numbers are milliseconds
		ms, convErr := strconv.Atoi(strValue)
		if convErr != nil {
			return 0, fmt.Errorf("invalid duration for %s %q: %w", envKey, strValue, err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
