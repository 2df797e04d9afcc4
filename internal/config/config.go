// Package config provides configuration for the restalign commands with
// support for command-line flags, environment variables, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/restalign/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig     `json:"app"`
	Logger  LoggerConfig  `json:"logger"`
	Input   InputConfig   `json:"input"`
	Compare CompareConfig `json:"compare"`
	Report  ReportConfig  `json:"report"`
	Store   StoreConfig   `json:"store"`
	Server  ServerConfig  `json:"server"`
	Watch   WatchConfig   `json:"watch"`

	// explicit records options set by flag or environment rather than
	// defaulted, keyed by flag name.
	explicit map[string]bool
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `json:"env" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `json:"log_level" validate:"oneof=debug info warn error"`
	Format string `json:"log_format" validate:"omitempty,oneof=json text pretty"`
}

// InputConfig selects the sequences to compare.
type InputConfig struct {
	Payload  string `json:"payload"`  // extractor output JSON
	Manifest string `json:"manifest"` // YAML run manifest; overrides Payload
	LabelA   string `json:"label_a" validate:"required"`
	LabelB   string `json:"label_b" validate:"required"`
	Coalesce bool   `json:"coalesce"`
	// CheckExpected names a built-in reference segmentation to validate B against.
	CheckExpected string `json:"check_expected" validate:"omitempty,oneof=nidi-panel1"`
}

// CompareConfig holds comparator settings.
type CompareConfig struct {
	Epsilon      float64 `json:"epsilon" validate:"gte=0"`
	ConvertUnits bool    `json:"convert_units"`
}

// ReportConfig holds report rendering settings.
type ReportConfig struct {
	Format string `json:"report_format" validate:"oneof=markdown text json"`
	Output string `json:"output"` // empty writes to stdout
}

// StoreConfig holds run-archive settings.
type StoreConfig struct {
	Path string `json:"store_path"` // empty disables archiving in the CLI
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Port         string        `json:"port" validate:"required,numeric"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	RateLimit    float64       `json:"rate_limit" validate:"gte=0"` // requests per second per client, 0 disables
	RateBurst    int           `json:"rate_burst" validate:"gte=0"`
	CORSOrigins  []string      `json:"cors_origins"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Enabled     bool          `json:"watch"`
	SettleDelay time.Duration `json:"settle_delay"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Positional arguments left after flag parsing are returned as well.
func LoadConfig(name string, args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, text, pretty)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	payload := fs.String("payload", "", "Extractor payload JSON with both sequences")
	manifest := fs.String("manifest", "", "YAML run manifest")
	labelA := fs.String("label-a", "", "Label of sequence A in the payload (default: lumen)")
	labelB := fs.String("label-b", "", "Label of sequence B in the payload (default: nidi)")
	coalesce := fs.String("coalesce", "", "Coalesce touching or overlapping rests before analysis")
	checkExpected := fs.String("check-expected", "", "Validate sequence B against a reference (nidi-panel1)")

	epsilon := fs.String("epsilon", "", "Tolerance for duration equality (default: 1e-9)")
	convertUnits := fs.String("convert-units", "", "Allow comparing eighth and quarter sequences")

	reportFormat := fs.String("format", "", "Report format (markdown, text, json)")
	output := fs.String("out", "", "Write the report to this file instead of stdout")

	storePath := fs.String("store", "", "SQLite run archive path")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	rateLimit := fs.String("rate-limit", "", "Requests per second per client (default: 5, 0 disables)")
	rateBurst := fs.String("rate-burst", "", "Rate limiter burst (default: 20)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins")

	watch := fs.String("watch", "", "Re-run whenever the input changes")
	settleDelay := fs.String("settle-delay", "", "Wait after a change before re-running (default: 200ms)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Input: InputConfig{
			Payload:       getConfigValue(*payload, "REST_PAYLOAD", ""),
			Manifest:      getConfigValue(*manifest, "REST_MANIFEST", ""),
			LabelA:        getConfigValue(*labelA, "REST_LABEL_A", "lumen"),
			LabelB:        getConfigValue(*labelB, "REST_LABEL_B", "nidi"),
			Coalesce:      getBoolConfigValue(*coalesce, "REST_COALESCE", false),
			CheckExpected: getConfigValue(*checkExpected, "REST_CHECK_EXPECTED", ""),
		},
		Compare: CompareConfig{
			ConvertUnits: getBoolConfigValue(*convertUnits, "COMPARE_CONVERT_UNITS", false),
		},
		Report: ReportConfig{
			Format: strings.ToLower(getConfigValue(*reportFormat, "REPORT_FORMAT", "markdown")),
			Output: getConfigValue(*output, "REPORT_OUTPUT", ""),
		},
		Store: StoreConfig{
			Path: getConfigValue(*storePath, "STORE_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			RateBurst:   getIntConfigValue(*rateBurst, "SERVER_RATE_BURST", 20),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "SERVER_CORS_ORIGINS", "")),
		},
		Watch: WatchConfig{
			Enabled: getBoolConfigValue(*watch, "WATCH", false),
		},
	}

	cfg.explicit = map[string]bool{
		"epsilon":        getConfigValue(*epsilon, "COMPARE_EPSILON", "") != "",
		"convert-units":  getConfigValue(*convertUnits, "COMPARE_CONVERT_UNITS", "") != "",
		"coalesce":       getConfigValue(*coalesce, "REST_COALESCE", "") != "",
		"check-expected": getConfigValue(*checkExpected, "REST_CHECK_EXPECTED", "") != "",
	}

	var err error
	if cfg.Compare.Epsilon, err = getFloatConfigValue(*epsilon, "COMPARE_EPSILON", 1e-9); err != nil {
		return nil, nil, err
	}
	if cfg.Server.RateLimit, err = getFloatConfigValue(*rateLimit, "SERVER_RATE_LIMIT", 5); err != nil {
		return nil, nil, err
	}

	durations := []struct {
		target   *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Watch.SettleDelay, *settleDelay, "WATCH_SETTLE_DELAY", "200ms"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.target = parsed
	}

	for _, p := range []*string{&cfg.Input.Payload, &cfg.Input.Manifest, &cfg.Report.Output, &cfg.Store.Path} {
		expanded, err := expandPath(*p)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Explicit reports whether the named option was set by flag, environment or
// .env file. Options set this way take precedence over a run manifest.
func (c *Config) Explicit(name string) bool {
	return c.explicit[name]
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	return validation.New().Validate(c)
}

// expandPath expands ~ and makes a non-empty path absolute.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
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

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
// A malformed value is an error.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return result, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
