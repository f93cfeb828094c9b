// Package config loads the immutable run configuration from environment
// variables and the optional YAML gauge definition file. The core
// components receive the values at construction; nothing reads the
// environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/domain"
)

// Run modes, one per scheduled job.
const (
	ModeWarnings  = "warnings"
	ModeFireDaily = "fire-daily"
	ModeFireAcute = "fire-acute"
	ModeGauges    = "gauges"
	ModeAlarm     = "alarm"
)

// Config holds all settings for one invocation.
type Config struct {
	Mode string

	LogLevel  string
	LogFormat string

	StateDir string

	// Forecast location and rule thresholds.
	Lat, Lon   float64
	Timezone   string
	Models     []string
	Thresholds domain.Thresholds

	// Warning filter.
	WarncellIDs []string
	MinSeverity domain.Severity

	// Situation report cache.
	ReportURL string
	ReportTTL time.Duration

	// Channels. A channel with missing credentials is disabled, not fatal.
	DiveraAccessKey  string // write side (news)
	DiveraRIC        string
	DiveraPrivate    bool
	DiveraCentralKey string // read side (last-alarm), mandatory in alarm mode
	TelegramToken    string
	TelegramChatID   string
	KafkaBrokers     []string
	KafkaAlertTopic  string

	// Transport.
	HTTPRetries    int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RatePerSec     int

	// MetricsAddr serves /metrics and /healthz for the run's duration when
	// set; empty keeps the listener off.
	MetricsAddr string

	// Gauge definitions, from GAUGES_FILE or the built-in defaults.
	Gauges []Gauge
}

// Load reads the configuration, applying defaults where unset, and
// validates it. In alarm mode a structurally invalid central access key
// is rejected here, before any network call is attempted.
func Load() (*Config, error) {
	cfg := &Config{
		Mode:      strings.ToLower(envOrDefault("MODE", ModeWarnings)),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
		StateDir:  envOrDefault("STATE_DIR", ".state"),
		Timezone:  envOrDefault("TIMEZONE", "Europe/Berlin"),
		Models:    splitList(envOrDefault("MODEL_PREF", "icon_d2,icon_eu,gfs")),

		WarncellIDs: splitList(os.Getenv("WARNCELL_IDS")),
		MinSeverity: domain.ParseSeverity(envOrDefault("MIN_SEVERITY", "moderate")),

		ReportURL: os.Getenv("REPORT_URL"),

		DiveraAccessKey:  strings.TrimSpace(os.Getenv("DIVERA_ACCESSKEY")),
		DiveraRIC:        strings.TrimSpace(envOrDefault("DIVERA_RIC", "#170001")),
		DiveraPrivate:    parseBool(envOrDefault("NEWS_PRIVATE", "true")),
		DiveraCentralKey: strings.TrimSpace(os.Getenv("DIVERA_ACCESSKEY_CENTRAL")),
		TelegramToken:    strings.TrimSpace(os.Getenv("TG_BOT_TOKEN")),
		TelegramChatID:   strings.TrimSpace(os.Getenv("TG_CHAT_ID")),
		KafkaAlertTopic:  envOrDefault("KAFKA_ALERT_TOPIC", "warnmelder-alerts"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}

	var err error
	if cfg.Lat, err = parseFloat("LAT", "51.15608"); err != nil {
		return nil, err
	}
	if cfg.Lon, err = parseFloat("LON", "6.66705"); err != nil {
		return nil, err
	}
	if cfg.Thresholds.TempAbove, err = parseFloat("TMAX_C", "30"); err != nil {
		return nil, err
	}
	if cfg.Thresholds.HumidityBelow, err = parseFloat("RH_MIN", "30"); err != nil {
		return nil, err
	}
	if cfg.Thresholds.WindMeanAbove, err = parseFloat("WIND_MEAN_KMH", "25"); err != nil {
		return nil, err
	}
	if cfg.Thresholds.WindGustAbove, err = parseFloat("WIND_GUST_KMH", "30"); err != nil {
		return nil, err
	}
	if cfg.HTTPRetries, err = parseInt("HTTP_RETRIES", "5"); err != nil {
		return nil, err
	}
	if cfg.RatePerSec, err = parseInt("RATE_PER_SEC", "3"); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = parseDuration("HTTP_TIMEOUT_CONNECT", "5s"); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = parseDuration("HTTP_TIMEOUT_READ", "45s"); err != nil {
		return nil, err
	}
	if cfg.ReportTTL, err = parseDuration("REPORT_TTL", "6h"); err != nil {
		return nil, err
	}

	if cfg.Gauges, err = LoadGauges(os.Getenv("GAUGES_FILE")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeWarnings, ModeFireDaily, ModeFireAcute, ModeGauges, ModeAlarm:
	default:
		return fmt.Errorf("invalid MODE %q", c.Mode)
	}
	if c.HTTPRetries < 1 {
		return errors.New("HTTP_RETRIES must be at least 1")
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return errors.New("HTTP timeouts must be positive")
	}
	if c.ReportTTL < 0 {
		return errors.New("REPORT_TTL must not be negative")
	}
	// The central read key is the one mandatory credential: without it the
	// alarm run cannot do anything, so fail before touching the network.
	if c.Mode == ModeAlarm && len(c.DiveraCentralKey) < 20 {
		return errors.New("DIVERA_ACCESSKEY_CENTRAL missing or too short")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(envOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseInt(key, def string) (int, error) {
	v, err := strconv.Atoi(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	v, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
