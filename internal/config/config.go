// Package config parses and validates the daemon's environment-variable
// configuration. It is intentionally a thin, side-effect-free reader: all
// defaults and required-field checks live here so the rest of the daemon can
// assume a fully-populated, validated Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived setting enumerated in spec.md §6.
type Config struct {
	SourceUsers         []string
	SourceCookiesJSON   string
	SourceWebBearer     string
	SinkAPIID           string
	SinkAPIHash         string
	SinkStringSession   string
	SinkArchiveBotURL   string
	Timezone            string
	StateDBPath         string
	BackfillPagesPerRun int
	MaxMediaPerRun      int
	DownloadTmpDir      string
	JobLockTTLSeconds   int
	MaxUploadVideoBytes int64
	RateLimitCooldown   time.Duration
	SyncDailyAt         string
	SchedulerTick       time.Duration
	SchedulerRunOnStart bool
}

// Load reads and validates configuration from the process environment.
// Schema/environment errors are fatal per spec.md §7.8: the caller is
// expected to exit non-zero on a non-nil error.
func Load() (*Config, error) {
	cfg := &Config{
		SourceUsers:         parseUsers(getEnvDefault("SOURCE_USERS", "")),
		SourceCookiesJSON:   os.Getenv("SOURCE_COOKIES_JSON"),
		SourceWebBearer:     os.Getenv("SOURCE_WEB_BEARER_TOKEN"),
		SinkAPIID:           os.Getenv("SINK_API_ID"),
		SinkAPIHash:         os.Getenv("SINK_API_HASH"),
		SinkStringSession:   os.Getenv("SINK_STRING_SESSION"),
		SinkArchiveBotURL:   getEnvDefault("SINK_ARCHIVE_BOT_URL", "http://localhost:8081"),
		Timezone:            getEnvDefault("TZ", "Asia/Shanghai"),
		StateDBPath:         getEnvDefault("STATE_DB_PATH", "/data/state.sqlite"),
		DownloadTmpDir:      getEnvDefault("DOWNLOAD_TMP_DIR", "/tmp/work"),
		SyncDailyAt:         getEnvDefault("SYNC_DAILY_AT", "09:00"),
		SchedulerRunOnStart: parseBoolish(os.Getenv("SCHEDULER_RUN_ON_START")),
	}

	var err error
	if cfg.BackfillPagesPerRun, err = getEnvIntDefault("BACKFILL_PAGES_PER_RUN", 10); err != nil {
		return nil, err
	}
	if cfg.MaxMediaPerRun, err = getEnvIntDefault("MAX_MEDIA_PER_RUN", 300); err != nil {
		return nil, err
	}
	if cfg.JobLockTTLSeconds, err = getEnvIntDefault("JOB_LOCK_TTL_SECONDS", 3300); err != nil {
		return nil, err
	}
	maxUploadBytes, err := getEnvIntDefault("MAX_UPLOAD_VIDEO_BYTES", 512*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadVideoBytes = int64(maxUploadBytes)

	cooldownSeconds, err := getEnvIntDefault("SOURCE_RATE_LIMIT_COOLDOWN_SECONDS", 7200)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitCooldown = time.Duration(cooldownSeconds) * time.Second

	tickSeconds, err := getEnvIntDefault("SCHEDULER_TICK_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.SchedulerTick = time.Duration(tickSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TZ %q: %w", c.Timezone, err)
	}
	if _, _, err := ParseDailyAt(c.SyncDailyAt); err != nil {
		return fmt.Errorf("invalid SYNC_DAILY_AT %q: %w", c.SyncDailyAt, err)
	}
	if c.MaxMediaPerRun <= 0 {
		return fmt.Errorf("MAX_MEDIA_PER_RUN must be positive, got %d", c.MaxMediaPerRun)
	}
	if c.BackfillPagesPerRun <= 0 {
		return fmt.Errorf("BACKFILL_PAGES_PER_RUN must be positive, got %d", c.BackfillPagesPerRun)
	}
	return nil
}

// ParseDailyAt parses an "HH:MM" 24-hour string into its hour/minute parts.
func ParseDailyAt(hhmm string) (hour, minute int, err error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour, minute, nil
}

func parseUsers(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(raw, ",") {
		h = strings.TrimSpace(h)
		h = strings.TrimPrefix(h, "@")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func parseBoolish(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
	return n, nil
}
