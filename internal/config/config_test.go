package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSyncEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SOURCE_USERS", "SOURCE_COOKIES_JSON", "SOURCE_WEB_BEARER_TOKEN",
		"SINK_API_ID", "SINK_API_HASH", "SINK_STRING_SESSION", "SINK_ARCHIVE_BOT_URL",
		"TZ", "STATE_DB_PATH", "DOWNLOAD_TMP_DIR", "SYNC_DAILY_AT",
		"SCHEDULER_RUN_ON_START", "BACKFILL_PAGES_PER_RUN", "MAX_MEDIA_PER_RUN",
		"JOB_LOCK_TTL_SECONDS", "MAX_UPLOAD_VIDEO_BYTES",
		"SOURCE_RATE_LIMIT_COOLDOWN_SECONDS", "SCHEDULER_TICK_SECONDS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearSyncEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.Equal(t, "/data/state.sqlite", cfg.StateDBPath)
	assert.Equal(t, "http://localhost:8081", cfg.SinkArchiveBotURL)
	assert.Equal(t, 300, cfg.MaxMediaPerRun)
	assert.Equal(t, 10, cfg.BackfillPagesPerRun)
	assert.False(t, cfg.SchedulerRunOnStart)
}

func TestLoadParsesCommaSeparatedUsersAndStripsAtSign(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SOURCE_USERS", "@alice, bob ,@carol")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, cfg.SourceUsers)
}

func TestLoadRejectsInvalidTimezone(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("TZ", "Not/AZone")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidSyncDailyAt(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SYNC_DAILY_AT", "25:99")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveMaxMediaPerRun(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("MAX_MEDIA_PER_RUN", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedIntEnvVar(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("MAX_MEDIA_PER_RUN", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseDailyAtValidAndInvalid(t *testing.T) {
	h, m, err := ParseDailyAt("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseDailyAt("bad")
	assert.Error(t, err)

	_, _, err = ParseDailyAt("24:00")
	assert.Error(t, err)
}

func TestParseBoolishRecognizesTruthyVariants(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SCHEDULER_RUN_ON_START", "YES")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.SchedulerRunOnStart)
}
