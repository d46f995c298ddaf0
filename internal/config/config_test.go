package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":                "test",
		"APP_PORT":               "8080",
		"DB_USER":                "mwq",
		"DB_HOST":                "127.0.0.1",
		"DB_PORT":                "3306",
		"DB_NAME":                "mwq",
		"JWT_SECRET":             "0123456789abcdef0123",
		"ACCESS_TOKEN_TTL_MIN":   "15",
		"REFRESH_TOKEN_TTL_DAYS": "7",
		"BCRYPT_COST":            "10",
	} {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Assistant.HistoryLimit)
	assert.NotEmpty(t, cfg.Assistant.SystemPrompt)
}

func TestLoadReportsAllMissingVars(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_HOST", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BCRYPT_COST", "99")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRootRequiresPassword(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ROOT_EMAIL", "root@example.com")

	_, err := Load()
	assert.ErrorContains(t, err, "ROOT_PASSWORD")
}

func TestLoadNotificationConfigDefaults(t *testing.T) {
	t.Setenv("NOTIFY_CONFIG_FILE", "")
	t.Setenv("NOTIFY_ADMIN_EMAILS", "")

	n, err := LoadNotificationConfig()
	require.NoError(t, err)
	assert.Equal(t, 5.0, n.FailRateThreshold())
	assert.Empty(t, n.AdminEmails())
	assert.Equal(t, time.Hour, n.Lookback())
}

func TestLoadNotificationConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
failRateThreshold: 12.5
lookback: 2h
adminEmails:
  - qa@example.com
  - lead@example.com
`), 0o600))
	t.Setenv("NOTIFY_CONFIG_FILE", path)
	t.Setenv("NOTIFY_ADMIN_EMAILS", "")

	n, err := LoadNotificationConfig()
	require.NoError(t, err)
	assert.Equal(t, 12.5, n.FailRateThreshold())
	assert.Equal(t, []string{"qa@example.com", "lead@example.com"}, n.AdminEmails())
	assert.Equal(t, 2*time.Hour, n.Lookback())

	t.Setenv("NOTIFY_ADMIN_EMAILS", "ops@example.com, ")
	t.Setenv("NOTIFY_FAIL_RATE_THRESHOLD", "3")
	n, err = LoadNotificationConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, n.AdminEmails())
	assert.Equal(t, 3.0, n.FailRateThreshold())
}

func TestLoadNotificationConfigRejectsBadEmail(t *testing.T) {
	t.Setenv("NOTIFY_CONFIG_FILE", "")
	t.Setenv("NOTIFY_ADMIN_EMAILS", "not-an-address")

	_, err := LoadNotificationConfig()
	assert.Error(t, err)
}

func TestNotificationConfigIsACopy(t *testing.T) {
	emails := []string{"a@example.com"}
	n := NewNotificationConfig(1, emails, 0)
	emails[0] = "changed@example.com"

	got := n.AdminEmails()
	assert.Equal(t, []string{"a@example.com"}, got)
	got[0] = "mutated@example.com"
	assert.Equal(t, []string{"a@example.com"}, n.AdminEmails())
	assert.Equal(t, time.Hour, n.Lookback())
}

func TestLoadScheduleConfig(t *testing.T) {
	t.Setenv("SCHEDULE_QUALITY_MONITOR_CRON", "")
	t.Setenv("SCHEDULE_DAILY_REPORT_CRON", "")
	t.Setenv("SCHEDULE_DAILY_REPORT_ENABLED", "false")
	t.Setenv("SCHEDULE_TIMEZONE", "UTC")

	cfg, err := LoadScheduleConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultQualityMonitorCron, cfg.QualityMonitorCron)
	assert.Equal(t, DefaultDailyReportCron, cfg.DailyReportCron)
	assert.True(t, cfg.QualityMonitorEnabled)
	assert.False(t, cfg.DailyReportEnabled)
	assert.Equal(t, "UTC", cfg.Location.String())
}

func TestLoadScheduleConfigRejectsBadCron(t *testing.T) {
	t.Setenv("SCHEDULE_QUALITY_MONITOR_CRON", "every hour")
	_, err := LoadScheduleConfig()
	assert.ErrorContains(t, err, "SCHEDULE_QUALITY_MONITOR_CRON")
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
}
