package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultQualityMonitorCron = "0 * * * *" // hourly
	DefaultDailyReportCron    = "0 2 * * *" // every day at 02:00
)

// ScheduleConfig is read once at startup.  Disabled jobs are never
// registered with the scheduler.
type ScheduleConfig struct {
	QualityMonitorEnabled bool
	QualityMonitorCron    string
	DailyReportEnabled    bool
	DailyReportCron       string
	Location              *time.Location
}

// LoadScheduleConfig reads SCHEDULE_* variables and rejects cron expressions
// that do not parse as standard five-field specs.
func LoadScheduleConfig() (ScheduleConfig, error) {
	cfg := ScheduleConfig{
		QualityMonitorEnabled: envBool("SCHEDULE_QUALITY_MONITOR_ENABLED", true),
		QualityMonitorCron:    envStr("SCHEDULE_QUALITY_MONITOR_CRON", DefaultQualityMonitorCron),
		DailyReportEnabled:    envBool("SCHEDULE_DAILY_REPORT_ENABLED", true),
		DailyReportCron:       envStr("SCHEDULE_DAILY_REPORT_CRON", DefaultDailyReportCron),
		Location:              time.Local,
	}
	if tz := envStr("SCHEDULE_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}
	if _, err := cron.ParseStandard(cfg.QualityMonitorCron); err != nil {
		return cfg, fmt.Errorf("invalid SCHEDULE_QUALITY_MONITOR_CRON %q: %w", cfg.QualityMonitorCron, err)
	}
	if _, err := cron.ParseStandard(cfg.DailyReportCron); err != nil {
		return cfg, fmt.Errorf("invalid SCHEDULE_DAILY_REPORT_CRON %q: %w", cfg.DailyReportCron, err)
	}
	return cfg, nil
}
