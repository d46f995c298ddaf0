// Package jobs implements the scheduled background work of the quality
// backend.
//
// # Job Types
//
//   - QualityMonitorJob: hourly detection of dimensions whose fail rate is
//     above the configured threshold
//   - DailyReportJob: prior-day traceability report emailed to every
//     administrator
//   - TokenCleanupJob: removal of expired refresh tokens
//
// # Scheduler
//
// Jobs are registered explicitly on a cron-backed Scheduler:
//
//	s := jobs.NewScheduler(scheduleCfg.Location, log)
//	_ = jobs.RegisterScheduled(s, scheduleCfg, monitor, report)
//	s.Start()
//	defer s.Stop(ctx)
//
// # Error Handling
//
// Jobs log their failures and never crash the process.  Runs are not
// retried; the next tick is the retry.
package jobs
