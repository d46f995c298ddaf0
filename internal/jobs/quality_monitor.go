package jobs

import (
	"context"
	"log/slog"

	"github.com/iliyamo/microwire-quality/internal/service"
)

// Detector runs one quality issue detection.
type Detector interface {
	DetectQualityIssues(ctx context.Context) service.Result[service.Detection]
}

// QualityMonitorJob asks the detector for quality issues once per run and
// logs the outcome.  It keeps no state between runs.
type QualityMonitorJob struct {
	detector Detector
	log      *slog.Logger
}

func NewQualityMonitorJob(detector Detector, log *slog.Logger) *QualityMonitorJob {
	return &QualityMonitorJob{detector: detector, log: log}
}

func (j *QualityMonitorJob) Name() string { return "quality-monitor" }

// Run logs exactly one Info line for a successful detection and exactly one
// Error line for a failed one.  Panics are recovered and logged.
func (j *QualityMonitorJob) Run(ctx context.Context) {
	runGuarded(j.log, j.Name(), func() {
		res := j.detector.DetectQualityIssues(ctx)
		if !res.OK() {
			j.log.Error("quality monitor failed", "code", res.Code, "message", res.Message)
			return
		}
		j.log.Info("quality monitor completed",
			"issues", len(res.Data.Issues),
			"threshold", res.Data.Threshold,
			"window_start", res.Data.Start,
			"window_end", res.Data.End,
			"message", res.Message)
	})
}
