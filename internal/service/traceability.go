package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/queue"
)

// StatsStore runs the grouped pass/fail count aggregation.
type StatsStore interface {
	AggregateByDimension(ctx context.Context, q model.TraceabilityQuery) ([]model.TraceabilityStat, error)
}

// Detection summarises one quality issue detection run.
type Detection struct {
	Start     time.Time                `json:"start"`
	End       time.Time                `json:"end"`
	Threshold float64                  `json:"threshold"`
	Issues    []model.TraceabilityStat `json:"issues"`
}

// TraceabilityService computes pass/fail statistics per traceability
// dimension and detects buckets whose fail rate is above the threshold.
type TraceabilityService struct {
	store  StatsStore
	pub    IssuePublisher
	notify config.NotificationConfig
	log    *slog.Logger
	now    func() time.Time
}

// NewTraceabilityService wires the service.  pub may be nil, in which case
// detected issues are only returned.
func NewTraceabilityService(store StatsStore, pub IssuePublisher, notify config.NotificationConfig, log *slog.Logger) *TraceabilityService {
	return &TraceabilityService{store: store, pub: pub, notify: notify, log: log, now: time.Now}
}

// Statistics aggregates batches produced in [q.Start, q.End) by q.Dimension.
// Rates are percentages rounded to two decimals; a bucket is flagged when
// its fail rate is strictly above q.FailRateThreshold.
func (s *TraceabilityService) Statistics(ctx context.Context, q model.TraceabilityQuery) Result[[]model.TraceabilityStat] {
	if !q.Dimension.Valid() {
		return Fail[[]model.TraceabilityStat](CodeBadRequest, fmt.Sprintf("unknown dimension %q", q.Dimension))
	}
	if q.Start.IsZero() || q.End.IsZero() || !q.End.After(q.Start) {
		return Fail[[]model.TraceabilityStat](CodeBadRequest, "end must be after start")
	}
	if q.FailRateThreshold < 0 || q.FailRateThreshold > 100 {
		return Fail[[]model.TraceabilityStat](CodeBadRequest, "fail rate threshold must be between 0 and 100")
	}

	rows, err := s.store.AggregateByDimension(ctx, q)
	if err != nil {
		// Callers report the failed result; keep the cause at Warn.
		s.log.Warn("traceability aggregation failed", "dimension", q.Dimension, "err", err)
		return Fail[[]model.TraceabilityStat](CodeInternal, "traceability statistics unavailable")
	}
	out := make([]model.TraceabilityStat, 0, len(rows))
	for _, r := range rows {
		r.Dimension = q.Dimension
		if r.Total > 0 {
			r.PassRate = percent(r.PassCount, r.Total)
			r.FailRate = percent(r.FailCount, r.Total)
		}
		r.Flagged = r.FailRate > q.FailRateThreshold
		out = append(out, r)
	}
	return Ok(out, "ok")
}

// DetectQualityIssues scans the configured lookback window ending now over
// every dimension and publishes one event per flagged bucket in a single
// batch.  A failed query fails the whole detection; a failed publish is
// only logged.
func (s *TraceabilityService) DetectQualityIssues(ctx context.Context) Result[Detection] {
	end := s.now()
	det := Detection{
		Start:     end.Add(-s.notify.Lookback()),
		End:       end,
		Threshold: s.notify.FailRateThreshold(),
		Issues:    []model.TraceabilityStat{},
	}
	for _, dim := range model.ReportDimensions {
		res := s.Statistics(ctx, model.TraceabilityQuery{
			Dimension:         dim,
			Start:             det.Start,
			End:               det.End,
			FailRateThreshold: det.Threshold,
		})
		if !res.OK() {
			return Fail[Detection](res.Code, fmt.Sprintf("%s: %s", dim, res.Message))
		}
		for _, st := range res.Data {
			if st.Flagged {
				det.Issues = append(det.Issues, st)
			}
		}
	}

	if s.pub != nil && len(det.Issues) > 0 {
		detectedAt := end.UTC().Format(time.RFC3339)
		evs := make([]queue.QualityIssueEvent, 0, len(det.Issues))
		for _, st := range det.Issues {
			evs = append(evs, queue.QualityIssueEvent{
				Dimension:   string(st.Dimension),
				Value:       st.Value,
				Total:       st.Total,
				FailCount:   st.FailCount,
				FailRate:    st.FailRate,
				Threshold:   det.Threshold,
				WindowStart: det.Start.UTC().Format(time.RFC3339),
				WindowEnd:   det.End.UTC().Format(time.RFC3339),
				DetectedAt:  detectedAt,
			})
		}
		if n, err := s.pub.PublishQualityIssues(ctx, evs); err != nil {
			s.log.Warn("publish quality issues failed", "published", n, "pending", len(evs)-n, "err", err)
		}
	}
	return Ok(det, fmt.Sprintf("%d quality issue(s) detected", len(det.Issues)))
}

func percent(n, total int64) float64 {
	return math.Round(float64(n)*10000/float64(total)) / 100
}
