package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/logger"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/service"
)

// captureHandler keeps every record so tests can count lines per level.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func (h *captureHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Message)
	}
	return out
}

func newCapture() (*captureHandler, *slog.Logger) {
	h := &captureHandler{}
	return h, slog.New(h)
}

type stubDetector struct {
	res   service.Result[service.Detection]
	panic bool
	calls int
}

func (d *stubDetector) DetectQualityIssues(context.Context) service.Result[service.Detection] {
	d.calls++
	if d.panic {
		panic("boom")
	}
	return d.res
}

func TestQualityMonitorSuccessLogsOneInfo(t *testing.T) {
	h, log := newCapture()
	det := &stubDetector{res: service.Ok(service.Detection{Issues: []model.TraceabilityStat{{Value: "Acme"}}}, "1 quality issue(s) detected")}

	NewQualityMonitorJob(det, log).Run(context.Background())

	assert.Equal(t, 1, det.calls)
	assert.Equal(t, 1, h.count(slog.LevelInfo))
	assert.Equal(t, 0, h.count(slog.LevelError))
}

func TestQualityMonitorErrorLogsOneError(t *testing.T) {
	h, log := newCapture()
	det := &stubDetector{res: service.Fail[service.Detection](service.CodeInternal, "db down")}

	NewQualityMonitorJob(det, log).Run(context.Background())

	assert.Equal(t, 1, det.calls)
	assert.Equal(t, 0, h.count(slog.LevelInfo))
	assert.Equal(t, 1, h.count(slog.LevelError))
}

type failingStore struct{}

func (failingStore) AggregateByDimension(context.Context, model.TraceabilityQuery) ([]model.TraceabilityStat, error) {
	return nil, errors.New("dial tcp 10.0.0.5:3306: connection refused")
}

func TestQualityMonitorWithTraceabilityServiceLogsOneError(t *testing.T) {
	h, log := newCapture()
	svc := service.NewTraceabilityService(failingStore{}, nil, config.NewNotificationConfig(5, nil, time.Hour), log)

	NewQualityMonitorJob(svc, log).Run(context.Background())

	assert.Equal(t, 1, h.count(slog.LevelError), "messages: %v", h.messages())
	assert.Equal(t, 0, h.count(slog.LevelInfo))
	assert.Contains(t, h.messages(), "quality monitor failed")
}

func TestQualityMonitorRecoversPanic(t *testing.T) {
	h, log := newCapture()
	det := &stubDetector{panic: true}

	assert.NotPanics(t, func() { NewQualityMonitorJob(det, log).Run(context.Background()) })
	assert.Equal(t, 1, h.count(slog.LevelError))
	assert.Equal(t, []string{"job panicked"}, h.messages())
}

type stubStats struct {
	rows    map[model.Dimension][]model.TraceabilityStat
	failOn  model.Dimension
	queries []model.TraceabilityQuery
}

func (s *stubStats) Statistics(_ context.Context, q model.TraceabilityQuery) service.Result[[]model.TraceabilityStat] {
	s.queries = append(s.queries, q)
	if q.Dimension == s.failOn {
		return service.Fail[[]model.TraceabilityStat](service.CodeInternal, "traceability statistics unavailable")
	}
	return service.Ok(s.rows[q.Dimension], "ok")
}

type sentMail struct{ to, subject, body string }

type stubMailer struct {
	fail  map[string]error
	panic map[string]bool
	sent  []sentMail
	tried []string
}

func (m *stubMailer) Send(_ context.Context, to, subject, body string) error {
	m.tried = append(m.tried, to)
	if m.panic[to] {
		panic("smtp exploded")
	}
	if err := m.fail[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

var shanghai = time.FixedZone("CST", 8*3600)

func newReportJob(stats StatsProvider, mail service.EmailSender, emails []string, log *slog.Logger) *DailyReportJob {
	j := NewDailyReportJob(stats, mail, config.NewNotificationConfig(5, emails, 0), shanghai, log)
	j.now = func() time.Time { return time.Date(2026, 10, 17, 2, 0, 3, 0, shanghai) }
	return j
}

func TestDailyReportEmptyAdminListDoesNothing(t *testing.T) {
	stats := &stubStats{}
	mail := &stubMailer{}
	out, err := newReportJob(stats, mail, nil, logger.Discard()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, stats.queries)
	assert.Empty(t, mail.tried)
}

func TestReportWindowIsPriorDay(t *testing.T) {
	start, end := ReportWindow(time.Date(2026, 10, 17, 2, 0, 0, 0, shanghai), shanghai)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, shanghai), end)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, shanghai), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	start, end = ReportWindow(time.Date(2026, 10, 17, 0, 0, 0, 0, shanghai), shanghai)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, shanghai), end, "midnight itself ends the window")
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	// 2026-10-16 20:00 UTC is already the 17th in Shanghai.
	_, end = ReportWindow(time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC), shanghai)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, shanghai), end)
}

func TestReportWindowAcrossDSTIsStill24h(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	start, end := ReportWindow(time.Date(2026, 10, 26, 2, 0, 0, 0, berlin), berlin)
	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, berlin), end)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestReportWindowWhenMidnightIsSkipped(t *testing.T) {
	santiago, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// Chile moved clocks from 00:00 to 01:00 on 2024-09-08.
	start, end := ReportWindow(time.Date(2024, 9, 8, 12, 0, 0, 0, santiago), santiago)

	assert.Equal(t, "2024-09-08", end.In(santiago).Format("2006-01-02"))
	assert.Equal(t, "2024-09-07", end.Add(-time.Nanosecond).In(santiago).Format("2006-01-02"),
		"end is the first instant of the day")
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDailyReportSendsOnePerAdmin(t *testing.T) {
	stats := &stubStats{rows: map[model.Dimension][]model.TraceabilityStat{
		model.DimensionManufacturer: {{Value: "Acme <Ltd>", Total: 10, PassCount: 8, FailCount: 2, PassRate: 80, FailRate: 20, Flagged: true}},
		model.DimensionProcessType:  {{Value: "annealing", Total: 5, PassCount: 5, PassRate: 100}},
	}}
	mail := &stubMailer{}
	out, err := newReportJob(stats, mail, []string{"qa@example.com", "lead@example.com"}, logger.Discard()).RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, stats.queries, 4)
	for i, q := range stats.queries {
		assert.Equal(t, model.ReportDimensions[i], q.Dimension)
		assert.Equal(t, out.WindowStart, q.Start)
		assert.Equal(t, out.WindowEnd, q.End)
		assert.Equal(t, 5.0, q.FailRateThreshold)
	}

	assert.Equal(t, []string{"qa@example.com", "lead@example.com"}, out.Sent)
	require.Len(t, mail.sent, 2)
	body := mail.sent[0].body
	assert.Equal(t, "Micro-wire quality daily report 2026-10-16", mail.sent[0].subject)
	assert.Contains(t, body, "<h2>Manufacturer</h2>")
	assert.Contains(t, body, "Acme &lt;Ltd&gt;")
	assert.Contains(t, body, "20.00%")
	assert.Contains(t, body, "background:#fdd")
	assert.Equal(t, 2, strings.Count(body, "<p>No data</p>"), "responsible person and machine are empty")
	assert.Equal(t, 2, strings.Count(body, "<table"))
}

func TestDailyReportStatisticsFailureSendsNothing(t *testing.T) {
	h, log := newCapture()
	stats := &stubStats{failOn: model.DimensionProcessType}
	mail := &stubMailer{}
	j := newReportJob(stats, mail, []string{"qa@example.com"}, log)

	_, err := j.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrStatistics)
	assert.Len(t, stats.queries, 3)
	assert.Empty(t, mail.tried)

	j.Run(context.Background())
	assert.Empty(t, mail.tried)
	assert.Equal(t, 1, h.count(slog.LevelError))
}

func TestDailyReportRecipientFailureIsIsolated(t *testing.T) {
	h, log := newCapture()
	mail := &stubMailer{
		fail:  map[string]error{"a@example.com": errors.New("mailbox unavailable")},
		panic: map[string]bool{"b@example.com": true},
	}
	j := newReportJob(&stubStats{}, mail, []string{"a@example.com", "b@example.com", "c@example.com"}, log)

	out, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, mail.tried)
	assert.Equal(t, []string{"c@example.com"}, out.Sent)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, out.Failed)
	assert.Equal(t, 2, h.count(slog.LevelError))
}

// stallMailer blocks on stalled recipients until the send context ends.
type stallMailer struct {
	stall map[string]bool
	sent  []string
}

func (m *stallMailer) Send(ctx context.Context, to, _, _ string) error {
	if m.stall[to] {
		<-ctx.Done()
		return ctx.Err()
	}
	m.sent = append(m.sent, to)
	return nil
}

func TestDailyReportStalledRecipientTimesOut(t *testing.T) {
	mail := &stallMailer{stall: map[string]bool{"slow@example.com": true}}
	j := newReportJob(&stubStats{}, mail, []string{"slow@example.com", "qa@example.com"}, logger.Discard())
	j.sendTimeout = 50 * time.Millisecond

	out, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qa@example.com"}, out.Sent)
	assert.Equal(t, []string{"slow@example.com"}, out.Failed)
}

func TestDailyReportRunRecoversPanic(t *testing.T) {
	h, log := newCapture()
	j := newReportJob(nil, &stubMailer{}, []string{"qa@example.com"}, log)
	assert.NotPanics(t, func() { j.Run(context.Background()) })
	assert.Equal(t, 1, h.count(slog.LevelError))
}

type nopJob struct{ name string }

func (j nopJob) Name() string { return j.name }
func (j nopJob) Run(context.Context) {}

func TestRegisterScheduledHonoursToggles(t *testing.T) {
	monitor, report := nopJob{"quality-monitor"}, nopJob{"daily-report"}
	cfg := config.ScheduleConfig{
		QualityMonitorCron: config.DefaultQualityMonitorCron,
		DailyReportCron:    config.DefaultDailyReportCron,
		Location:           time.UTC,
	}

	s := NewScheduler(time.UTC, logger.Discard())
	require.NoError(t, RegisterScheduled(s, cfg, monitor, report))
	assert.Empty(t, s.Jobs())

	cfg.DailyReportEnabled = true
	s = NewScheduler(time.UTC, logger.Discard())
	require.NoError(t, RegisterScheduled(s, cfg, monitor, report))
	assert.Equal(t, []string{"daily-report"}, s.Jobs())

	cfg.QualityMonitorEnabled = true
	s = NewScheduler(time.UTC, logger.Discard())
	require.NoError(t, RegisterScheduled(s, cfg, monitor, report))
	assert.Equal(t, []string{"quality-monitor", "daily-report"}, s.Jobs())

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.UTC, logger.Discard())
	assert.Error(t, s.Register("every hour", nopJob{"x"}))
	assert.Empty(t, s.Jobs())
}

type stubPurger struct {
	cutoff time.Time
	err    error
}

func (p *stubPurger) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 3, p.err
}

func TestTokenCleanupJob(t *testing.T) {
	h, log := newCapture()
	p := &stubPurger{}
	j := NewTokenCleanupJob(p, 48*time.Hour, log)
	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	j.Run(context.Background())
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoff)
	assert.Equal(t, 1, h.count(slog.LevelInfo))

	p.err = errors.New("db down")
	j.Run(context.Background())
	assert.Equal(t, 1, h.count(slog.LevelError))
}
