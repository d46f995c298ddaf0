package jobs

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/service"
)

// StatsProvider answers one traceability statistics query.
type StatsProvider interface {
	Statistics(ctx context.Context, q model.TraceabilityQuery) service.Result[[]model.TraceabilityStat]
}

// ErrStatistics marks a run abandoned because a statistics query failed.
var ErrStatistics = errors.New("traceability statistics failed")

// ReportOutcome describes what one report run did.
type ReportOutcome struct {
	Skipped     bool      `json:"skipped"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Sent        []string  `json:"sent"`
	Failed      []string  `json:"failed"`
}

// DailyReportJob emails the prior day's traceability statistics for every
// report dimension to each administrator address.
type DailyReportJob struct {
	stats       StatsProvider
	mail        service.EmailSender
	notify      config.NotificationConfig
	loc         *time.Location
	log         *slog.Logger
	now         func() time.Time
	sendTimeout time.Duration
}

func NewDailyReportJob(stats StatsProvider, mail service.EmailSender, notify config.NotificationConfig, loc *time.Location, log *slog.Logger) *DailyReportJob {
	if loc == nil {
		loc = time.Local
	}
	return &DailyReportJob{stats: stats, mail: mail, notify: notify, loc: loc, log: log, now: time.Now, sendTimeout: sendTimeout}
}

func (j *DailyReportJob) Name() string { return "daily-report" }

// Run is the scheduled entry point: RunOnce with failures and panics logged
// instead of returned.
func (j *DailyReportJob) Run(ctx context.Context) {
	runGuarded(j.log, j.Name(), func() {
		out, err := j.RunOnce(ctx)
		switch {
		case err != nil:
			j.log.Error("daily report aborted", "err", err)
		case out.Skipped:
			j.log.Info("daily report skipped, no admin emails configured")
		default:
			j.log.Info("daily report completed",
				"window_start", out.WindowStart, "window_end", out.WindowEnd,
				"sent", len(out.Sent), "failed", len(out.Failed))
		}
	})
}

// RunOnce builds and sends the report.  With no administrator addresses it
// does nothing at all.  Statistics are gathered sequentially, one fresh
// query per dimension; any failure aborts the run before anything is sent.
// A failed send to one address is logged and the remaining addresses are
// still attempted.
func (j *DailyReportJob) RunOnce(ctx context.Context) (ReportOutcome, error) {
	recipients := j.notify.AdminEmails()
	if len(recipients) == 0 {
		return ReportOutcome{Skipped: true}, nil
	}

	start, end := ReportWindow(j.now(), j.loc)
	out := ReportOutcome{WindowStart: start, WindowEnd: end, Sent: []string{}, Failed: []string{}}

	sections := make([]reportSection, 0, len(model.ReportDimensions))
	for _, dim := range model.ReportDimensions {
		res := j.stats.Statistics(ctx, model.TraceabilityQuery{
			Dimension:         dim,
			Start:             start,
			End:               end,
			FailRateThreshold: j.notify.FailRateThreshold(),
		})
		if !res.OK() {
			return out, fmt.Errorf("%w: %s: code %d: %s", ErrStatistics, dim, res.Code, res.Message)
		}
		sections = append(sections, reportSection{dimension: dim, rows: res.Data})
	}

	subject := fmt.Sprintf("Micro-wire quality daily report %s", start.Format("2006-01-02"))
	body := renderReport(start, end, j.notify.FailRateThreshold(), sections)

	for _, to := range recipients {
		if err := j.sendOne(ctx, to, subject, body); err != nil {
			j.log.Error("daily report email failed", "to", to, "err", err)
			out.Failed = append(out.Failed, to)
			continue
		}
		out.Sent = append(out.Sent, to)
	}
	return out, nil
}

// sendTimeout bounds the delivery to a single recipient.
const sendTimeout = 2 * time.Minute

func (j *DailyReportJob) sendOne(ctx context.Context, to, subject, body string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, j.sendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	return j.mail.Send(ctx, to, subject, body)
}

// ReportWindow returns the 24 hours ending at the start of now's day in
// loc.  The window is always exactly 24h long, including on days with a DST
// transition.
func ReportWindow(now time.Time, loc *time.Location) (start, end time.Time) {
	n := now.In(loc)
	end = startOfDay(n.Year(), n.Month(), n.Day(), loc)
	return end.Add(-24 * time.Hour), end
}

// startOfDay returns the first instant of the date in loc.  Where midnight
// falls in a DST gap the day begins at the transition.
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty != y || tm != m || td != d {
		// Normalized back into the previous day.
		_, next := t.ZoneBounds()
		return next
	}
	if zs, _ := t.ZoneBounds(); zs.Before(t) {
		if zy, zm, zd := zs.Date(); zy == y && zm == m && zd == d {
			return zs
		}
	}
	return t
}

type reportSection struct {
	dimension model.Dimension
	rows      []model.TraceabilityStat
}

func renderReport(start, end time.Time, threshold float64, sections []reportSection) string {
	const layout = "2006-01-02 15:04 MST"
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Daily quality report</title></head>\n")
	b.WriteString("<body style=\"font-family:Arial,sans-serif\">\n")
	b.WriteString("<h1>Micro-wire quality daily report</h1>\n")
	fmt.Fprintf(&b, "<p>Window: %s to %s. Fail rate threshold: %.2f%%.</p>\n",
		html.EscapeString(start.Format(layout)), html.EscapeString(end.Format(layout)), threshold)

	for _, s := range sections {
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(s.dimension.Label()))
		if len(s.rows) == 0 {
			b.WriteString("<p>No data</p>\n")
			continue
		}
		b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">\n")
		b.WriteString("<tr><th>Value</th><th>Total</th><th>Pass</th><th>Fail</th><th>Pass rate</th><th>Fail rate</th></tr>\n")
		for _, r := range s.rows {
			if r.Flagged {
				b.WriteString("<tr style=\"background:#fdd\">")
			} else {
				b.WriteString("<tr>")
			}
			fmt.Fprintf(&b, "<td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%.2f%%</td><td>%.2f%%</td></tr>\n",
				html.EscapeString(r.Value), r.Total, r.PassCount, r.FailCount, r.PassRate, r.FailRate)
		}
		b.WriteString("</table>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}
