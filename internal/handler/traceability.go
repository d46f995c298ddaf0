package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/jobs"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/service"
)

// Analyzer is the traceability analysis the handler exposes.
type Analyzer interface {
	Statistics(ctx context.Context, q model.TraceabilityQuery) service.Result[[]model.TraceabilityStat]
	DetectQualityIssues(ctx context.Context) service.Result[service.Detection]
}

// ReportRunner builds and sends the daily report on demand.
type ReportRunner interface {
	RunOnce(ctx context.Context) (jobs.ReportOutcome, error)
}

// TraceabilityHandler serves statistics and the manual job triggers.
type TraceabilityHandler struct {
	Analyzer Analyzer
	Report   ReportRunner
	Notify   config.NotificationConfig
	now      func() time.Time
}

func NewTraceabilityHandler(a Analyzer, r ReportRunner, notify config.NotificationConfig) *TraceabilityHandler {
	return &TraceabilityHandler{Analyzer: a, Report: r, Notify: notify, now: time.Now}
}

// Statistics answers GET /v1/traceability/statistics.
//
// Query: dimension (required), start and end (RFC 3339, default the last
// 24 hours), scenario_id, threshold (default the configured fail-rate
// threshold).
func (h *TraceabilityHandler) Statistics(c echo.Context) error {
	dim, ok := model.ParseDimension(c.QueryParam("dimension"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dimension must be one of MANUFACTURER, RESPONSIBLE_PERSON, PROCESS_TYPE, PRODUCTION_MACHINE"})
	}
	end, err := parseTimeParam(c, "end")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if end.IsZero() {
		end = h.now()
	}
	start, err := parseTimeParam(c, "start")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	q := model.TraceabilityQuery{
		Dimension:         dim,
		Start:             start,
		End:               end,
		FailRateThreshold: h.Notify.FailRateThreshold(),
	}
	if s := strings.TrimSpace(c.QueryParam("scenario_id")); s != "" {
		if q.ScenarioID, err = strconv.ParseUint(s, 10, 64); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid scenario_id"})
		}
	}
	if s := strings.TrimSpace(c.QueryParam("threshold")); s != "" {
		if q.FailRateThreshold, err = strconv.ParseFloat(s, 64); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid threshold"})
		}
	}

	res := h.Analyzer.Statistics(c.Request().Context(), q)
	if res.OK() && res.Data == nil {
		res.Data = []model.TraceabilityStat{}
	}
	return c.JSON(res.HTTPStatus(), res)
}

// DetectQualityIssues runs the hourly detection immediately.
func (h *TraceabilityHandler) DetectQualityIssues(c echo.Context) error {
	res := h.Analyzer.DetectQualityIssues(c.Request().Context())
	return c.JSON(res.HTTPStatus(), res)
}

// TriggerDailyReport builds and emails the daily report immediately.  A
// statistics failure answers 502 and nothing is sent.
func (h *TraceabilityHandler) TriggerDailyReport(c echo.Context) error {
	out, err := h.Report.RunOnce(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("manual daily report: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "daily report aborted: statistics unavailable"})
	}
	return c.JSON(http.StatusOK, out)
}
