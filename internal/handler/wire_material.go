package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/microwire-quality/internal/middleware"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

// WireMaterialHandler manages inspected wire batches.  Writes purge the
// cached traceability statistics.
type WireMaterialHandler struct {
	Wires       *repository.WireMaterialRepo
	Redis       *redis.Client
	CachePrefix string
}

func NewWireMaterialHandler(w *repository.WireMaterialRepo, rdb *redis.Client, cachePrefix string) *WireMaterialHandler {
	return &WireMaterialHandler{Wires: w, Redis: rdb, CachePrefix: cachePrefix}
}

type wireReq struct {
	BatchNo            string    `json:"batch_no" validate:"required,max=64"`
	ScenarioID         *uint64   `json:"scenario_id" validate:"omitempty,gt=0"`
	Manufacturer       string    `json:"manufacturer" validate:"required,max=128"`
	ResponsiblePerson  string    `json:"responsible_person" validate:"required,max=64"`
	ProcessType        string    `json:"process_type" validate:"required,max=64"`
	ProductionMachine  string    `json:"production_machine" validate:"required,max=64"`
	DiameterUM         float64   `json:"diameter_um" validate:"gt=0"`
	TensileStrengthMPa float64   `json:"tensile_strength_mpa" validate:"gte=0"`
	ElongationPct      float64   `json:"elongation_pct" validate:"gte=0,lte=100"`
	Resistivity        float64   `json:"resistivity" validate:"gte=0"`
	Result             string    `json:"result" validate:"required,oneof=PASS FAIL"`
	ProducedAt         time.Time `json:"produced_at"`
}

func (r wireReq) toModel() *model.WireMaterial {
	return &model.WireMaterial{
		BatchNo:            strings.TrimSpace(r.BatchNo),
		ScenarioID:         r.ScenarioID,
		Manufacturer:       strings.TrimSpace(r.Manufacturer),
		ResponsiblePerson:  strings.TrimSpace(r.ResponsiblePerson),
		ProcessType:        strings.TrimSpace(r.ProcessType),
		ProductionMachine:  strings.TrimSpace(r.ProductionMachine),
		DiameterUM:         r.DiameterUM,
		TensileStrengthMPa: r.TensileStrengthMPa,
		ElongationPct:      r.ElongationPct,
		Resistivity:        r.Resistivity,
		Result:             r.Result,
		ProducedAt:         r.ProducedAt,
	}
}

// List supports ?batch_no=, ?scenario_id=, ?result= and an RFC 3339
// ?from=/?to= production range.
func (h *WireMaterialHandler) List(c echo.Context) error {
	f := repository.WireFilter{
		BatchNo: strings.TrimSpace(c.QueryParam("batch_no")),
		Result:  strings.ToUpper(strings.TrimSpace(c.QueryParam("result"))),
		Page:    pageFrom(c),
	}
	if s := c.QueryParam("scenario_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid scenario_id"})
		}
		f.ScenarioID = id
	}
	var err error
	if f.From, err = parseTimeParam(c, "from"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if f.To, err = parseTimeParam(c, "to"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, total, err := h.Wires.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageOf(items, total, f.Page))
}

func (h *WireMaterialHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	w, err := h.Wires.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "wire material")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WireMaterialHandler) Create(c echo.Context) error {
	var req wireReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if req.ProducedAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": echo.Map{"produced_at": "is required"}})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	w := req.toModel()
	if err := h.Wires.Create(ctx, w); err != nil {
		return respondError(c, err, "wire material")
	}
	h.purgeStats(c)
	return c.JSON(http.StatusCreated, w)
}

func (h *WireMaterialHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req wireReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if req.ProducedAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": echo.Map{"produced_at": "is required"}})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	w := req.toModel()
	w.ID = id
	if err := h.Wires.Update(ctx, w); err != nil {
		return respondError(c, err, "wire material")
	}
	h.purgeStats(c)
	updated, err := h.Wires.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "wire material")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *WireMaterialHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Wires.Delete(ctx, id); err != nil {
		return respondError(c, err, "wire material")
	}
	h.purgeStats(c)
	return c.NoContent(http.StatusNoContent)
}

// purgeStats drops cached statistics; a failure only means stale reads
// until the TTL expires.
func (h *WireMaterialHandler) purgeStats(c echo.Context) {
	if h.Redis == nil || h.CachePrefix == "" {
		return
	}
	if err := middleware.PurgeCache(c.Request().Context(), h.Redis, h.CachePrefix); err != nil {
		c.Logger().Warnf("purge statistics cache: %v", err)
	}
}

func parseTimeParam(c echo.Context, name string) (time.Time, error) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &paramError{name: name}
	}
	return t, nil
}

type paramError struct{ name string }

func (e *paramError) Error() string { return "invalid " + e.name + ", want RFC 3339" }
