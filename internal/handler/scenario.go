package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

// ScenarioHandler manages application scenarios.  The list is small and
// returned unpaged.
type ScenarioHandler struct {
	Scenarios *repository.ScenarioRepo
}

func NewScenarioHandler(s *repository.ScenarioRepo) *ScenarioHandler {
	return &ScenarioHandler{Scenarios: s}
}

type scenarioReq struct {
	Name                  string  `json:"name" validate:"required,max=128"`
	Description           string  `json:"description" validate:"max=2000"`
	MinTensileStrengthMPa float64 `json:"min_tensile_strength_mpa" validate:"gte=0"`
	MaxDiameterUM         float64 `json:"max_diameter_um" validate:"gte=0"`
}

func (r scenarioReq) toModel() *model.ApplicationScenario {
	return &model.ApplicationScenario{
		Name:                  strings.TrimSpace(r.Name),
		Description:           strings.TrimSpace(r.Description),
		MinTensileStrengthMPa: r.MinTensileStrengthMPa,
		MaxDiameterUM:         r.MaxDiameterUM,
	}
}

func (h *ScenarioHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, err := h.Scenarios.ListAll(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ScenarioHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	sc, err := h.Scenarios.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "scenario")
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *ScenarioHandler) Create(c echo.Context) error {
	var req scenarioReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	sc := req.toModel()
	if err := h.Scenarios.Create(ctx, sc); err != nil {
		return respondError(c, err, "scenario")
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *ScenarioHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req scenarioReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	sc := req.toModel()
	sc.ID = id
	if err := h.Scenarios.Update(ctx, sc); err != nil {
		return respondError(c, err, "scenario")
	}
	updated, err := h.Scenarios.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "scenario")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete removes the scenario; its batches stay with scenario_id cleared.
func (h *ScenarioHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Scenarios.Delete(ctx, id); err != nil {
		return respondError(c, err, "scenario")
	}
	return c.NoContent(http.StatusNoContent)
}
