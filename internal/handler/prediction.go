package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/service"
)

// Predictor scores a wire batch with the ML model.
type Predictor interface {
	Predict(ctx context.Context, in service.PredictionInput) (service.Prediction, error)
}

type PredictionHandler struct {
	Predictor Predictor
}

func NewPredictionHandler(p Predictor) *PredictionHandler { return &PredictionHandler{Predictor: p} }

// Predict forwards the feature vector to the model service.
func (h *PredictionHandler) Predict(c echo.Context) error {
	var req service.PredictionInput
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := h.Predictor.Predict(c.Request().Context(), req)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, p)
	case errors.Is(err, service.ErrPredictorDisabled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "prediction service is not configured"})
	case errors.Is(err, service.ErrPredictorFailed):
		c.Logger().Warnf("prediction failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "prediction service unavailable"})
	}
	return err
}
