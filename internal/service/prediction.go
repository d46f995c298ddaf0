package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/microwire-quality/internal/config"
)

var (
	ErrPredictorDisabled = errors.New("predictor not configured")
	ErrPredictorFailed   = errors.New("prediction request failed")
)

// PredictionInput is the feature vector of one wire batch.
type PredictionInput struct {
	ScenarioID         *uint64 `json:"scenario_id,omitempty"`
	Manufacturer       string  `json:"manufacturer,omitempty" validate:"max=128"`
	ProcessType        string  `json:"process_type,omitempty" validate:"max=64"`
	ProductionMachine  string  `json:"production_machine,omitempty" validate:"max=64"`
	DiameterUM         float64 `json:"diameter_um" validate:"gt=0"`
	TensileStrengthMPa float64 `json:"tensile_strength_mpa" validate:"gte=0"`
	ElongationPct      float64 `json:"elongation_pct" validate:"gte=0,lte=100"`
	Resistivity        float64 `json:"resistivity" validate:"gte=0"`
}

// Prediction is the model service's verdict.
type Prediction struct {
	Result       string  `json:"result"`
	Probability  float64 `json:"probability"`
	ModelVersion string  `json:"model_version,omitempty"`
}

// PredictionClient proxies feature vectors to the ML model service's
// POST {BaseURL}/predict endpoint.
type PredictionClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPredictionClient(cfg config.PredictorConfig) *PredictionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PredictionClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *PredictionClient) Predict(ctx context.Context, in PredictionInput) (Prediction, error) {
	if c.baseURL == "" {
		return Prediction{}, ErrPredictorDisabled
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Prediction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrPredictorFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("%w: status %s", ErrPredictorFailed, resp.Status)
	}
	var out Prediction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("%w: decode: %v", ErrPredictorFailed, err)
	}
	if out.Result == "" {
		return Prediction{}, fmt.Errorf("%w: empty result", ErrPredictorFailed)
	}
	return out, nil
}
