package model

import (
	"strings"
	"time"
)

// Dimension is the grouping key of a traceability aggregation.
type Dimension string

const (
	DimensionManufacturer      Dimension = "MANUFACTURER"
	DimensionResponsiblePerson Dimension = "RESPONSIBLE_PERSON"
	DimensionProcessType       Dimension = "PROCESS_TYPE"
	DimensionProductionMachine Dimension = "PRODUCTION_MACHINE"
)

// ReportDimensions is the fixed order used by the daily report and the
// quality detection.
var ReportDimensions = []Dimension{
	DimensionManufacturer,
	DimensionResponsiblePerson,
	DimensionProcessType,
	DimensionProductionMachine,
}

// ParseDimension accepts the enum name in any case.
func ParseDimension(s string) (Dimension, bool) {
	d := Dimension(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.Valid()
}

func (d Dimension) Valid() bool {
	switch d {
	case DimensionManufacturer, DimensionResponsiblePerson, DimensionProcessType, DimensionProductionMachine:
		return true
	}
	return false
}

// Label is the human readable name used in reports.
func (d Dimension) Label() string {
	switch d {
	case DimensionManufacturer:
		return "Manufacturer"
	case DimensionResponsiblePerson:
		return "Responsible person"
	case DimensionProcessType:
		return "Process type"
	case DimensionProductionMachine:
		return "Production machine"
	}
	return string(d)
}

// TraceabilityQuery selects batches produced in [Start, End), optionally for
// one scenario (ScenarioID == 0 means all), grouped by Dimension.  It is
// passed by value; build a new one per query.
type TraceabilityQuery struct {
	Dimension         Dimension `json:"dimension"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	ScenarioID        uint64    `json:"scenario_id,omitempty"`
	FailRateThreshold float64   `json:"fail_rate_threshold"`
}

// TraceabilityStat is one bucket of an aggregation.  Rates are percentages.
type TraceabilityStat struct {
	Dimension Dimension `json:"dimension"`
	Value     string    `json:"value"`
	Total     int64     `json:"total"`
	PassCount int64     `json:"pass_count"`
	FailCount int64     `json:"fail_count"`
	PassRate  float64   `json:"pass_rate"`
	FailRate  float64   `json:"fail_rate"`
	Flagged   bool      `json:"flagged"`
}
