package model

import "time"

// Inspection outcomes for a wire batch.
const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// WireMaterial is one inspected micro-wire batch (`wire_materials` table).
// The four traceability dimensions are plain columns on the batch.
//
// Fields:
//  BatchNo             – unique batch number.
//  ScenarioID          – application scenario the batch was produced for (nullable).
//  Manufacturer        – supplier of the raw material.
//  ResponsiblePerson   – operator responsible for the batch.
//  ProcessType         – drawing / annealing process used.
//  ProductionMachine   – machine code the batch was drawn on.
//  DiameterUM          – measured diameter in micrometres.
//  TensileStrengthMPa  – measured tensile strength.
//  ElongationPct       – elongation at break, percent.
//  Resistivity         – electrical resistivity, µΩ·cm.
//  Result              – PASS or FAIL.
//  ProducedAt          – production timestamp used by traceability windows.
type WireMaterial struct {
	ID                 uint64    `json:"id"`
	BatchNo            string    `json:"batch_no"`
	ScenarioID         *uint64   `json:"scenario_id,omitempty"`
	Manufacturer       string    `json:"manufacturer"`
	ResponsiblePerson  string    `json:"responsible_person"`
	ProcessType        string    `json:"process_type"`
	ProductionMachine  string    `json:"production_machine"`
	DiameterUM         float64   `json:"diameter_um"`
	TensileStrengthMPa float64   `json:"tensile_strength_mpa"`
	ElongationPct      float64   `json:"elongation_pct"`
	Resistivity        float64   `json:"resistivity"`
	Result             string    `json:"result"`
	ProducedAt         time.Time `json:"produced_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
