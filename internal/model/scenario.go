package model

import "time"

// ApplicationScenario describes where a wire is used and the limits a batch
// must meet for it (`application_scenarios` table).
type ApplicationScenario struct {
	ID                    uint64    `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	MinTensileStrengthMPa float64   `json:"min_tensile_strength_mpa"`
	MaxDiameterUM         float64   `json:"max_diameter_um"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
