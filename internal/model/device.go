package model

import "time"

// Device statuses.
const (
	DeviceOnline      = "ONLINE"
	DeviceOffline     = "OFFLINE"
	DeviceMaintenance = "MAINTENANCE"
	DeviceFault       = "FAULT"
)

// Device is a production or inspection machine on the wire line, stored in
// the `devices` table.  Code is the unique asset code printed on the machine.
type Device struct {
	ID         uint64     `json:"id"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	DeviceType string     `json:"device_type"`
	Location   string     `json:"location"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
