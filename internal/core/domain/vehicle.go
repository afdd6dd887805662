package domain

import "time"

// Vehicle is a fleet vehicle that may have one assigned driver.
type Vehicle struct {
	ID           string         `json:"id"`
	PlateNumber  string         `json:"plate_number"`
	Model        string         `json:"model"`
	Manufacturer string         `json:"manufacturer"`
	Year         int            `json:"year"`
	Type         string         `json:"type"`
	SimNumber    string         `json:"sim_number,omitempty"`
	DeviceID     string         `json:"device_id,omitempty"`
	DriverID     *string        `json:"driver_id,omitempty"`
	Driver       *DriverSummary `json:"driver,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DriverSummary is the subset of a driver's account embedded in vehicle reads.
type DriverSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// AssignedDriver returns the driver id or "" when unassigned.
func (v *Vehicle) AssignedDriver() string {
	if v.DriverID == nil {
		return ""
	}
	return *v.DriverID
}
