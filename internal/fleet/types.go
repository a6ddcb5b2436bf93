package fleet

import (
	"errors"
	"time"
)

// Priority is the charge-scheduling priority of a vehicle.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority validates a raw priority string.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), true
	}
	return "", false
}

// Vehicle is a fleet vehicle. SOC and Target are whole percentages;
// power limits are kW. VRN is stored uppercase.
type Vehicle struct {
	ID            string     `json:"id"`
	VRN           string     `json:"vrn"`
	Name          string     `json:"name"`
	Make          string     `json:"make"`
	Model         string     `json:"model"`
	SOC           int        `json:"soc"`
	Target        int        `json:"target"`
	DepotID       string     `json:"depot_id,omitempty"`
	DepotName     string     `json:"depot_name,omitempty"`
	Location      string     `json:"location"`
	Priority      Priority   `json:"priority"`
	NextDispatch  *time.Time `json:"next_dispatch,omitempty"`
	AvgCostPerDay float64    `json:"avg_cost_per_day"`
	ACMaxPower    *float64   `json:"ac_max_power,omitempty"`
	DCMaxPower    *float64   `json:"dc_max_power,omitempty"`
	V2GEnabled    bool       `json:"v2g_enabled"`
	Active        bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateVehicleInput carries the fields a client may set on creation.
// Zero-value SOC/Target/Location/Priority receive fleet defaults.
type CreateVehicleInput struct {
	VRN           string
	Name          string
	Make          string
	Model         string
	SOC           *int
	Target        *int
	DepotID       string
	Location      string
	Priority      Priority
	NextDispatch  *time.Time
	AvgCostPerDay *float64
	ACMaxPower    *float64
	DCMaxPower    *float64
	V2GEnabled    *bool
}

// UpdateVehicleInput is a partial update; nil fields are left untouched.
type UpdateVehicleInput struct {
	VRN           *string
	Name          *string
	Make          *string
	Model         *string
	SOC           *int
	Target        *int
	DepotID       *string
	Location      *string
	Priority      *Priority
	NextDispatch  *time.Time
	AvgCostPerDay *float64
	ACMaxPower    *float64
	DCMaxPower    *float64
	V2GEnabled    *bool
}

// Filters narrows a vehicle listing. Zero values mean "no filter";
// SOCBelow is a pointer so 0 is expressible.
type Filters struct {
	DepotID  string
	Priority Priority
	SOCBelow *int
	Search   string
}

var (
	ErrNotFound     = errors.New("fleet: vehicle not found")
	ErrDuplicateVRN = errors.New("fleet: vrn already registered")
	ErrInvalidInput = errors.New("fleet: invalid input")
)
