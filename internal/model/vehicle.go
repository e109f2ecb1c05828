package model

import "time"

// VehicleStatus is the operational availability of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleBusy        VehicleStatus = "busy"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// VehicleLocation is a point-in-time observation of a vehicle's position
// and availability, refreshed from the external location feed. The core
// only ever replaces these records wholesale; it never mutates them.
type VehicleLocation struct {
	VehicleID        string        `json:"vehicleId"`
	Plate            string        `json:"plate"`
	Latitude         float64       `json:"latitude"`
	Longitude        float64       `json:"longitude"`
	Status           VehicleStatus `json:"status"`
	InService        bool          `json:"inService"`
	ServingRequest   *string       `json:"servingRequest,omitempty"`
	EstimatedArrival *time.Time    `json:"estimatedArrival,omitempty"`
	ObservedAt       time.Time     `json:"observedAt"`
}

// LocationAlert is an operational alert raised by the location feed.
type LocationAlert struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicleId"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}
