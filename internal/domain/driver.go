package domain

// VehicleType is the kind of vehicle a ride or plan is for.
type VehicleType string

const (
	VehicleTypeBike VehicleType = "bike"
	VehicleTypeCar  VehicleType = "car"
)

func (v VehicleType) IsValid() bool {
	return v == VehicleTypeBike || v == VehicleTypeCar
}

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "online"
	DriverStatusOffline DriverStatus = "offline"
	DriverStatusOnTrip  DriverStatus = "on_trip"
)

// VehicleInfo describes the vehicle a driver operates.
type VehicleInfo struct {
	Type        VehicleType `json:"type"`
	Make        string      `json:"make,omitempty"`
	Model       string      `json:"model,omitempty"`
	Color       string      `json:"color,omitempty"`
	PlateNumber string      `json:"plate_number,omitempty"`
}

// Driver represents a driver in the system.
type Driver struct {
	ID      string
	Name    string
	Phone   string
	Status  DriverStatus
	Rating  float64
	Vehicle VehicleInfo
}

// Snapshot returns the denormalized driver info stored on a ride.
func (d *Driver) Snapshot() DriverInfo {
	return DriverInfo{
		DriverID: d.ID,
		Name:     d.Name,
		Phone:    d.Phone,
		Rating:   d.Rating,
		Vehicle:  d.Vehicle,
	}
}
