package model

import "time"

// PushSubscription holds a browser push subscription together with the
// consumer's notification preferences.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`

	// Per-category toggles. A new subscription receives everything.
	RequestStatusEnabled     bool `gorm:"not null;default:true" json:"requestStatusEnabled"`
	VehicleAssignmentEnabled bool `gorm:"not null;default:true" json:"vehicleAssignmentEnabled"`
	EmergencyEnabled         bool `gorm:"not null;default:true" json:"emergencyEnabled"`
	SystemEnabled            bool `gorm:"not null;default:true" json:"systemEnabled"`
	ChatEnabled              bool `gorm:"not null;default:true" json:"chatEnabled"`

	// Quiet hours suppress non-emergency deliveries inside the
	// [QuietStart, QuietEnd) time-of-day window. A start later than the
	// end wraps past midnight.
	QuietHoursEnabled bool   `gorm:"not null;default:false" json:"quietHoursEnabled"`
	QuietStart        string `gorm:"size:8" json:"quietStart"`
	QuietEnd          string `gorm:"size:8" json:"quietEnd"`
}

// CategoryEnabled reports whether the subscription accepts events of the
// given category.
func (s *PushSubscription) CategoryEnabled(cat EventCategory) bool {
	switch cat {
	case CategoryRequestStatus:
		return s.RequestStatusEnabled
	case CategoryVehicleAssignment:
		return s.VehicleAssignmentEnabled
	case CategoryEmergency:
		return s.EmergencyEnabled
	case CategorySystem:
		return s.SystemEnabled
	case CategoryChat:
		return s.ChatEnabled
	default:
		return false
	}
}
