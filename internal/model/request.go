package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a transport request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAssigned  RequestStatus = "assigned"
	StatusInRoute   RequestStatus = "inRoute"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

// TransportMode describes how the patient travels.
type TransportMode string

const (
	ModeStretcher  TransportMode = "stretcher"
	ModeWheelchair TransportMode = "wheelchair"
	ModeWalking    TransportMode = "walking"
)

// ServiceType classifies the purpose of the transport.
type ServiceType string

const (
	ServiceConsultation ServiceType = "consultation"
	ServiceAdmission    ServiceType = "admission"
	ServiceDischarge    ServiceType = "discharge"
	ServiceTransfer     ServiceType = "transfer"
)

// EquipmentList is a set of required equipment names, stored as JSON text.
type EquipmentList []string

// Value implements driver.Valuer.
func (e EquipmentList) Value() (driver.Value, error) {
	if len(e) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (e *EquipmentList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("unsupported equipment list source type %T", src)
	}
}

// TransportRequest is one patient transport booking.
//
// AssignedVehicle and EstimatedArrival are populated if and only if the
// status is assigned or inRoute; the status machine maintains that
// invariant on every transition.
type TransportRequest struct {
	ID                 string        `gorm:"primaryKey;size:36" json:"id"`
	PatientName        string        `gorm:"size:256;not null" json:"patientName"`
	PatientID          string        `gorm:"size:64" json:"patientId"`
	OriginAddress      string        `gorm:"size:512;not null" json:"originAddress"`
	DestinationAddress string        `gorm:"size:512;not null" json:"destinationAddress"`
	DateTime           time.Time     `gorm:"not null;index" json:"dateTime"`
	ReturnDateTime     *time.Time    `json:"returnDateTime,omitempty"`
	TransportMode      TransportMode `gorm:"size:32;not null" json:"transportMode"`
	ServiceType        ServiceType   `gorm:"size:32;not null" json:"serviceType"`
	Status             RequestStatus `gorm:"size:32;not null;index" json:"status"`
	AssignedVehicle    *string       `gorm:"size:36" json:"assignedVehicle,omitempty"`
	EstimatedArrival   *time.Time    `json:"estimatedArrival,omitempty"`
	CreatedBy          string        `gorm:"size:64" json:"createdBy"`
	Observations       string        `gorm:"type:text" json:"observations"`
	Equipment          EquipmentList `gorm:"type:text" json:"equipment,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// RoundTrip reports whether the request includes a return leg.
func (r *TransportRequest) RoundTrip() bool {
	return r.ReturnDateTime != nil
}
