package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Patient is the row served by the records API. Its JSON form is the
// snake_case document the workstation exchanges with /api/patients.
type Patient struct {
	Base
	Name               string          `db:"name" json:"name"`
	Age                int             `db:"age" json:"age"`
	Gender             string          `db:"gender" json:"gender"`
	DateOfBirth        string          `db:"date_of_birth" json:"date_of_birth"`
	Phone              string          `db:"phone" json:"phone"`
	Email              string          `db:"email" json:"email"`
	Address            string          `db:"address" json:"address"`
	MedicalHistory     string          `db:"medical_history" json:"medical_history"`
	Allergies          string          `db:"allergies" json:"allergies"`
	CurrentMedications string          `db:"current_medications" json:"current_medications"`
	BloodType          string          `db:"blood_type" json:"blood_type"`
	InsuranceNumber    string          `db:"insurance_number" json:"insurance_number"`
	EmergencyContact   string          `db:"emergency_contact" json:"emergency_contact"`
	Observations       ObservationList `db:"observations" json:"observations"`
}

// ObservationDoc is an observation as stored by the records API.
type ObservationDoc struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// ObservationList is persisted as a JSONB column.
type ObservationList []ObservationDoc

func (l ObservationList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ObservationList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = ObservationList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported observations column type %T", src)
	}
	return json.Unmarshal(data, l)
}

// PatientRequest is the body of POST and PUT /api/patients.
type PatientRequest struct {
	Name               string          `json:"name" validate:"notblank"`
	Age                *int            `json:"age" validate:"required,gte=0,lte=150"`
	Gender             string          `json:"gender" validate:"notblank"`
	DateOfBirth        string          `json:"date_of_birth"`
	Phone              string          `json:"phone"`
	Email              string          `json:"email"`
	Address            string          `json:"address"`
	MedicalHistory     string          `json:"medical_history"`
	Allergies          string          `json:"allergies"`
	CurrentMedications string          `json:"current_medications"`
	BloodType          string          `json:"blood_type"`
	InsuranceNumber    string          `json:"insurance_number"`
	EmergencyContact   string          `json:"emergency_contact"`
	Observations       ObservationList `json:"observations"`
	CreatedAt          *time.Time      `json:"created_at"`
	UpdatedAt          *time.Time      `json:"updated_at"`
}

func (r *PatientRequest) Validate() error {
	return validate.Validate(r)
}

// Apply copies the request onto p. Timestamps are left to the caller.
func (r *PatientRequest) Apply(p *Patient) {
	p.Name = r.Name
	if r.Age != nil {
		p.Age = *r.Age
	}
	p.Gender = r.Gender
	p.DateOfBirth = r.DateOfBirth
	p.Phone = r.Phone
	p.Email = r.Email
	p.Address = r.Address
	p.MedicalHistory = r.MedicalHistory
	p.Allergies = r.Allergies
	p.CurrentMedications = r.CurrentMedications
	p.BloodType = r.BloodType
	p.InsuranceNumber = r.InsuranceNumber
	p.EmergencyContact = r.EmergencyContact
	p.Observations = r.Observations
	if p.Observations == nil {
		p.Observations = ObservationList{}
	}
}
