package model

import (
	"time"

	"github.com/jwalitptl/scribe/pkg/validator"
)

var validate = validator.New()

// PatientInput is the part of a patient file the clinician edits.
type PatientInput struct {
	Name               string `json:"name" validate:"notblank"`
	Age                int    `json:"age" validate:"gte=0,lte=150"`
	Gender             string `json:"gender" validate:"notblank"`
	DateOfBirth        string `json:"dateOfBirth,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Email              string `json:"email,omitempty"`
	Address            string `json:"address,omitempty"`
	MedicalHistory     string `json:"medicalHistory,omitempty"`
	Allergies          string `json:"allergies,omitempty"`
	CurrentMedications string `json:"currentMedications,omitempty"`
	BloodType          string `json:"bloodType,omitempty"`
	InsuranceNumber    string `json:"insuranceNumber,omitempty"`
	EmergencyContact   string `json:"emergencyContact,omitempty"`
}

// Validate enforces the invariants every stored record satisfies.
func (in PatientInput) Validate() error {
	return validate.Validate(in)
}

// PatientRecord is a patient file as held by the workstation.
type PatientRecord struct {
	ID string `json:"id"`
	PatientInput
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Observations []Observation `json:"observations"`
}

// NewPatientRecord validates in and stamps a record without an id.
func NewPatientRecord(in PatientInput, now time.Time) (*PatientRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &PatientRecord{
		PatientInput: in,
		CreatedAt:    now,
		UpdatedAt:    now,
		Observations: []Observation{},
	}, nil
}

// Clone returns a deep copy safe to hand out of the store.
func (p *PatientRecord) Clone() *PatientRecord {
	if p == nil {
		return nil
	}
	c := *p
	c.Observations = make([]Observation, len(p.Observations))
	copy(c.Observations, p.Observations)
	return &c
}

// HasObservations reports whether any note is attached.
func (p *PatientRecord) HasObservations() bool {
	return len(p.Observations) > 0
}
