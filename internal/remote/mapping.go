package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/scribe/internal/model"
)

// patientDocument is the snake_case document exchanged with /api/patients.
// toDocument and fromDocument are the only translation between the two.
type patientDocument struct {
	ID                 wireID             `json:"id,omitempty"`
	Name               string             `json:"name"`
	Age                int                `json:"age"`
	Gender             string             `json:"gender"`
	DateOfBirth        string             `json:"date_of_birth"`
	Phone              string             `json:"phone"`
	Email              string             `json:"email"`
	Address            string             `json:"address"`
	MedicalHistory     string             `json:"medical_history"`
	Allergies          string             `json:"allergies"`
	CurrentMedications string             `json:"current_medications"`
	BloodType          string             `json:"blood_type"`
	InsuranceNumber    string             `json:"insurance_number"`
	EmergencyContact   string             `json:"emergency_contact"`
	CreatedAt          wireTime           `json:"created_at"`
	UpdatedAt          wireTime           `json:"updated_at"`
	Observations       []observationEntry `json:"observations"`
}

type observationEntry struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Timestamp wireTime `json:"timestamp"`
	Type      string   `json:"type"`
}

func toDocument(p *model.PatientRecord) patientDocument {
	doc := patientDocument{
		ID:                 wireID(p.ID),
		Name:               p.Name,
		Age:                p.Age,
		Gender:             p.Gender,
		DateOfBirth:        p.DateOfBirth,
		Phone:              p.Phone,
		Email:              p.Email,
		Address:            p.Address,
		MedicalHistory:     p.MedicalHistory,
		Allergies:          p.Allergies,
		CurrentMedications: p.CurrentMedications,
		BloodType:          p.BloodType,
		InsuranceNumber:    p.InsuranceNumber,
		EmergencyContact:   p.EmergencyContact,
		CreatedAt:          wireTime(p.CreatedAt),
		UpdatedAt:          wireTime(p.UpdatedAt),
		Observations:       make([]observationEntry, 0, len(p.Observations)),
	}
	for _, o := range p.Observations {
		doc.Observations = append(doc.Observations, observationEntry{
			ID:        o.ID,
			Text:      o.Text,
			Timestamp: wireTime(o.Timestamp),
			Type:      string(o.Kind),
		})
	}
	return doc
}

func fromDocument(doc patientDocument) *model.PatientRecord {
	p := &model.PatientRecord{
		ID: string(doc.ID),
		PatientInput: model.PatientInput{
			Name:               doc.Name,
			Age:                doc.Age,
			Gender:             doc.Gender,
			DateOfBirth:        doc.DateOfBirth,
			Phone:              doc.Phone,
			Email:              doc.Email,
			Address:            doc.Address,
			MedicalHistory:     doc.MedicalHistory,
			Allergies:          doc.Allergies,
			CurrentMedications: doc.CurrentMedications,
			BloodType:          doc.BloodType,
			InsuranceNumber:    doc.InsuranceNumber,
			EmergencyContact:   doc.EmergencyContact,
		},
		CreatedAt:    time.Time(doc.CreatedAt),
		UpdatedAt:    time.Time(doc.UpdatedAt),
		Observations: make([]model.Observation, 0, len(doc.Observations)),
	}
	for _, o := range doc.Observations {
		kind := model.ObservationKind(o.Type)
		if kind != model.ObservationTranscription {
			kind = model.ObservationManual
		}
		p.Observations = append(p.Observations, model.Observation{
			ID:        o.ID,
			Text:      o.Text,
			Timestamp: time.Time(o.Timestamp),
			Kind:      kind,
		})
	}
	return p
}

// wireID accepts both string ids and the integer ids older backends issue.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid patient id %s", data)
	}
	*id = wireID(n.String())
	return nil
}

// wireTime accepts RFC 3339 as well as the zone-less timestamps Python
// backends emit, which are read as UTC.
type wireTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = wireTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = wireTime{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed)
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
