package model

import (
	"time"

	"github.com/google/uuid"
)

type ObservationKind string

const (
	ObservationManual        ObservationKind = "manual"
	ObservationTranscription ObservationKind = "transcription"
)

// Observation is a timestamped note. Once appended it is never edited.
type Observation struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      ObservationKind `json:"kind"`
}

func NewObservation(text string, kind ObservationKind, now time.Time) Observation {
	return Observation{
		ID:        uuid.New().String(),
		Text:      text,
		Timestamp: now,
		Kind:      kind,
	}
}
