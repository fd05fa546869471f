// Package mirror keeps a best-effort local copy of the whole patient list
// under one key, so the workstation can start when the API is unreachable.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/scribe/internal/model"
)

// DefaultKey names the entry holding the patient list.
const DefaultKey = "s2t-patients"

// Mirror stores the full patient list. Save replaces it wholesale.
// Load returns nil and no error when nothing has been saved yet.
type Mirror interface {
	Load(ctx context.Context) ([]*model.PatientRecord, error)
	Save(ctx context.Context, records []*model.PatientRecord) error
	Driver() string
}

func encode(records []*model.PatientRecord) ([]byte, error) {
	if records == nil {
		records = []*model.PatientRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patient mirror: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]*model.PatientRecord, error) {
	var records []*model.PatientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode patient mirror: %w", err)
	}
	for _, r := range records {
		if r.Observations == nil {
			r.Observations = []model.Observation{}
		}
	}
	return records, nil
}
