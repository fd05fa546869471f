package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/scribe/internal/model"
)

type (
	// PatientRepository persists the records API's patient rows
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Patient, error)
		Ping(ctx context.Context) error
	}
)
