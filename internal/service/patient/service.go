package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/internal/repository"
	"github.com/jwalitptl/scribe/pkg/logger"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.PatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
	ListPatients(ctx context.Context) ([]*model.Patient, error)
}

type Service struct {
	repo   repository.PatientRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(repo repository.PatientRepository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log.With("patient-service"),
		now:    time.Now,
	}
}

// CreatePatient stores a new row. Timestamps sent by the workstation are
// kept so its modification order survives the round trip.
func (s *Service) CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error) {
	now := s.now().UTC()

	patient := &model.Patient{Base: model.Base{ID: uuid.New()}}
	req.Apply(patient)
	patient.CreatedAt = orNow(req.CreatedAt, now)
	patient.UpdatedAt = orNow(req.UpdatedAt, patient.CreatedAt)

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.logger.Info("patient created", "patient_id", patient.ID.String())
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

// UpdatePatient replaces every editable field. created_at never changes.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.PatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	req.Apply(patient)
	patient.UpdatedAt = orNow(req.UpdatedAt, s.now().UTC())

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	s.logger.Info("patient updated", "patient_id", id.String(), "observations", len(patient.Observations))
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	s.logger.Info("patient deleted", "patient_id", id.String())
	return nil
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func orNow(t *time.Time, now time.Time) time.Time {
	if t == nil || t.IsZero() {
		return now
	}
	return t.UTC()
}
