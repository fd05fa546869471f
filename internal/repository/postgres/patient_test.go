package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

var columns = []string{
	"id", "name", "age", "gender", "date_of_birth", "phone", "email", "address",
	"medical_history", "allergies", "current_medications", "blood_type", "insurance_number",
	"emergency_contact", "observations", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*patientRepository, sqlmock.Sqlmock, *metrics.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New("test")
	repo := NewPatientRepository(sqlx.NewDb(db, "postgres"), m).(*patientRepository)
	return repo, mock, m
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func row(id uuid.UUID, ts time.Time) []driver.Value {
	return []driver.Value{
		id.String(), "Ion Popescu", 45, "Male", "", "0712345678", "", "",
		"Hypertension", "Penicillin", "", "A+", "", "",
		[]byte(`[{"id":"o1","text":"BP 140/90","timestamp":"2026-03-01T09:00:00Z","type":"manual"}]`),
		ts, ts,
	}
}

func TestCreatePatient(t *testing.T) {
	repo, mock, m := newMockRepo(t)
	p := &model.Patient{Base: model.Base{ID: uuid.New()}, Name: "Ion Popescu", Age: 45, Gender: "Male"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO patients")).
		WithArgs(anyArgs(17)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("create", "success")))
}

func TestCreatePatientError(t *testing.T) {
	repo, mock, m := newMockRepo(t)

	mock.ExpectExec("INSERT INTO patients").WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &model.Patient{Base: model.Base{ID: uuid.New()}})
	assert.ErrorContains(t, err, "failed to create patient")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("create", "error")))
}

func TestGetPatient(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM patients WHERE id = \\$1").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(id, ts)...))

	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "Ion Popescu", p.Name)
	assert.Equal(t, ts, p.UpdatedAt)
	require.Len(t, p.Observations, 1)
	assert.Equal(t, "manual", p.Observations[0].Type)
}

func TestGetPatientNotFound(t *testing.T) {
	repo, mock, m := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM patients").WithArgs(id.String()).WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), id)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	assert.Equal(t, "Patient not found", err.Error())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("get", "not_found")))
}

func TestUpdatePatient(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	p := &model.Patient{Base: model.Base{ID: uuid.New()}, Name: "Ion", Age: 46, Gender: "Male"}

	mock.ExpectExec("UPDATE patients SET").WithArgs(anyArgs(16)...).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), p))

	mock.ExpectExec("UPDATE patients SET").WithArgs(anyArgs(16)...).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), p)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePatient(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM patients").WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec("DELETE FROM patients").WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, apperrors.IsCode(repo.Delete(context.Background(), id), apperrors.ErrNotFound))
}

func TestListPatients(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM patients ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(uuid.New(), ts)...).AddRow(row(uuid.New(), ts)...))

	patients, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, patients, 2)

	mock.ExpectQuery("SELECT .+ FROM patients").WillReturnRows(sqlmock.NewRows(columns))
	patients, err = repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, patients)
	assert.Empty(t, patients)
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS patients").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "postgres")))
	require.NoError(t, mock.ExpectationsWereMet())
}
