package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scribe/internal/handler"
	"github.com/jwalitptl/scribe/internal/middleware"
	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

type mockService struct{ mock.Mock }

func (m *mockService) CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *mockService) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *mockService) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.PatientRequest) (*model.Patient, error) {
	args := m.Called(ctx, id, req)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *mockService) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockService) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]*model.Patient)
	return p, args.Error(1)
}

func setup(svc *mockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(handler.RenderDetail))
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["detail"]
}

func TestCreatePatient(t *testing.T) {
	svc := new(mockService)
	stored := &model.Patient{Base: model.Base{ID: uuid.New()}, Name: "Ion Popescu", Age: 45, Gender: "M"}
	svc.On("CreatePatient", mock.Anything, mock.MatchedBy(func(req *model.PatientRequest) bool {
		return req.Name == "Ion Popescu" && *req.Age == 45
	})).Return(stored, nil)

	w := do(setup(svc), http.MethodPost, "/api/patients", `{"name":"Ion Popescu","age":45,"gender":"M"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, stored.ID.String(), got["id"])
	assert.Equal(t, "Ion Popescu", got["name"])
	assert.Contains(t, got, "medical_history")
	svc.AssertExpectations(t)
}

func TestCreatePatientRejectsInvalidInput(t *testing.T) {
	svc := new(mockService)
	r := setup(svc)

	w := do(r, http.MethodPost, "/api/patients", `{"name":"  ","age":45,"gender":"M"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name is required", detail(t, w))

	w = do(r, http.MethodPost, "/api/patients", `{"name":"Ana","age":151,"gender":"F"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "age must be at most 150", detail(t, w))

	w = do(r, http.MethodPost, "/api/patients", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", detail(t, w))

	svc.AssertNotCalled(t, "CreatePatient", mock.Anything, mock.Anything)
}

func TestGetPatient(t *testing.T) {
	svc := new(mockService)
	id := uuid.New()
	svc.On("GetPatient", mock.Anything, id).Return(&model.Patient{Base: model.Base{ID: id}, Name: "Maria"}, nil)
	missing := uuid.New()
	svc.On("GetPatient", mock.Anything, missing).Return(nil, apperrors.NotFound("Patient", nil))
	r := setup(svc)

	w := do(r, http.MethodGet, "/api/patients/"+id.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Maria"`)

	w = do(r, http.MethodGet, "/api/patients/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Patient not found", detail(t, w))

	w = do(r, http.MethodGet, "/api/patients/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Patient not found", detail(t, w))
}

func TestUpdatePatient(t *testing.T) {
	svc := new(mockService)
	id := uuid.New()
	svc.On("UpdatePatient", mock.Anything, id, mock.Anything).
		Return(&model.Patient{Base: model.Base{ID: id}, Name: "Maria Ionescu", Age: 33}, nil)

	w := do(setup(svc), http.MethodPut, "/api/patients/"+id.String(), `{"name":"Maria Ionescu","age":33,"gender":"F"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"age":33`)
	svc.AssertExpectations(t)
}

func TestDeletePatient(t *testing.T) {
	svc := new(mockService)
	id := uuid.New()
	svc.On("DeletePatient", mock.Anything, id).Return(nil)

	w := do(setup(svc), http.MethodDelete, "/api/patients/"+id.String(), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Patient deleted successfully"}`, w.Body.String())
}

func TestListPatientsHidesInternalErrors(t *testing.T) {
	svc := new(mockService)
	svc.On("ListPatients", mock.Anything).Return(nil, apperrors.Internal(assert.AnError))

	w := do(setup(svc), http.MethodGet, "/api/patients", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", detail(t, w))
}
