package records

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scribe/internal/handler"
	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

// Store is the workstation's view of the patient list.
type Store interface {
	List(q model.ListQuery) []*model.PatientRecord
	Get(id string) (*model.PatientRecord, error)
	Create(ctx context.Context, in model.PatientInput) (*model.PatientRecord, error)
	Update(ctx context.Context, id string, in model.PatientInput) (*model.PatientRecord, error)
	AddObservation(ctx context.Context, id, text string) (*model.PatientRecord, error)
	Remove(ctx context.Context, id string) error
	Offline() bool
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
		patients.POST("/:id/observations", h.AddObservation)
	}
}

type ListResponse struct {
	Patients []*model.PatientRecord `json:"patients"`
	Total    int                    `json:"total"`
	Offline  bool                   `json:"offline"`
}

type ObservationRequest struct {
	Text string `json:"text"`
}

func (h *Handler) ListPatients(c *gin.Context) {
	q, err := handler.ParseListQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	patients := h.store.List(q)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ListResponse{
		Patients: patients,
		Total:    len(patients),
		Offline:  h.store.Offline(),
	}))
}

func (h *Handler) GetPatient(c *gin.Context) {
	patient, err := h.store.Get(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var in model.PatientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	patient, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patient))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var in model.PatientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	patient, err := h.store.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &handler.Response{Status: "success", Message: "Patient deleted successfully"})
}

func (h *Handler) AddObservation(c *gin.Context) {
	var req ObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	patient, err := h.store.AddObservation(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patient))
}
