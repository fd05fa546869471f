package export

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	exporter "github.com/jwalitptl/scribe/internal/export"
	"github.com/jwalitptl/scribe/internal/handler"
	"github.com/jwalitptl/scribe/internal/model"
)

type Store interface {
	List(q model.ListQuery) []*model.PatientRecord
	Get(id string) (*model.PatientRecord, error)
}

type Renderer interface {
	RenderPatientDocument(p *model.PatientRecord, observations []model.Observation) (string, error)
	RenderBatchDocument(patients []*model.PatientRecord) (string, error)
	PatientFileName(p *model.PatientRecord, format exporter.Format) string
	BatchFileName(format exporter.Format) string
}

type Handler struct {
	store    Store
	renderer Renderer
}

func NewHandler(store Store, renderer Renderer) *Handler {
	return &Handler{store: store, renderer: renderer}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/:id/export", h.ExportPatient)
	r.GET("/export", h.ExportBatch)
}

func (h *Handler) ExportPatient(c *gin.Context) {
	format, err := exporter.ParseFormat(c.Query("format"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	patient, err := h.store.Get(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	doc, err := h.renderer.RenderPatientDocument(patient, patient.Observations)
	if err != nil {
		_ = c.Error(err)
		return
	}

	attach(c, format, h.renderer.PatientFileName(patient, format), doc)
}

func (h *Handler) ExportBatch(c *gin.Context) {
	format, err := exporter.ParseFormat(c.Query("format"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	q, err := handler.ParseListQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	doc, err := h.renderer.RenderBatchDocument(h.store.List(q))
	if err != nil {
		_ = c.Error(err)
		return
	}

	attach(c, format, h.renderer.BatchFileName(format), doc)
}

func attach(c *gin.Context, format exporter.Format, filename, doc string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), []byte(doc))
}
