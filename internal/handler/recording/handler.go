package recording

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scribe/internal/handler"
	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/internal/recorder"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

type Recorder interface {
	Start(ctx context.Context) error
	Stop() (*model.AudioCapture, error)
	Cleanup() error
	Discard()
	Result() *model.AudioCapture
	Status() recorder.Status
}

type Transcriber interface {
	Submit(ctx context.Context, audio *model.AudioCapture, fields []string, formType string) (*model.TranscriptionResult, error)
}

// Observer attaches a transcription to a patient file.
type Observer interface {
	AddTranscription(ctx context.Context, id string, result *model.TranscriptionResult) (*model.PatientRecord, error)
}

type Handler struct {
	recorder    Recorder
	transcriber Transcriber
	observer    Observer
	formType    string
}

func NewHandler(rec Recorder, transcriber Transcriber, observer Observer, defaultFormType string) *Handler {
	return &Handler{
		recorder:    rec,
		transcriber: transcriber,
		observer:    observer,
		formType:    defaultFormType,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	recording := r.Group("/recording")
	{
		recording.GET("", h.Status)
		recording.POST("/start", h.Start)
		recording.POST("/stop", h.Stop)
		recording.DELETE("", h.Cleanup)
		recording.POST("/transcribe", h.Transcribe)
	}
}

type TranscribeRequest struct {
	Fields    []string `json:"fields"`
	FormType  string   `json:"form_type"`
	PatientID string   `json:"patient_id"`
}

type TranscribeResponse struct {
	Transcription *model.TranscriptionResult `json:"transcription"`
	Patient       *model.PatientRecord       `json:"patient,omitempty"`
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.recorder.Status()))
}

func (h *Handler) Start(c *gin.Context) {
	if err := h.recorder.Start(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.recorder.Status()))
}

func (h *Handler) Stop(c *gin.Context) {
	if _, err := h.recorder.Stop(); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.recorder.Status()))
}

func (h *Handler) Cleanup(c *gin.Context) {
	if err := h.recorder.Cleanup(); err != nil {
		_ = c.Error(apperrors.Device(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.recorder.Status()))
}

// Transcribe submits the finished capture. The capture is kept when the
// submission fails so the clinician can retry without dictating again.
func (h *Handler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}
	if req.FormType == "" {
		req.FormType = h.formType
	}

	audio := h.recorder.Result()
	if audio.Empty() {
		_ = c.Error(apperrors.Validation("no finished recording to transcribe"))
		return
	}

	ctx := c.Request.Context()
	result, err := h.transcriber.Submit(ctx, audio, req.Fields, req.FormType)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.recorder.Discard()

	resp := TranscribeResponse{Transcription: result}
	if req.PatientID != "" {
		patient, err := h.observer.AddTranscription(ctx, req.PatientID, result)
		if err != nil {
			// The transcription itself succeeded; hand it back with the error.
			_ = c.Error(err)
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), &handler.Response{
				Status:  "error",
				Message: apperrors.UserMessage(err),
				Data:    resp,
			})
			return
		}
		resp.Patient = patient
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
