package recording

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scribe/internal/handler"
	"github.com/jwalitptl/scribe/internal/middleware"
	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/internal/recorder"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

type fakeRecorder struct {
	state     recorder.State
	result    *model.AudioCapture
	startErr  error
	discarded bool
}

func (f *fakeRecorder) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.state = recorder.StateRecording
	return nil
}

func (f *fakeRecorder) Stop() (*model.AudioCapture, error) {
	if f.state != recorder.StateRecording {
		return nil, nil
	}
	f.state = recorder.StateStopped
	f.result = &model.AudioCapture{Data: []byte("RIFF"), MIMEType: "audio/wav"}
	return f.result, nil
}

func (f *fakeRecorder) Cleanup() error {
	f.state = recorder.StateIdle
	f.result = nil
	return nil
}

func (f *fakeRecorder) Discard() {
	f.discarded = true
	f.result = nil
}

func (f *fakeRecorder) Result() *model.AudioCapture { return f.result }

func (f *fakeRecorder) Status() recorder.Status {
	return recorder.Status{State: f.state, HasCapture: f.result != nil}
}

type mockTranscriber struct{ mock.Mock }

func (m *mockTranscriber) Submit(ctx context.Context, audio *model.AudioCapture, fields []string, formType string) (*model.TranscriptionResult, error) {
	args := m.Called(ctx, audio, fields, formType)
	r, _ := args.Get(0).(*model.TranscriptionResult)
	return r, args.Error(1)
}

type mockObserver struct{ mock.Mock }

func (m *mockObserver) AddTranscription(ctx context.Context, id string, result *model.TranscriptionResult) (*model.PatientRecord, error) {
	args := m.Called(ctx, id, result)
	p, _ := args.Get(0).(*model.PatientRecord)
	return p, args.Error(1)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(rec *fakeRecorder, tr *mockTranscriber, obs *mockObserver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(handler.RenderError))
	NewHandler(rec, tr, obs, "consultation").RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestRecordingLifecycle(t *testing.T) {
	rec := &fakeRecorder{state: recorder.StateIdle}
	r := setup(rec, new(mockTranscriber), new(mockObserver))

	code, env := do(t, r, http.MethodPost, "/api/v1/recording/start", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"state":"recording"`)

	code, env = do(t, r, http.MethodPost, "/api/v1/recording/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"state":"stopped"`)
	assert.Contains(t, string(env.Data), `"hasCapture":true`)

	code, env = do(t, r, http.MethodDelete, "/api/v1/recording", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"state":"idle"`)
}

func TestStartDeviceFailure(t *testing.T) {
	rec := &fakeRecorder{state: recorder.StateIdle, startErr: apperrors.Device(assert.AnError)}
	r := setup(rec, new(mockTranscriber), new(mockObserver))

	code, env := do(t, r, http.MethodPost, "/api/v1/recording/start", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Message, "microphone")
}

func TestTranscribeWithoutCapture(t *testing.T) {
	tr := new(mockTranscriber)
	r := setup(&fakeRecorder{state: recorder.StateIdle}, tr, new(mockObserver))

	code, _ := do(t, r, http.MethodPost, "/api/v1/recording/transcribe", `{"fields":["name"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	tr.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTranscribeAttachesToPatient(t *testing.T) {
	audio := &model.AudioCapture{Data: []byte("RIFF")}
	rec := &fakeRecorder{state: recorder.StateStopped, result: audio}
	result := &model.TranscriptionResult{RawText: "Pacientul acuza dureri", ParsedFields: map[string]interface{}{"name": "Ion"}}

	tr := new(mockTranscriber)
	tr.On("Submit", mock.Anything, audio, []string{"name"}, "consultation").Return(result, nil)
	obs := new(mockObserver)
	obs.On("AddTranscription", mock.Anything, "1", result).Return(&model.PatientRecord{ID: "1"}, nil)

	code, env := do(t, setup(rec, tr, obs), http.MethodPost, "/api/v1/recording/transcribe", `{"fields":["name"],"patient_id":"1"}`)

	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Pacientul acuza dureri")
	assert.Contains(t, string(env.Data), `"patient":{"id":"1"`)
	assert.True(t, rec.discarded)
	tr.AssertExpectations(t)
	obs.AssertExpectations(t)
}

func TestTranscribeFailureKeepsCapture(t *testing.T) {
	audio := &model.AudioCapture{Data: []byte("RIFF")}
	rec := &fakeRecorder{state: recorder.StateStopped, result: audio}
	tr := new(mockTranscriber)
	tr.On("Submit", mock.Anything, audio, []string{"name"}, "intake").Return(nil, apperrors.Remote(422, "Invalid fields_json"))

	code, env := do(t, setup(rec, tr, new(mockObserver)), http.MethodPost, "/api/v1/recording/transcribe", `{"fields":["name"],"form_type":"intake"}`)

	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Invalid fields_json", env.Message)
	assert.False(t, rec.discarded)
	assert.Same(t, audio, rec.Result())
}
