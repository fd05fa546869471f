package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

func newTestClient(t *testing.T, url string, breaker *circuitbreaker.CircuitBreaker) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url + "/", Token: "tok", Timeout: time.Second}, nil, breaker, logger.NewNop(), metrics.New("test"))
	require.NoError(t, err)
	return c
}

func TestCreateSendsSnakeCaseWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/patients", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasID := body["id"]
		assert.False(t, hasID)
		assert.Equal(t, "Maria Ionescu", body["name"])
		assert.Equal(t, "penicillin", body["allergies"])
		assert.Contains(t, body, "current_medications")

		body["id"] = "9c1d"
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	defer srv.Close()

	rec := &model.PatientRecord{
		ID:           "ignored",
		PatientInput: model.PatientInput{Name: "Maria Ionescu", Age: 32, Gender: "Female", Allergies: "penicillin"},
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	out, err := newTestClient(t, srv.URL, nil).Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "9c1d", out.ID)
	assert.Equal(t, rec.PatientInput, out.PatientInput)
	assert.True(t, rec.CreatedAt.Equal(out.CreatedAt))
}

func TestListAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/patients":
			_, _ = io.WriteString(w, `[{"id":1,"name":"Ion","age":40,"gender":"Male"},{"id":2,"name":"Ana","age":30,"gender":"Female"}]`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/patients/1":
			_, _ = io.WriteString(w, `{"message":"Patient deleted successfully"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Patient not found"}`)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "Ana", list[1].Name)

	require.NoError(t, c.Delete(context.Background(), "1"))

	err = c.Delete(context.Background(), "7")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrRemote, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "Patient not found", appErr.Message)
}

func TestUnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, nil).List(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNetwork))
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var calls int32
	status := int32(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "patients",
		MaxFailures: 2,
		Timeout:     time.Minute,
		IsFailure:   BreakerFailure,
	})
	c := newTestClient(t, srv.URL, breaker)

	for i := 0; i < 3; i++ {
		err := c.Delete(context.Background(), "x")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrRemote))
	}
	assert.Equal(t, "closed", breaker.State())

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	_ = c.Delete(context.Background(), "x")
	_ = c.Delete(context.Background(), "x")

	before := atomic.LoadInt32(&calls)
	err := c.Delete(context.Background(), "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNetwork))
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestCanceledRequestsDoNotTripBreaker(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "patients",
		MaxFailures: 2,
		Timeout:     time.Minute,
		IsFailure:   BreakerFailure,
	})
	c := newTestClient(t, srv.URL, breaker)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.List(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", breaker.State())
	assert.False(t, BreakerFailure(fmt.Errorf("list: %w", context.Canceled)))
	assert.True(t, BreakerFailure(apperrors.Network(errors.New("refused"))))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(t, srv.URL, nil).Ping(context.Background()))
}
