// Package transcription submits finished recordings to the speech service
// and maps its answer into a TranscriptionResult.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

const (
	// ProcessRecordingPath is the endpoint relative to the service base URL.
	ProcessRecordingPath = "/api/process-recording"

	fieldAudio    = "audio_file"
	fieldFields   = "fields_json"
	fieldFormType = "form_type"

	maxErrorBody = 64 << 10
)

// Config contains transcription client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a client. httpClient may be nil.
func NewClient(config Config, httpClient *http.Client, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("transcription base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     log,
		metrics:    m,
	}, nil
}

type fieldsPayload struct {
	Fields []string `json:"fields"`
}

type processResponse struct {
	RawTranscript string                 `json:"raw_transcript"`
	ParsedJSON    map[string]interface{} `json:"parsed_json"`
}

type errorResponse struct {
	Detail interface{} `json:"detail"`
}

// Submit posts one recording. It makes exactly one request and never retries.
func (c *Client) Submit(ctx context.Context, audio *model.AudioCapture, fields []string, formType string) (*model.TranscriptionResult, error) {
	if audio.Empty() {
		return nil, apperrors.Validation("audio recording is empty")
	}
	if len(fields) == 0 {
		return nil, apperrors.Validation("at least one field must be requested")
	}

	body, contentType, err := encodeRequest(audio, fields, formType)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+ProcessRecordingPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.TranscriptionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.TranscriptionRequests.WithLabelValues("network_error").Inc()
		c.logger.Error(err, "transcription request failed", "fields", len(fields))
		return nil, apperrors.Network(err)
	}
	defer resp.Body.Close()

	c.metrics.TranscriptionRequests.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readDetail(resp.Body)
		c.logger.Warn("transcription service rejected recording", "status", resp.StatusCode, "detail", detail)
		return nil, apperrors.Remote(resp.StatusCode, detail)
	}

	var out processResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Remote(resp.StatusCode, "malformed transcription response")
	}

	if out.ParsedJSON == nil {
		out.ParsedJSON = map[string]interface{}{}
	}

	c.logger.Info("recording transcribed",
		"duration", audio.Duration.String(),
		"fields", len(fields),
		"parsed", len(out.ParsedJSON))

	return &model.TranscriptionResult{
		RawText:      out.RawTranscript,
		ParsedFields: out.ParsedJSON,
	}, nil
}

func encodeRequest(audio *model.AudioCapture, fields []string, formType string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldAudio, fileName(audio.MIMEType)))
	header.Set("Content-Type", audio.MIMEType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}

	fieldsJSON, err := json.Marshal(fieldsPayload{Fields: fields})
	if err != nil {
		return nil, "", err
	}
	if err := writer.WriteField(fieldFields, string(fieldsJSON)); err != nil {
		return nil, "", err
	}

	if formType != "" {
		if err := writer.WriteField(fieldFormType, formType); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func fileName(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/wav"), strings.HasPrefix(mimeType, "audio/x-wav"):
		return "recording.wav"
	case strings.HasPrefix(mimeType, "audio/ogg"):
		return "recording.ogg"
	default:
		return "recording.webm"
	}
}

// readDetail pulls "detail" out of an error body. FastAPI validation errors
// carry a list there; those are flattened to their messages.
func readDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var er errorResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return ""
	}

	switch d := er.Detail.(type) {
	case string:
		return d
	case []interface{}:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]interface{}); ok {
				if msg, ok := m["msg"].(string); ok {
					msgs = append(msgs, msg)
				}
			}
		}
		return strings.Join(msgs, "; ")
	default:
		return ""
	}
}
