// Package recorder owns the microphone for the lifetime of one dictation.
//
// A Recorder moves through Idle, Recording and Stopped. It holds at most one
// device handle, buffers fragments in arrival order while recording, and on
// Stop assembles them into a single WAV capture.
package recorder

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

type Config struct {
	Device DeviceConfig
	// ChunkSize is the read size for one buffered fragment.
	ChunkSize int
	// MaxDuration stops a recording automatically. Zero disables it.
	MaxDuration time.Duration
}

// Status is a snapshot for the UI.
type Status struct {
	State           State         `json:"state"`
	Elapsed         time.Duration `json:"elapsed"`
	HasCapture      bool          `json:"hasCapture"`
	CaptureDuration time.Duration `json:"captureDuration,omitempty"`
	Error           string        `json:"error,omitempty"`
}

type Recorder struct {
	device  Device
	cfg     Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.Mutex
	state     State
	session   uint64
	stream    Stream
	cancel    context.CancelFunc
	readDone  chan struct{}
	maxTimer  *time.Timer
	startedAt time.Time
	result    *model.AudioCapture
	lastErr   error

	// bufMu guards the fragments so the reader never contends with Stop,
	// which holds mu while it waits for the reader to drain.
	bufMu   sync.Mutex
	chunks  [][]byte
	readErr error
}

func New(device Device, cfg Config, log *logger.Logger, m *metrics.Metrics) *Recorder {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	if cfg.Device.SampleRate <= 0 {
		cfg.Device.SampleRate = 44100
	}
	if cfg.Device.Channels <= 0 {
		cfg.Device.Channels = 1
	}
	return &Recorder{
		device:  device,
		cfg:     cfg,
		logger:  log,
		metrics: m,
		now:     time.Now,
		state:   StateIdle,
	}
}

// Start acquires the microphone and begins buffering. Calling it while
// already recording does nothing. Starting from Stopped drops the previous
// capture.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		return nil
	}

	r.result = nil
	r.lastErr = nil
	r.resetBuffer()

	// The handle outlives the request that opened it.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := r.device.Open(sessionCtx, r.cfg.Device)
	if err != nil {
		cancel()
		r.state = StateIdle
		r.lastErr = apperrors.Device(err)
		r.metrics.Recordings.WithLabelValues("device_error").Inc()
		r.logger.Error(err, "failed to open audio device")
		return r.lastErr
	}

	r.session++
	r.stream = stream
	r.cancel = cancel
	r.readDone = make(chan struct{})
	r.startedAt = r.now()
	r.state = StateRecording

	go r.pump(stream, r.readDone)

	if r.cfg.MaxDuration > 0 {
		session := r.session
		r.maxTimer = time.AfterFunc(r.cfg.MaxDuration, func() {
			r.autoStop(session)
		})
	}

	r.metrics.Recordings.WithLabelValues("started").Inc()
	r.logger.Info("recording started", "sample_rate", r.cfg.Device.SampleRate, "channels", r.cfg.Device.Channels)
	return nil
}

// Stop finalises the buffered audio. It returns nil, nil unless recording.
func (r *Recorder) Stop() (*model.AudioCapture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, nil
	}
	return r.stopLocked("stopped")
}

func (r *Recorder) autoStop(session uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording || r.session != session {
		return
	}
	if _, err := r.stopLocked("auto_stopped"); err != nil {
		r.logger.Error(err, "failed to stop recording at max duration")
		return
	}
	r.logger.Info("recording reached max duration", "max_duration", r.cfg.MaxDuration.String())
}

func (r *Recorder) stopLocked(outcome string) (*model.AudioCapture, error) {
	if err := r.releaseLocked(); err != nil {
		r.logger.Error(err, "audio device reported an error on release")
	}

	r.bufMu.Lock()
	pcm := concat(r.chunks)
	readErr := r.readErr
	r.bufMu.Unlock()

	if readErr != nil {
		r.logger.Error(readErr, "audio stream ended with an error", "bytes", len(pcm))
	}

	data, duration, err := encodeWAV(pcm, r.cfg.Device.SampleRate, r.cfg.Device.Channels)
	if err != nil {
		r.state = StateIdle
		r.lastErr = err
		r.resetBuffer()
		return nil, err
	}

	r.result = &model.AudioCapture{
		Data:       data,
		MIMEType:   wavMIMEType,
		Duration:   duration,
		SampleRate: r.cfg.Device.SampleRate,
		Channels:   r.cfg.Device.Channels,
	}
	r.state = StateStopped
	r.resetBuffer()

	r.metrics.Recordings.WithLabelValues(outcome).Inc()
	r.metrics.RecordedDuration.Observe(duration.Seconds())
	r.logger.Info("recording stopped", "duration", duration.String(), "bytes", len(data))

	return r.result, nil
}

// releaseLocked closes the handle and waits for the reader to drain.
func (r *Recorder) releaseLocked() error {
	if r.maxTimer != nil {
		r.maxTimer.Stop()
		r.maxTimer = nil
	}
	if r.stream == nil {
		return nil
	}

	err := r.stream.Close()
	r.cancel()
	<-r.readDone

	r.stream = nil
	r.cancel = nil
	r.readDone = nil
	return err
}

// Cleanup releases any held handle and returns to Idle, whatever the state.
func (r *Recorder) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.releaseLocked()
	r.resetBuffer()
	r.result = nil
	r.state = StateIdle
	if err != nil {
		r.logger.Error(err, "audio device reported an error on cleanup")
	}
	return err
}

// Discard drops the finished capture once it has been submitted.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.result != nil {
		r.metrics.Recordings.WithLabelValues("discarded").Inc()
	}
	r.result = nil
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the last finished capture, or nil.
func (r *Recorder) Result() *model.AudioCapture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

func (r *Recorder) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{State: r.state}
	if r.state == StateRecording {
		st.Elapsed = r.now().Sub(r.startedAt)
	}
	if r.result != nil {
		st.HasCapture = true
		st.CaptureDuration = r.result.Duration
		if r.state == StateStopped {
			st.Elapsed = r.result.Duration
		}
	}
	if r.lastErr != nil {
		st.Error = apperrors.UserMessage(r.lastErr)
	}
	return st
}

func (r *Recorder) pump(stream Stream, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.bufMu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.bufMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.bufMu.Lock()
				r.readErr = err
				r.bufMu.Unlock()
			}
			return
		}
	}
}

func (r *Recorder) resetBuffer() {
	r.bufMu.Lock()
	r.chunks = nil
	r.readErr = nil
	r.bufMu.Unlock()
}

func concat(chunks [][]byte) []byte {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
