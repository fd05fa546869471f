package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth       = 16
	bytesPerSample = bitDepth / 8
	pcmFormat      = 1
	wavMIMEType    = "audio/wav"
)

// encodeWAV wraps s16le PCM in a RIFF/WAVE container. A trailing partial
// frame is dropped and no audio at all yields no bytes.
func encodeWAV(pcm []byte, sampleRate, channels int) ([]byte, time.Duration, error) {
	frameSize := bytesPerSample * channels
	pcm = pcm[:len(pcm)-len(pcm)%frameSize]
	if len(pcm) == 0 {
		return nil, 0, nil
	}

	samples := make([]int, len(pcm)/bytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:])))
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, sampleRate, bitDepth, channels, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, 0, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, 0, fmt.Errorf("failed to finalize wav: %w", err)
	}

	frames := len(pcm) / frameSize
	duration := time.Duration(frames) * time.Second / time.Duration(sampleRate)
	return out.Bytes(), duration, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch the header sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	s.pos = int(abs)
	return abs, nil
}

func (s *seekBuffer) Bytes() []byte {
	return s.buf
}
