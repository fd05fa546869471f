package recorder

import (
	"context"
	"io"
)

// DeviceConfig selects the capture input and the PCM layout it produces.
type DeviceConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// Device hands out exclusive microphone handles.
type Device interface {
	Open(ctx context.Context, cfg DeviceConfig) (Stream, error)
}

// Stream yields signed 16-bit little-endian PCM until closed.
// Close releases the microphone and must be safe to call more than once.
type Stream interface {
	io.ReadCloser
}
