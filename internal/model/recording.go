package model

import "time"

// AudioCapture is a finished recording waiting to be submitted.
type AudioCapture struct {
	Data       []byte        `json:"-"`
	MIMEType   string        `json:"mimeType"`
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
}

func (a *AudioCapture) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// TranscriptionResult is what the speech service extracted from a capture.
type TranscriptionResult struct {
	RawText      string                 `json:"rawText"`
	ParsedFields map[string]interface{} `json:"parsedFields"`
}
