package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

var clock = time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(func() time.Time { return clock }, time.UTC)
	require.NoError(t, err)
	return r
}

func minimalPatient() *model.PatientRecord {
	return &model.PatientRecord{
		ID:           "1",
		PatientInput: model.PatientInput{Name: "Maria Ionescu", Age: 32, Gender: "Female"},
		CreatedAt:    clock.Add(-48 * time.Hour),
		UpdatedAt:    clock.Add(-24 * time.Hour),
	}
}

func TestPatientDocumentPlaceholders(t *testing.T) {
	r := newTestRenderer(t)

	doc, err := r.RenderPatientDocument(minimalPatient(), nil)
	require.NoError(t, err)

	assert.Contains(t, doc, "Maria Ionescu")
	assert.Contains(t, doc, "32 years old")
	assert.Contains(t, doc, `<span class="info-label">Phone:</span> N/A`)
	assert.Contains(t, doc, `<span class="info-label">Blood Type:</span> N/A`)
	assert.Contains(t, doc, "No known allergies")
	assert.Contains(t, doc, "No medications")
	assert.Equal(t, 2, strings.Count(doc, "No information available"))
	assert.Contains(t, doc, "Generated on: 14.05.2026, 10:30")
	assert.NotContains(t, doc, "OBSERVATIONS AND TRANSCRIPTIONS")
}

func TestPatientDocumentFilledFields(t *testing.T) {
	r := newTestRenderer(t)
	p := minimalPatient()
	p.Phone = "0798765432"
	p.Allergies = "Penicillin"

	doc, err := r.RenderPatientDocument(p, nil)
	require.NoError(t, err)

	assert.Contains(t, doc, "0798765432")
	assert.Contains(t, doc, "Penicillin")
	assert.NotContains(t, doc, "No known allergies")
}

func TestPatientDocumentObservations(t *testing.T) {
	r := newTestRenderer(t)
	obs := []model.Observation{
		{ID: "a", Text: "first note", Timestamp: clock.Add(-2 * time.Hour), Kind: model.ObservationManual},
		{ID: "b", Text: "dictated text", Timestamp: clock.Add(-time.Hour), Kind: model.ObservationTranscription},
	}

	doc, err := r.RenderPatientDocument(minimalPatient(), obs)
	require.NoError(t, err)

	first := strings.Index(doc, "first note")
	second := strings.Index(doc, "dictated text")
	require.True(t, first > 0 && second > 0)
	assert.Less(t, first, second)
	assert.Contains(t, doc, `class="observation manual"`)
	assert.Contains(t, doc, `class="observation transcription"`)
	assert.Contains(t, doc, "14.05.2026, 08:30 - Manual observation")
	assert.Contains(t, doc, "14.05.2026, 09:30 - Audio transcription")
}

func TestPatientDocumentEscapesMarkup(t *testing.T) {
	r := newTestRenderer(t)
	p := minimalPatient()
	p.Name = "<script>alert(1)</script>"
	obs := []model.Observation{{Text: "<b>bold</b>", Timestamp: clock, Kind: model.ObservationManual}}

	doc, err := r.RenderPatientDocument(p, obs)
	require.NoError(t, err)

	assert.NotContains(t, doc, "<script>alert(1)</script>")
	assert.NotContains(t, doc, "<b>bold</b>")
	assert.Contains(t, doc, "&lt;b&gt;bold&lt;/b&gt;")
}

func TestPatientDocumentIsDeterministic(t *testing.T) {
	r := newTestRenderer(t)

	a, err := r.RenderPatientDocument(minimalPatient(), nil)
	require.NoError(t, err)
	b, err := r.RenderPatientDocument(minimalPatient(), nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = r.RenderPatientDocument(nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestBatchDocument(t *testing.T) {
	r := newTestRenderer(t)
	withPhone := minimalPatient()
	withPhone.Phone = "0711111111"
	other := &model.PatientRecord{
		ID:           "2",
		PatientInput: model.PatientInput{Name: "Ion Popescu", Age: 45, Gender: "Male"},
		UpdatedAt:    clock.Add(-72 * time.Hour),
	}

	doc, err := r.RenderBatchDocument([]*model.PatientRecord{withPhone, other})
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(doc, `class="patient-row"`))
	assert.Contains(t, doc, "<td>Maria Ionescu</td><td>32</td><td>Female</td><td>0711111111</td><td>13.05.2026, 10:30</td>")
	assert.Contains(t, doc, "<td>Ion Popescu</td><td>45</td><td>Male</td><td>N/A</td><td>11.05.2026, 10:30</td>")

	empty, err := r.RenderBatchDocument(nil)
	require.NoError(t, err)
	assert.NotContains(t, empty, "patient-row")
}

func TestFileNames(t *testing.T) {
	r := newTestRenderer(t)
	p := minimalPatient()
	p.Name = "  Maria   Ionescu/Pop "

	assert.Equal(t, "Patient_Maria_Ionescu_Pop_2026-05-14.doc", r.PatientFileName(p, FormatWord))
	assert.Equal(t, "Patient_Maria_Ionescu_Pop_2026-05-14.html", r.PatientFileName(p, FormatPDF))
	assert.Equal(t, "Patients_2026-05-14.doc", r.BatchFileName(FormatWord))
	assert.Equal(t, "Patients_2026-05-14.html", r.BatchFileName(FormatPDF))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatWord, "word": FormatWord, "DOCX": FormatWord, "pdf": FormatPDF} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xlsx")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	assert.Equal(t, "application/msword", FormatWord.ContentType())
	assert.Equal(t, "text/html; charset=utf-8", FormatPDF.ContentType())
}
