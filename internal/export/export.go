// Package export renders patient records as standalone HTML documents that
// word processors open as .doc files and browsers print to PDF.
package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	displayLayout  = "02.01.2006, 15:04"
	fileDateLayout = "2006-01-02"
)

type Format string

const (
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts the query values the UI sends. Empty means word.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "word", "doc", "docx":
		return FormatWord, nil
	case "pdf", "html":
		return FormatPDF, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unsupported export format %q", s))
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "text/html; charset=utf-8"
	}
	return "application/msword"
}

func (f Format) Extension() string {
	if f == FormatPDF {
		return ".html"
	}
	return ".doc"
}

type Renderer struct {
	now     func() time.Time
	loc     *time.Location
	patient *template.Template
	batch   *template.Template
}

// NewRenderer parses the embedded templates. Dates render in loc, UTC when nil.
func NewRenderer(now func() time.Time, loc *time.Location) (*Renderer, error) {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}

	patient, err := template.ParseFS(templateFS, "templates/patient.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse patient template: %w", err)
	}
	batch, err := template.ParseFS(templateFS, "templates/batch.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch template: %w", err)
	}

	return &Renderer{now: now, loc: loc, patient: patient, batch: batch}, nil
}

type observationView struct {
	Class     string
	Label     string
	Timestamp string
	Text      string
}

type patientView struct {
	GeneratedAt  string
	Patient      *model.PatientRecord
	Observations []observationView
}

type batchRow struct {
	Name      string
	Age       int
	Gender    string
	Phone     string
	LastVisit string
}

type batchView struct {
	GeneratedAt string
	Rows        []batchRow
}

// RenderPatientDocument renders one patient file with the given observations
// in the order given.
func (r *Renderer) RenderPatientDocument(p *model.PatientRecord, observations []model.Observation) (string, error) {
	if p == nil {
		return "", apperrors.Validation("patient is required")
	}

	view := patientView{
		GeneratedAt:  r.format(r.now()),
		Patient:      p,
		Observations: make([]observationView, 0, len(observations)),
	}
	for _, o := range observations {
		ov := observationView{
			Class:     "manual",
			Label:     "Manual observation",
			Timestamp: r.format(o.Timestamp),
			Text:      o.Text,
		}
		if o.Kind == model.ObservationTranscription {
			ov.Class = "transcription"
			ov.Label = "Audio transcription"
		}
		view.Observations = append(view.Observations, ov)
	}

	return r.execute(r.patient, view)
}

// RenderBatchDocument renders a summary table, one row per patient.
func (r *Renderer) RenderBatchDocument(patients []*model.PatientRecord) (string, error) {
	view := batchView{
		GeneratedAt: r.format(r.now()),
		Rows:        make([]batchRow, 0, len(patients)),
	}
	for _, p := range patients {
		if p == nil {
			continue
		}
		view.Rows = append(view.Rows, batchRow{
			Name:      p.Name,
			Age:       p.Age,
			Gender:    p.Gender,
			Phone:     p.Phone,
			LastVisit: r.format(p.UpdatedAt),
		})
	}

	return r.execute(r.batch, view)
}

var unsafeName = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// PatientFileName is Patient_<Name>_<date><ext>.
func (r *Renderer) PatientFileName(p *model.PatientRecord, format Format) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(p.Name), "_"), "_")
	if name == "" {
		name = "Unknown"
	}
	return "Patient_" + name + "_" + r.now().In(r.loc).Format(fileDateLayout) + format.Extension()
}

// BatchFileName is Patients_<date><ext>.
func (r *Renderer) BatchFileName(format Format) string {
	return "Patients_" + r.now().In(r.loc).Format(fileDateLayout) + format.Extension()
}

func (r *Renderer) format(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.In(r.loc).Format(displayLayout)
}

func (r *Renderer) execute(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
