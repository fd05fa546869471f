package store

import (
	"sort"
	"strings"
	"time"

	"github.com/jwalitptl/scribe/internal/model"
)

// Search keeps records whose name, contact or medical text contains query,
// ignoring case. A blank query keeps everything.
func Search(records []*model.PatientRecord, query string) []*model.PatientRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}

	out := make([]*model.PatientRecord, 0, len(records))
	for _, r := range records {
		for _, field := range []string{r.Name, r.Phone, r.Email, r.MedicalHistory, r.Allergies, r.CurrentMedications} {
			if strings.Contains(strings.ToLower(field), query) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Filter applies every set criterion. Unset criteria match all records.
func Filter(records []*model.PatientRecord, c model.Criteria) []*model.PatientRecord {
	name := strings.ToLower(strings.TrimSpace(c.Name))
	gender := strings.TrimSpace(c.Gender)

	out := make([]*model.PatientRecord, 0, len(records))
	for _, r := range records {
		if name != "" && !strings.Contains(strings.ToLower(r.Name), name) {
			continue
		}
		if c.MinAge != nil && r.Age < *c.MinAge {
			continue
		}
		if c.MaxAge != nil && r.Age > *c.MaxAge {
			continue
		}
		if gender != "" && r.Gender != gender {
			continue
		}
		if c.From != nil || c.To != nil {
			at := dateOf(r, c.DateField)
			if c.From != nil && at.Before(*c.From) {
				continue
			}
			if c.To != nil && at.After(*c.To) {
				continue
			}
		}
		if c.HasObservations != nil && r.HasObservations() != *c.HasObservations {
			continue
		}
		out = append(out, r)
	}
	return out
}

func dateOf(r *model.PatientRecord, field string) time.Time {
	if field == model.DateFieldCreatedAt || r.UpdatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.UpdatedAt
}

// SortRecords orders records in place. Unknown fields leave the order as is.
func SortRecords(records []*model.PatientRecord, by string, order model.SortOrder) {
	less := lessFunc(by)
	if less == nil {
		return
	}
	desc := order == model.SortDesc
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

func lessFunc(by string) func(a, b *model.PatientRecord) bool {
	text := func(get func(*model.PatientRecord) string) func(a, b *model.PatientRecord) bool {
		return func(a, b *model.PatientRecord) bool {
			return strings.ToLower(get(a)) < strings.ToLower(get(b))
		}
	}

	switch by {
	case model.SortByName:
		return text(func(p *model.PatientRecord) string { return p.Name })
	case model.SortByGender:
		return text(func(p *model.PatientRecord) string { return p.Gender })
	case model.SortByEmail:
		return text(func(p *model.PatientRecord) string { return p.Email })
	case model.SortByPhone:
		return text(func(p *model.PatientRecord) string { return p.Phone })
	case model.SortByAge:
		return func(a, b *model.PatientRecord) bool { return a.Age < b.Age }
	case model.SortByCreatedAt:
		return func(a, b *model.PatientRecord) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case model.SortByUpdatedAt:
		return func(a, b *model.PatientRecord) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return nil
	}
}
