package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

const dateOnly = "2006-01-02"

// ParseListQuery reads the search, filter and sort parameters shared by the
// patient listing and the batch export.
func ParseListQuery(c *gin.Context) (model.ListQuery, error) {
	q := model.ListQuery{
		Search: c.Query("q"),
		SortBy: c.Query("sort"),
		Criteria: model.Criteria{
			Name:      c.Query("name"),
			Gender:    c.Query("gender"),
			DateField: c.DefaultQuery("date_field", model.DateFieldUpdatedAt),
		},
	}

	switch order := strings.ToLower(c.Query("order")); order {
	case "", string(model.SortAsc):
		q.Order = model.SortAsc
	case string(model.SortDesc):
		q.Order = model.SortDesc
	default:
		return q, apperrors.Validation(fmt.Sprintf("order must be one of: %s %s", model.SortAsc, model.SortDesc))
	}

	if q.Criteria.DateField != model.DateFieldCreatedAt && q.Criteria.DateField != model.DateFieldUpdatedAt {
		return q, apperrors.Validation(fmt.Sprintf("date_field must be one of: %s %s", model.DateFieldCreatedAt, model.DateFieldUpdatedAt))
	}

	var err error
	if q.Criteria.MinAge, err = intParam(c, "min_age"); err != nil {
		return q, err
	}
	if q.Criteria.MaxAge, err = intParam(c, "max_age"); err != nil {
		return q, err
	}
	if q.Criteria.From, err = timeParam(c, "from", false); err != nil {
		return q, err
	}
	if q.Criteria.To, err = timeParam(c, "to", true); err != nil {
		return q, err
	}

	if raw, ok := c.GetQuery("has_observations"); ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, apperrors.Validation("has_observations must be true or false")
		}
		q.Criteria.HasObservations = &v
	}

	return q, nil
}

func intParam(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("%s must be a number", name))
	}
	return &v, nil
}

// timeParam accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func timeParam(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
