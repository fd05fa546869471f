package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

func queryContext(rawQuery string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/patients?"+rawQuery, nil)
	return c
}

func TestParseListQuery(t *testing.T) {
	q, err := ParseListQuery(queryContext("q=Ion&gender=Male&min_age=30&max_age=50&sort=name&order=DESC&has_observations=true&from=2024-01-01&to=2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, "Ion", q.Search)
	assert.Equal(t, "Male", q.Criteria.Gender)
	assert.Equal(t, 30, *q.Criteria.MinAge)
	assert.Equal(t, 50, *q.Criteria.MaxAge)
	assert.Equal(t, model.SortByName, q.SortBy)
	assert.Equal(t, model.SortDesc, q.Order)
	assert.True(t, *q.Criteria.HasObservations)
	assert.Equal(t, model.DateFieldUpdatedAt, q.Criteria.DateField)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *q.Criteria.From)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *q.Criteria.To)
}

func TestParseListQueryDefaults(t *testing.T) {
	q, err := ParseListQuery(queryContext(""))
	require.NoError(t, err)

	assert.Equal(t, model.SortAsc, q.Order)
	assert.Nil(t, q.Criteria.MinAge)
	assert.Nil(t, q.Criteria.From)
	assert.Nil(t, q.Criteria.HasObservations)
}

func TestParseListQueryRejects(t *testing.T) {
	for _, raw := range []string{
		"min_age=old",
		"order=sideways",
		"date_field=birthday",
		"from=yesterday",
		"has_observations=maybe",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseListQuery(queryContext(raw))
			assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation), "got %v", err)
		})
	}
}
