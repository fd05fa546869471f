package model

import "time"

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable fields, named as on PatientRecord.
const (
	SortByName      = "name"
	SortByAge       = "age"
	SortByGender    = "gender"
	SortByEmail     = "email"
	SortByPhone     = "phone"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
)

// Date fields a Criteria range can apply to.
const (
	DateFieldCreatedAt = "createdAt"
	DateFieldUpdatedAt = "updatedAt"
)

// Criteria narrows an already searched patient list. Zero values match all.
type Criteria struct {
	Name            string     `json:"name,omitempty"`
	MinAge          *int       `json:"minAge,omitempty"`
	MaxAge          *int       `json:"maxAge,omitempty"`
	Gender          string     `json:"gender,omitempty"`
	DateField       string     `json:"dateField,omitempty"`
	From            *time.Time `json:"from,omitempty"`
	To              *time.Time `json:"to,omitempty"`
	HasObservations *bool      `json:"hasObservations,omitempty"`
}

// ListQuery drives the search, filter, sort pipeline of a patient listing.
type ListQuery struct {
	Search   string    `json:"search,omitempty"`
	Criteria Criteria  `json:"criteria"`
	SortBy   string    `json:"sortBy,omitempty"`
	Order    SortOrder `json:"order,omitempty"`
}
