package models

import (
	"database/sql"
	"time"
)

// Resource is an entity (typically a technician) to which appointments are
// assigned. The set is static for the duration of a board session; creation
// and removal belong to external management.
type Resource struct {
	ID          string          `db:"id" json:"id"`
	DisplayName string          `db:"display_name" json:"display_name"`
	Color       sql.NullString  `db:"color" json:"color,omitempty"`
	Lat         sql.NullFloat64 `db:"lat" json:"-"`
	Lng         sql.NullFloat64 `db:"lng" json:"-"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Coordinate returns the resource's home geocoordinate when set.
func (r *Resource) Coordinate() (Geocoordinate, bool) {
	if !r.Lat.Valid || !r.Lng.Valid {
		return Geocoordinate{}, false
	}
	return Geocoordinate{Lat: r.Lat.Float64, Lng: r.Lng.Float64}, true
}

// ResourceFilter describes query params for listing resources.
type ResourceFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
