package models

import (
	"database/sql"
	"time"
)

// AppointmentStatus tracks the field-service lifecycle of a visit.
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusDispatched AppointmentStatus = "dispatched"
	StatusArrived    AppointmentStatus = "arrived"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusClosed     AppointmentStatus = "closed"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
)

// AppointmentPriority orders visits for operator attention.
type AppointmentPriority string

const (
	PriorityLow    AppointmentPriority = "low"
	PriorityMedium AppointmentPriority = "medium"
	PriorityHigh   AppointmentPriority = "high"
	PriorityUrgent AppointmentPriority = "urgent"
)

// Geocoordinate is an optional lat/lng pair attached to appointments and
// resources. Its absence never blocks layout or mutation.
type Geocoordinate struct {
	Lat float64 `db:"lat" json:"lat"`
	Lng float64 `db:"lng" json:"lng"`
}

// Appointment is a time-bound task assignable to a resource. The remote data
// source owns it; the board holds a locally cached, possibly stale copy.
type Appointment struct {
	ID         string              `db:"id" json:"id"`
	ResourceID sql.NullString      `db:"resource_id" json:"resource_id,omitempty"`
	Title      string              `db:"title" json:"title"`
	StartTime  time.Time           `db:"start_time" json:"start_time"`
	EndTime    time.Time           `db:"end_time" json:"end_time"`
	Status     AppointmentStatus   `db:"status" json:"status"`
	Priority   AppointmentPriority `db:"priority" json:"priority"`
	Lat        sql.NullFloat64     `db:"lat" json:"-"`
	Lng        sql.NullFloat64     `db:"lng" json:"-"`
	Recurrence sql.NullString      `db:"recurrence" json:"recurrence,omitempty"`
	ParentID   sql.NullString      `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

// Unassigned reports whether the appointment sits in the unassigned pool.
func (a *Appointment) Unassigned() bool {
	return !a.ResourceID.Valid || a.ResourceID.String == ""
}

// Coordinate returns the appointment's geocoordinate when both fields are set.
func (a *Appointment) Coordinate() (Geocoordinate, bool) {
	if !a.Lat.Valid || !a.Lng.Valid {
		return Geocoordinate{}, false
	}
	return Geocoordinate{Lat: a.Lat.Float64, Lng: a.Lng.Float64}, true
}

// Duration returns the scheduled duration of the appointment.
func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// AppointmentFilter describes query params for listing appointments.
type AppointmentFilter struct {
	ResourceID string
	Status     string
	Priority   string
	From       time.Time
	To         time.Time
	Unassigned bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Pagination describes list paging metadata returned in the envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
