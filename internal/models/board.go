package models

import "time"

// PositionedAppointment is the layout engine's output for one appointment:
// a left/width box on the linear time scale plus lane stacking data. Derived
// and ephemeral; recomputed whenever the appointment set or buffer window
// changes, never persisted.
type PositionedAppointment struct {
	Appointment Appointment `json:"appointment"`
	Left        float64     `json:"left"`
	Width       float64     `json:"width"`
	Lane        int         `json:"lane"`
	HasOverlap  bool        `json:"has_overlap"`
	// OverlapStart/OverlapEnd bound the union of this appointment's pairwise
	// intersections with its neighbours, for rendering one shaded region.
	OverlapStart float64 `json:"overlap_start,omitempty"`
	OverlapEnd   float64 `json:"overlap_end,omitempty"`
}

// Right returns the right edge of the positioned box.
func (p *PositionedAppointment) Right() float64 {
	return p.Left + p.Width
}

// ResourceLane pairs a resource with its positioned appointments.
type ResourceLane struct {
	Resource     Resource                `json:"resource"`
	Appointments []PositionedAppointment `json:"appointments"`
	LaneCount    int                     `json:"lane_count"`
	LaneHeight   float64                 `json:"lane_height"`
	TravelGaps   []TravelGap             `json:"travel_gaps,omitempty"`
}

// TravelGap annotates the idle span between two consecutive appointments on
// the same resource, same calendar day. Only defined for gaps of at least
// fifteen minutes.
type TravelGap struct {
	FromAppointmentID      string  `json:"from_appointment_id"`
	ToAppointmentID        string  `json:"to_appointment_id"`
	GapMinutes             int     `json:"gap_minutes"`
	EstimatedTravelMinutes int     `json:"estimated_travel_minutes"`
	Left                   float64 `json:"left"`
	Width                  float64 `json:"width"`
	IsTight                bool    `json:"is_tight"`
	IsInsufficient         bool    `json:"is_insufficient"`
}

// BufferWindow bounds the materialized time range. The focused date must lie
// strictly inside the window with a guard margin from either edge.
type BufferWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w BufferWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DragOrigin distinguishes where a dragged appointment came from.
type DragOrigin string

const (
	OriginExisting       DragOrigin = "existing"
	OriginUnassignedPool DragOrigin = "unassigned-pool"
)

// DragState is the drag session's finite-state-machine state.
type DragState string

const (
	DragIdle       DragState = "idle"
	DragActive     DragState = "active"
	DragPreviewing DragState = "previewing"
	DragCommitting DragState = "committing"
)

// PointerPosition is a viewport-relative pointer coordinate.
type PointerPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DragSnapshot freezes the dragged appointment's fields at drag start. It is
// authoritative for the rest of the session even if the underlying collection
// mutates concurrently.
type DragSnapshot struct {
	AppointmentID string        `json:"appointment_id"`
	ResourceID    string        `json:"resource_id"`
	Origin        DragOrigin    `json:"origin"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Duration      time.Duration `json:"duration"`
}

// DragPreview is the operator-visible candidate placement, updated only when
// the computed (time, resource) pair actually changes.
type DragPreview struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Label      string    `json:"label"`
}

// CommitKind classifies a drop into exactly one mutation.
type CommitKind string

const (
	CommitReorderPool CommitKind = "reorder-pool"
	CommitUnassign    CommitKind = "unassign"
	CommitAssign      CommitKind = "assign"
	CommitMove        CommitKind = "move"
	CommitNone        CommitKind = "none"
)

// RollbackSnapshot captures the fields an optimistic apply is about to
// change. At most one live snapshot exists per appointment id; a newer drag
// on the same appointment overwrites any prior snapshot.
type RollbackSnapshot struct {
	AppointmentID string    `json:"appointment_id"`
	ResourceID    string    `json:"resource_id"`
	Unassigned    bool      `json:"unassigned"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	// Version increments on every optimistic apply for the id, so a late
	// failure from an older mutation cannot revert a newer successful one.
	Version uint64 `json:"version"`
}

// BoardEvent is published on the change-notification stream after every
// accepted mutation so other board sessions reconcile their cached state.
type BoardEvent struct {
	Kind          string    `json:"kind"`
	AppointmentID string    `json:"appointment_id"`
	ResourceID    string    `json:"resource_id,omitempty"`
	Start         time.Time `json:"start,omitempty"`
	End           time.Time `json:"end,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
