package schedule

import (
	"time"

	"github.com/lojf/nextgen/core"
)

// Assignment sources. Synced rows are owned by the scheduling reconciliation
// and may be deleted by it; manual rows never are.
const (
	SourceManual = "manual"
	SourceSync   = "sync"
)

// ServiceSlot is one of the fixed ministry service times (e.g. Sunday 09:00).
type ServiceSlot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime string    `json:"start_time"` // time of day, "HH:MM"
	Capacity  int       `json:"capacity"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Assignment schedules a staff member (or an external volunteer booked through
// the scheduling SaaS) on a service slot for a given date.
type Assignment struct {
	ID            string    `json:"id"`
	ServiceSlotID string    `json:"service_slot_id"`
	Date          time.Time `json:"date"` // day only, UTC midnight
	StaffID       string    `json:"staff_id,omitempty"`
	StaffName     string    `json:"staff_name"`
	StaffEmail    string    `json:"staff_email"`
	Role          string    `json:"role"`
	Source        string    `json:"source"` // manual | sync

	// sync bookkeeping; zero for manual rows
	BookingID        string    `json:"booking_id,omitempty"`
	BookingUpdatedAt time.Time `json:"booking_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (a *Assignment) IsSynced() bool { return a.Source == SourceSync }

// UpdateServiceSlot defines what information may be provided to modify a ServiceSlot.
type UpdateServiceSlot struct {
	Name      string `json:"name"`
	StartTime string `json:"start_time" validate:"omitempty,slottime"`
	Capacity  *int   `json:"capacity" validate:"omitempty,min=0"`
	IsActive  *bool  `json:"is_active"`
}

func (us *UpdateServiceSlot) Validate() error {
	us.Name = core.CleanString(us.Name)
	us.StartTime = core.CleanString(us.StartTime)
	return core.Validate.Struct(us)
}

// NewAssignment contains information needed to schedule a staff member manually.
type NewAssignment struct {
	ServiceSlotID string    `json:"service_slot_id" validate:"required"`
	Date          time.Time `json:"date" validate:"required"`
	StaffID       string    `json:"staff_id" validate:"required"`
	Role          string    `json:"role"`
}

func (na *NewAssignment) Validate() error {
	na.Role = core.CleanString(na.Role)
	return core.Validate.Struct(na)
}

type QueryFilter struct {
	ServiceSlotID string    `query:"service_slot_id"`
	StaffID       string    `query:"staff_id"`
	Source        string    `query:"source"`
	DateFrom      time.Time `query:"date_from"`
	DateTo        time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ServiceSlotID == "" && qf.StaffID == "" && qf.Source == "" && qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

// Booking is a raw booking as returned by the scheduling SaaS.
type Booking struct {
	ID             string
	StartsAt       time.Time
	UpdatedAt      time.Time
	OrganizerEmail string
	Attendees      []Attendee
}

type Attendee struct {
	Name  string
	Email string
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
}
