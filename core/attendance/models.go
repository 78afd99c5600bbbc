package attendance

import (
	"time"

	"github.com/lojf/nextgen/core"
)

// Statuses
const (
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
)

type Attendance struct {
	ID            string    `json:"id"`
	ChildID       string    `json:"child_id"`
	ChildName     string    `json:"child_name"`
	ChildFormalID string    `json:"child_formal_id"`
	ServiceSlotID string    `json:"service_slot_id"`
	Date          time.Time `json:"date"` // day only, UTC midnight
	Status        string    `json:"status"`

	CheckInAt    time.Time `json:"check_in_at"` // UTC
	CheckInByID  string    `json:"check_in_by_id"`
	GuardianID   string    `json:"guardian_id"`
	CheckOutAt   time.Time `json:"check_out_at,omitempty"` // UTC, zero until checked out
	CheckOutByID string    `json:"check_out_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// CheckIn contains information needed to check a child into a service.
type CheckIn struct {
	ChildID       string `json:"child_id" validate:"required"`
	ServiceSlotID string `json:"service_slot_id" validate:"required"`
	GuardianID    string `json:"guardian_id" validate:"required"`
}

func (ci CheckIn) Validate() error { return core.Validate.Struct(ci) }

// CheckOut releases a checked-in child to a guardian.
type CheckOut struct {
	AttendanceID string `json:"attendance_id" validate:"required"`
}

func (co CheckOut) Validate() error { return core.Validate.Struct(co) }

type QueryFilter struct {
	ChildID       string    `query:"child_id"`
	ServiceSlotID string    `query:"service_slot_id"`
	Status        string    `query:"status"`
	DateFrom      time.Time `query:"date_from"`
	DateTo        time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ChildID == "" && qf.ServiceSlotID == "" && qf.Status == "" && qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

// Weekly report

type SlotTotal struct {
	ServiceSlotID string `json:"service_slot_id"`
	SlotName      string `json:"slot_name"`
	CheckIns      int    `json:"check_ins"`
	CheckOuts     int    `json:"check_outs"`
}

type DayCount struct {
	Date     time.Time `json:"date"`
	CheckIns int       `json:"check_ins"`
}

type WeeklyReport struct {
	WeekStart      time.Time   `json:"week_start"` // Monday, UTC midnight
	WeekEnd        time.Time   `json:"week_end"`   // exclusive
	TotalCheckIns  int         `json:"total_check_ins"`
	UniqueChildren int         `json:"unique_children"`
	NewChildren    int         `json:"new_children"`
	PerSlot        []SlotTotal `json:"per_slot"`
	PerDay         []DayCount  `json:"per_day"`
}
