package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/staff"
)

var (
	// errors
	ErrSlotNotFound       = errors.New("service slot not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAlreadyAssigned    = errors.New("staff member is already assigned to this service")
)

type (
	Repository interface {
		QueryServiceSlots(ctx context.Context, activeOnly bool) ([]ServiceSlot, error)
		GetServiceSlotByID(ctx context.Context, id string) (ServiceSlot, error)
		UpdateServiceSlot(ctx context.Context, slot ServiceSlot, isActive *bool) (ServiceSlot, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignmentsByID(ctx context.Context, ids ...string) error
		// QuerySyncedAssignments returns all rows owned by the scheduling sync.
		QuerySyncedAssignments(ctx context.Context) ([]Assignment, error)
		DeleteSyncedAssignmentsByBookingID(ctx context.Context, bookingIDs ...string) error
	}

	// BookingSource lists bookings from the external scheduling SaaS.
	BookingSource interface {
		ListBookings(ctx context.Context, from, to time.Time) ([]Booking, error)
	}

	Service struct {
		repo     Repository
		staffSvc *staff.Service
		bookings BookingSource
		conf     *core.Config
	}
)

func NewService(repo Repository, staffSvc *staff.Service, bookings BookingSource, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		staffSvc: staffSvc,
		bookings: bookings,
		conf:     conf,
	}
}

// Slots

func (svc *Service) QuerySlots(ctx context.Context, activeOnly bool) ([]ServiceSlot, error) {
	return svc.repo.QueryServiceSlots(ctx, activeOnly)
}

func (svc *Service) GetSlotByID(ctx context.Context, id string) (ServiceSlot, error) {
	return svc.repo.GetServiceSlotByID(ctx, id)
}

func (svc *Service) UpdateSlot(ctx context.Context, id string, us UpdateServiceSlot) (ServiceSlot, error) {
	orig, err := svc.repo.GetServiceSlotByID(ctx, id)
	if err != nil {
		return ServiceSlot{}, err
	}

	slot := ServiceSlot{
		ID:        id,
		Name:      us.Name,
		StartTime: us.StartTime,
		Capacity:  orig.Capacity,
		UpdatedAt: time.Now().UTC(),
	}
	if slot.Name == "" {
		slot.Name = orig.Name
	}
	if slot.StartTime == "" {
		slot.StartTime = orig.StartTime
	}
	if us.Capacity != nil {
		slot.Capacity = *us.Capacity
	}
	return svc.repo.UpdateServiceSlot(ctx, slot, us.IsActive)
}

// Assignments

func (svc *Service) CreateAssignment(ctx context.Context, na NewAssignment) (Assignment, error) {
	if _, err := svc.repo.GetServiceSlotByID(ctx, na.ServiceSlotID); err != nil {
		return Assignment{}, err
	}
	stf, err := svc.staffSvc.GetByID(ctx, na.StaffID)
	if err != nil {
		if err == staff.ErrNotFound {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "staff_id", Error: err.Error()})
		}
		return Assignment{}, err
	}

	now := time.Now().UTC()
	a := Assignment{
		ServiceSlotID: na.ServiceSlotID,
		Date:          truncateToDay(na.Date),
		StaffID:       stf.ID,
		StaffName:     stf.Name,
		StaffEmail:    stf.Email,
		Role:          na.Role,
		Source:        SourceManual,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *Service) QueryAssignments(ctx context.Context, filter *QueryFilter) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter,
		core.DBOrdering{Field: "date", Ascending: true},
		core.DBOrdering{Field: "staff_name", Ascending: true},
	)
}

func (svc *Service) GetAssignmentByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *Service) DeleteAssignments(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAssignmentsByID(ctx, ids...)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
