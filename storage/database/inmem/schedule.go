package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

// Slots

func (repo *scheduleRepository) QueryServiceSlots(ctx context.Context, activeOnly bool) ([]schedule.ServiceSlot, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	slots := make([]schedule.ServiceSlot, 0, len(repo.db.slots))
	for _, slot := range repo.db.slots {
		if activeOnly && !slot.IsActive {
			continue
		}
		slots = append(slots, *slot)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots, nil
}

func (repo *scheduleRepository) GetServiceSlotByID(ctx context.Context, id string) (schedule.ServiceSlot, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if slot, ok := repo.db.slots[id]; ok {
		return *slot, nil
	}
	return schedule.ServiceSlot{}, schedule.ErrSlotNotFound
}

func (repo *scheduleRepository) UpdateServiceSlot(ctx context.Context, slot schedule.ServiceSlot, isActive *bool) (schedule.ServiceSlot, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.slots[slot.ID]
	if !ok {
		return schedule.ServiceSlot{}, schedule.ErrSlotNotFound
	}
	orig.Name = slot.Name
	orig.StartTime = slot.StartTime
	orig.Capacity = slot.Capacity
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = slot.UpdatedAt
	return *orig, nil
}

// Assignments

func (repo *scheduleRepository) CreateAssignment(ctx context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if a.Source == schedule.SourceManual && a.StaffID != "" {
		for _, other := range repo.db.assignments {
			if other.ServiceSlotID == a.ServiceSlotID && other.StaffID == a.StaffID && other.Date.Equal(a.Date) {
				return schedule.Assignment{}, schedule.ErrAlreadyAssigned
			}
		}
	}

	a.ID = uuid.New().String()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *scheduleRepository) QueryAssignments(ctx context.Context, filter *schedule.QueryFilter, ordering ...core.DBOrdering) ([]schedule.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]schedule.Assignment, 0, len(repo.db.assignments))
	for _, a := range repo.db.assignments {
		if filter != nil {
			if filter.ServiceSlotID != "" && a.ServiceSlotID != filter.ServiceSlotID {
				continue
			}
			if filter.StaffID != "" && a.StaffID != filter.StaffID {
				continue
			}
			if filter.Source != "" && a.Source != filter.Source {
				continue
			}
			if !filter.DateFrom.IsZero() && a.Date.Before(filter.DateFrom.UTC()) {
				continue
			}
			if !filter.DateTo.IsZero() && a.Date.After(filter.DateTo.UTC()) {
				continue
			}
		}
		assignments = append(assignments, *a)
	}

	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].Date.Equal(assignments[j].Date) {
			return assignments[i].Date.Before(assignments[j].Date)
		}
		return assignments[i].StaffName < assignments[j].StaffName
	})
	return assignments, nil
}

func (repo *scheduleRepository) GetAssignmentByID(ctx context.Context, id string) (schedule.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return schedule.Assignment{}, schedule.ErrAssignmentNotFound
}

func (repo *scheduleRepository) UpdateAssignment(ctx context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return schedule.Assignment{}, schedule.ErrAssignmentNotFound
	}
	orig.ServiceSlotID = a.ServiceSlotID
	orig.Date = a.Date
	orig.StaffID = a.StaffID
	orig.StaffName = a.StaffName
	orig.StaffEmail = a.StaffEmail
	orig.Role = a.Role
	orig.BookingUpdatedAt = a.BookingUpdatedAt
	orig.UpdatedAt = a.UpdatedAt
	return *orig, nil
}

func (repo *scheduleRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.assignments, id)
	}
	return nil
}

func (repo *scheduleRepository) QuerySyncedAssignments(ctx context.Context) ([]schedule.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]schedule.Assignment, 0, len(repo.db.assignments))
	for _, a := range repo.db.assignments {
		if a.IsSynced() {
			assignments = append(assignments, *a)
		}
	}

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Date.Before(assignments[j].Date) })
	return assignments, nil
}

func (repo *scheduleRepository) DeleteSyncedAssignmentsByBookingID(ctx context.Context, bookingIDs ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, bid := range bookingIDs {
		for id, a := range repo.db.assignments {
			if a.IsSynced() && a.BookingID == bid {
				delete(repo.db.assignments, id)
			}
		}
	}
	return nil
}
