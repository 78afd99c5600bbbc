package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// withChild fills in the denormalized child columns.
func (repo *attendanceRepository) withChild(att attendance.Attendance) attendance.Attendance {
	if chd, ok := repo.db.children[att.ChildID]; ok {
		att.ChildName = chd.Name
		att.ChildFormalID = chd.FormalID
	}
	return att
}

func (repo *attendanceRepository) CreateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.attendance {
		if other.ChildID == att.ChildID && other.ServiceSlotID == att.ServiceSlotID && other.Date.Equal(att.Date) {
			return attendance.Attendance{}, attendance.ErrAlreadyCheckedIn
		}
	}

	att.ID = uuid.New().String()
	repo.db.attendance[att.ID] = &att
	return repo.withChild(att), nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter *attendance.QueryFilter, ordering ...core.DBOrdering) ([]attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	atts := make([]attendance.Attendance, 0, len(repo.db.attendance))
	for _, att := range repo.db.attendance {
		if filter != nil {
			if filter.ChildID != "" && att.ChildID != filter.ChildID {
				continue
			}
			if filter.ServiceSlotID != "" && att.ServiceSlotID != filter.ServiceSlotID {
				continue
			}
			if filter.Status != "" && att.Status != filter.Status {
				continue
			}
			if !filter.DateFrom.IsZero() && att.Date.Before(filter.DateFrom.UTC()) {
				continue
			}
			if !filter.DateTo.IsZero() && att.Date.After(filter.DateTo.UTC()) {
				continue
			}
		}
		atts = append(atts, repo.withChild(*att))
	}

	sort.Slice(atts, func(i, j int) bool { return atts[i].CheckInAt.After(atts[j].CheckInAt) })
	return atts, nil
}

func (repo *attendanceRepository) GetAttendanceByID(ctx context.Context, id string) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if att, ok := repo.db.attendance[id]; ok {
		return repo.withChild(*att), nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetOpenAttendance(ctx context.Context, childID, slotID string, date time.Time) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, att := range repo.db.attendance {
		if att.ChildID == childID && att.ServiceSlotID == slotID && att.Date.Equal(date) {
			return repo.withChild(*att), nil
		}
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.attendance[att.ID]
	if !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	orig.Status = att.Status
	orig.CheckOutAt = att.CheckOutAt
	orig.CheckOutByID = att.CheckOutByID
	orig.UpdatedAt = att.UpdatedAt
	return repo.withChild(*orig), nil
}
