package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/child"
	"github.com/lojf/nextgen/core/schedule"
)

var (
	// errors
	ErrNotFound         = errors.New("attendance record not found")
	ErrAlreadyCheckedIn = errors.New("child is already checked in for this service")
	ErrNotCheckedIn     = errors.New("child is not checked in")
)

type (
	Repository interface {
		CreateAttendance(ctx context.Context, att Attendance) (Attendance, error)
		// QueryAttendance applies AND operation on available QueryFilter fields
		// and joins in the child's name and formal ID.
		QueryAttendance(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Attendance, error)
		GetAttendanceByID(ctx context.Context, id string) (Attendance, error)
		// GetOpenAttendance finds the record for (child, slot, date) regardless of status.
		GetOpenAttendance(ctx context.Context, childID, slotID string, date time.Time) (Attendance, error)
		UpdateAttendance(ctx context.Context, att Attendance) (Attendance, error)
	}

	Service struct {
		repo     Repository
		childSvc *child.Service
		schedSvc *schedule.Service
		cache    core.Cache
		conf     *core.Config
	}
)

func NewService(repo Repository, childSvc *child.Service, schedSvc *schedule.Service, cache core.Cache, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		childSvc: childSvc,
		schedSvc: schedSvc,
		cache:    cache,
		conf:     conf,
	}
}

func todayKey(date time.Time) string {
	return "attendance:today:" + date.UTC().Format("2006-01-02")
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckIn checks a child into a service for today.
// A child can hold at most one attendance row per (service, date); archived
// children cannot check in.
func (svc *Service) CheckIn(ctx context.Context, ci CheckIn, staffID string) (Attendance, error) {
	chd, err := svc.childSvc.GetByID(ctx, ci.ChildID)
	if err != nil {
		if err == child.ErrNotFound {
			return Attendance{}, core.NewValidationError(err, core.FieldError{Field: "child_id", Error: err.Error()})
		}
		return Attendance{}, err
	}
	if chd.Archived {
		return Attendance{}, core.NewValidationError(child.ErrChildArchived,
			core.FieldError{Field: "child_id", Error: child.ErrChildArchived.Error()})
	}
	if _, err := svc.schedSvc.GetSlotByID(ctx, ci.ServiceSlotID); err != nil {
		if err == schedule.ErrSlotNotFound {
			return Attendance{}, core.NewValidationError(err, core.FieldError{Field: "service_slot_id", Error: err.Error()})
		}
		return Attendance{}, err
	}
	if _, err := svc.childSvc.GetGuardianByID(ctx, ci.GuardianID); err != nil {
		if err == child.ErrGuardianNotFound {
			return Attendance{}, core.NewValidationError(err, core.FieldError{Field: "guardian_id", Error: err.Error()})
		}
		return Attendance{}, err
	}

	now := time.Now().UTC()
	date := truncateToDay(now)

	if _, err := svc.repo.GetOpenAttendance(ctx, ci.ChildID, ci.ServiceSlotID, date); err == nil {
		return Attendance{}, core.NewValidationError(ErrAlreadyCheckedIn,
			core.FieldError{Field: "child_id", Error: ErrAlreadyCheckedIn.Error()})
	} else if err != ErrNotFound {
		return Attendance{}, err
	}

	att := Attendance{
		ChildID:       chd.ID,
		ChildName:     chd.Name,
		ChildFormalID: chd.FormalID,
		ServiceSlotID: ci.ServiceSlotID,
		Date:          date,
		Status:        StatusCheckedIn,
		CheckInAt:     now,
		CheckInByID:   staffID,
		GuardianID:    ci.GuardianID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	att, err = svc.repo.CreateAttendance(ctx, att)
	if err != nil {
		return Attendance{}, err
	}
	svc.invalidateToday(ctx, date)
	return att, nil
}

// CheckOut releases a checked-in child.
func (svc *Service) CheckOut(ctx context.Context, co CheckOut, staffID string) (Attendance, error) {
	att, err := svc.repo.GetAttendanceByID(ctx, co.AttendanceID)
	if err != nil {
		return Attendance{}, err
	}
	if att.Status != StatusCheckedIn {
		return Attendance{}, core.NewValidationError(ErrNotCheckedIn,
			core.FieldError{Field: "attendance_id", Error: ErrNotCheckedIn.Error()})
	}

	now := time.Now().UTC()
	att.Status = StatusCheckedOut
	att.CheckOutAt = now
	att.CheckOutByID = staffID
	att.UpdatedAt = now

	att, err = svc.repo.UpdateAttendance(ctx, att)
	if err != nil {
		return Attendance{}, err
	}
	svc.invalidateToday(ctx, att.Date)
	return att, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, filter, core.DBOrdering{Field: "check_in_at", Ascending: false})
}

// QueryToday lists today's attendance through the TTL cache.
func (svc *Service) QueryToday(ctx context.Context) ([]Attendance, error) {
	date := truncateToDay(time.Now())
	key := todayKey(date)

	if svc.cache != nil {
		if data, err := svc.cache.Get(ctx, key); err == nil {
			var atts []Attendance
			if err := json.Unmarshal(data, &atts); err == nil {
				return atts, nil
			}
			// corrupt entry; fall through to the DB and overwrite it
		}
	}

	atts, err := svc.repo.QueryAttendance(ctx, &QueryFilter{DateFrom: date, DateTo: date},
		core.DBOrdering{Field: "check_in_at", Ascending: false})
	if err != nil {
		return nil, err
	}

	if svc.cache != nil {
		if data, err := json.Marshal(atts); err == nil {
			_ = svc.cache.Set(ctx, key, data, svc.conf.Redis.TTL)
		}
	}
	return atts, nil
}

func (svc *Service) invalidateToday(ctx context.Context, date time.Time) {
	if svc.cache != nil {
		_ = svc.cache.Delete(ctx, todayKey(date))
	}
}

// Weekly reconciles the week's attendance into per-slot and per-day totals.
// weekStart may be any day; it is snapped back to Monday.
func (svc *Service) Weekly(ctx context.Context, weekStart time.Time) (WeeklyReport, error) {
	start := truncateToDay(weekStart)
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, -1)
	}
	end := start.AddDate(0, 0, 7)

	rep := WeeklyReport{WeekStart: start, WeekEnd: end}

	atts, err := svc.repo.QueryAttendance(ctx, &QueryFilter{DateFrom: start, DateTo: end.AddDate(0, 0, -1)},
		core.DBOrdering{Field: "check_in_at", Ascending: true})
	if err != nil {
		return WeeklyReport{}, pkgerrors.Wrap(err, "querying week attendance")
	}

	slots, err := svc.schedSvc.QuerySlots(ctx, false)
	if err != nil {
		return WeeklyReport{}, pkgerrors.Wrap(err, "querying service slots")
	}
	slotNames := make(map[string]string, len(slots))
	for _, s := range slots {
		slotNames[s.ID] = s.Name
	}

	perSlot := make(map[string]*SlotTotal)
	seenChildren := make(map[string]bool)

	// one zero-filled entry per day of the week
	perDay := make(map[time.Time]*DayCount, 7)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		perDay[d] = &DayCount{Date: d}
	}

	for _, att := range atts {
		rep.TotalCheckIns++
		seenChildren[att.ChildID] = true

		st, ok := perSlot[att.ServiceSlotID]
		if !ok {
			st = &SlotTotal{ServiceSlotID: att.ServiceSlotID, SlotName: slotNames[att.ServiceSlotID]}
			perSlot[att.ServiceSlotID] = st
		}
		st.CheckIns++
		if att.Status == StatusCheckedOut {
			st.CheckOuts++
		}

		day := truncateToDay(att.Date)
		if dc, ok := perDay[day]; ok {
			dc.CheckIns++
		}
	}
	rep.UniqueChildren = len(seenChildren)

	newKids, err := svc.childSvc.Query(ctx, &child.QueryFilter{CreatedFrom: start, CreatedTo: end})
	if err != nil {
		return WeeklyReport{}, pkgerrors.Wrap(err, "querying new children")
	}
	rep.NewChildren = len(newKids)

	for _, st := range perSlot {
		rep.PerSlot = append(rep.PerSlot, *st)
	}
	sort.Slice(rep.PerSlot, func(i, j int) bool { return rep.PerSlot[i].SlotName < rep.PerSlot[j].SlotName })
	for _, dc := range perDay {
		rep.PerDay = append(rep.PerDay, *dc)
	}
	sort.Slice(rep.PerDay, func(i, j int) bool { return rep.PerDay[i].Date.Before(rep.PerDay[j].Date) })

	return rep, nil
}
