package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/schedule"
)

type serviceSlotRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	StartTime string    `db:"start_time"`
	Capacity  int       `db:"capacity"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

type assignmentRow struct {
	ID               string      `db:"id"`
	ServiceSlotID    string      `db:"service_slot_id"`
	Date             time.Time   `db:"date"`
	StaffID          null.String `db:"staff_id"`
	StaffName        string      `db:"staff_name"`
	StaffEmail       string      `db:"staff_email"`
	Role             string      `db:"role"`
	Source           string      `db:"source"`
	BookingID        string      `db:"booking_id"`
	BookingUpdatedAt null.Time   `db:"booking_updated_at"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        null.Time   `db:"updated_at"`
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sql.DB) *scheduleRepository {
	return &scheduleRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo scheduleRepository) unpackSlot(r serviceSlotRow) schedule.ServiceSlot {
	return schedule.ServiceSlot{
		ID:        r.ID,
		Name:      r.Name,
		StartTime: r.StartTime,
		Capacity:  r.Capacity,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func (repo scheduleRepository) unpack(r assignmentRow) schedule.Assignment {
	return schedule.Assignment{
		ID:               r.ID,
		ServiceSlotID:    r.ServiceSlotID,
		Date:             r.Date,
		StaffID:          r.StaffID.String,
		StaffName:        r.StaffName,
		StaffEmail:       r.StaffEmail,
		Role:             r.Role,
		Source:           r.Source,
		BookingID:        r.BookingID,
		BookingUpdatedAt: r.BookingUpdatedAt.Time,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt.Time,
	}
}

func (repo scheduleRepository) unpackSlice(rows []assignmentRow) []schedule.Assignment {
	assignments := make([]schedule.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, repo.unpack(r))
	}
	return assignments
}

// Slots

func (repo scheduleRepository) QueryServiceSlots(ctx context.Context, activeOnly bool) ([]schedule.ServiceSlot, error) {
	query := `SELECT * FROM service_slot`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY start_time ASC`

	var rows []serviceSlotRow
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying service slots")
	}

	slots := make([]schedule.ServiceSlot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, repo.unpackSlot(r))
	}
	return slots, nil
}

func (repo scheduleRepository) GetServiceSlotByID(ctx context.Context, id string) (schedule.ServiceSlot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.ServiceSlot{}, schedule.ErrSlotNotFound
	}

	var r serviceSlotRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM service_slot WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return schedule.ServiceSlot{}, schedule.ErrSlotNotFound
		}
		return schedule.ServiceSlot{}, errors.Wrap(err, "finding service slot")
	}
	return repo.unpackSlot(r), nil
}

func (repo scheduleRepository) UpdateServiceSlot(ctx context.Context, slot schedule.ServiceSlot, isActive *bool) (schedule.ServiceSlot, error) {
	var set []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	set = append(set,
		"name = "+arg(slot.Name),
		"start_time = "+arg(slot.StartTime),
		"capacity = "+arg(slot.Capacity),
	)
	if isActive != nil {
		set = append(set, "is_active = "+arg(*isActive))
	}
	set = append(set, "updated_at = "+arg(slot.UpdatedAt.UTC()))

	query := fmt.Sprintf(`UPDATE service_slot SET %s WHERE id = %s RETURNING *`, strings.Join(set, ", "), arg(slot.ID))

	var r serviceSlotRow
	if err := repo.db.GetContext(ctx, &r, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return schedule.ServiceSlot{}, schedule.ErrSlotNotFound
		}
		return schedule.ServiceSlot{}, errors.Wrap(err, "updating service slot")
	}
	return repo.unpackSlot(r), nil
}

// Assignments

func (repo scheduleRepository) CreateAssignment(ctx context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	if a.Source == schedule.SourceManual && a.StaffID != "" {
		var exists bool
		err := repo.db.GetContext(ctx, &exists, `
			SELECT EXISTS (SELECT 1 FROM assignment WHERE service_slot_id = $1 AND date = $2 AND staff_id = $3)`,
			a.ServiceSlotID, a.Date.UTC(), a.StaffID,
		)
		if err != nil {
			return schedule.Assignment{}, errors.Wrap(err, "checking assignment uniqueness")
		}
		if exists {
			return schedule.Assignment{}, schedule.ErrAlreadyAssigned
		}
	}

	a.ID = uuid.New().String()

	var r assignmentRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO assignment
			(id, service_slot_id, date, staff_id, staff_name, staff_email, role, source, booking_id, booking_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *`,
		a.ID, a.ServiceSlotID, a.Date.UTC(), null.NewString(a.StaffID, a.StaffID != ""), a.StaffName, a.StaffEmail,
		a.Role, a.Source, a.BookingID, null.NewTime(a.BookingUpdatedAt.UTC(), !a.BookingUpdatedAt.IsZero()),
		a.CreatedAt.UTC(), null.NewTime(a.UpdatedAt.UTC(), !a.UpdatedAt.IsZero()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.Assignment{}, schedule.ErrAlreadyAssigned
		}
		return schedule.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return repo.unpack(r), nil
}

func (repo scheduleRepository) QueryAssignments(ctx context.Context, filter *schedule.QueryFilter, ordering ...core.DBOrdering) ([]schedule.Assignment, error) {
	var where []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.ServiceSlotID != "" {
			where = append(where, "service_slot_id = "+arg(filter.ServiceSlotID))
		}
		if filter.StaffID != "" {
			where = append(where, "staff_id = "+arg(filter.StaffID))
		}
		if filter.Source != "" {
			where = append(where, "source = "+arg(filter.Source))
		}
		if !filter.DateFrom.IsZero() {
			where = append(where, "date >= "+arg(filter.DateFrom.UTC()))
		}
		if !filter.DateTo.IsZero() {
			where = append(where, "date <= "+arg(filter.DateTo.UTC()))
		}
	}

	query := `SELECT * FROM assignment`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy(ordering)

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return repo.unpackSlice(rows), nil
}

func (repo scheduleRepository) GetAssignmentByID(ctx context.Context, id string) (schedule.Assignment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Assignment{}, schedule.ErrAssignmentNotFound
	}

	var r assignmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return schedule.Assignment{}, schedule.ErrAssignmentNotFound
		}
		return schedule.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return repo.unpack(r), nil
}

func (repo scheduleRepository) UpdateAssignment(ctx context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	var r assignmentRow
	err := repo.db.GetContext(ctx, &r, `
		UPDATE assignment
		SET service_slot_id = $1, date = $2, staff_id = $3, staff_name = $4, staff_email = $5, role = $6,
			booking_updated_at = $7, updated_at = $8
		WHERE id = $9
		RETURNING *`,
		a.ServiceSlotID, a.Date.UTC(), null.NewString(a.StaffID, a.StaffID != ""), a.StaffName, a.StaffEmail, a.Role,
		null.NewTime(a.BookingUpdatedAt.UTC(), !a.BookingUpdatedAt.IsZero()), a.UpdatedAt.UTC(), a.ID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return schedule.Assignment{}, schedule.ErrAssignmentNotFound
		}
		return schedule.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return repo.unpack(r), nil
}

func (repo scheduleRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`DELETE FROM assignment WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}

func (repo scheduleRepository) QuerySyncedAssignments(ctx context.Context) ([]schedule.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM assignment WHERE source = $1 ORDER BY date ASC`, schedule.SourceSync)
	if err != nil {
		return nil, errors.Wrap(err, "querying synced assignments")
	}
	return repo.unpackSlice(rows), nil
}

func (repo scheduleRepository) DeleteSyncedAssignmentsByBookingID(ctx context.Context, bookingIDs ...string) error {
	query, args, err := sqlx.In(
		`DELETE FROM assignment WHERE source = ? AND booking_id IN (?)`, schedule.SourceSync, bookingIDs)
	if err != nil {
		return errors.Wrap(err, "deleting synced assignments")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting synced assignments")
	}
	return nil
}
