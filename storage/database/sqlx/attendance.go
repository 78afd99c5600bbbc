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
	"github.com/lojf/nextgen/core/attendance"
)

type attendanceRow struct {
	ID            string      `db:"id"`
	ChildID       string      `db:"child_id"`
	ChildName     string      `db:"child_name"`
	ChildFormalID string      `db:"child_formal_id"`
	ServiceSlotID string      `db:"service_slot_id"`
	Date          time.Time   `db:"date"`
	Status        string      `db:"status"`
	CheckInAt     time.Time   `db:"check_in_at"`
	CheckInByID   null.String `db:"check_in_by_id"`
	GuardianID    null.String `db:"guardian_id"`
	CheckOutAt    null.Time   `db:"check_out_at"`
	CheckOutByID  null.String `db:"check_out_by_id"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     null.Time   `db:"updated_at"`
}

// selectAttendance joins in the child's name and formal ID.
const selectAttendance = `
	SELECT a.*, c.name AS child_name, c.formal_id AS child_formal_id
	FROM attendance a
	JOIN child c ON c.id = a.child_id`

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sql.DB) *attendanceRepository {
	return &attendanceRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo attendanceRepository) unpack(r attendanceRow) attendance.Attendance {
	return attendance.Attendance{
		ID:            r.ID,
		ChildID:       r.ChildID,
		ChildName:     r.ChildName,
		ChildFormalID: r.ChildFormalID,
		ServiceSlotID: r.ServiceSlotID,
		Date:          r.Date,
		Status:        r.Status,
		CheckInAt:     r.CheckInAt,
		CheckInByID:   r.CheckInByID.String,
		GuardianID:    r.GuardianID.String,
		CheckOutAt:    r.CheckOutAt.Time,
		CheckOutByID:  r.CheckOutByID.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo attendanceRepository) CreateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	att.ID = uuid.New().String()

	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO attendance
			(id, child_id, service_slot_id, date, status, check_in_at, check_in_by_id, guardian_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		att.ID, att.ChildID, att.ServiceSlotID, att.Date.UTC(), att.Status, att.CheckInAt.UTC(),
		null.NewString(att.CheckInByID, att.CheckInByID != ""), null.NewString(att.GuardianID, att.GuardianID != ""),
		att.CreatedAt.UTC(), null.NewTime(att.UpdatedAt.UTC(), !att.UpdatedAt.IsZero()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Attendance{}, attendance.ErrAlreadyCheckedIn
		}
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return repo.GetAttendanceByID(ctx, att.ID)
}

func (repo attendanceRepository) QueryAttendance(ctx context.Context, filter *attendance.QueryFilter, ordering ...core.DBOrdering) ([]attendance.Attendance, error) {
	var where []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.ChildID != "" {
			where = append(where, "a.child_id = "+arg(filter.ChildID))
		}
		if filter.ServiceSlotID != "" {
			where = append(where, "a.service_slot_id = "+arg(filter.ServiceSlotID))
		}
		if filter.Status != "" {
			where = append(where, "a.status = "+arg(filter.Status))
		}
		if !filter.DateFrom.IsZero() {
			where = append(where, "a.date >= "+arg(filter.DateFrom.UTC()))
		}
		if !filter.DateTo.IsZero() {
			where = append(where, "a.date <= "+arg(filter.DateTo.UTC()))
		}
	}

	query := selectAttendance
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy(ordering)

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}

	atts := make([]attendance.Attendance, 0, len(rows))
	for _, r := range rows {
		atts = append(atts, repo.unpack(r))
	}
	return atts, nil
}

func (repo attendanceRepository) GetAttendanceByID(ctx context.Context, id string) (attendance.Attendance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Attendance{}, attendance.ErrNotFound
	}

	var r attendanceRow
	if err := repo.db.GetContext(ctx, &r, selectAttendance+` WHERE a.id = $1`, id); err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "finding attendance by ID")
	}
	return repo.unpack(r), nil
}

func (repo attendanceRepository) GetOpenAttendance(ctx context.Context, childID, slotID string, date time.Time) (attendance.Attendance, error) {
	var r attendanceRow
	err := repo.db.GetContext(ctx, &r,
		selectAttendance+` WHERE a.child_id = $1 AND a.service_slot_id = $2 AND a.date = $3`,
		childID, slotID, date.UTC(),
	)
	if err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "finding attendance")
	}
	return repo.unpack(r), nil
}

func (repo attendanceRepository) UpdateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE attendance
		SET status = $1, check_out_at = $2, check_out_by_id = $3, updated_at = $4
		WHERE id = $5`,
		att.Status, null.NewTime(att.CheckOutAt.UTC(), !att.CheckOutAt.IsZero()),
		null.NewString(att.CheckOutByID, att.CheckOutByID != ""), att.UpdatedAt.UTC(), att.ID,
	)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	return repo.GetAttendanceByID(ctx, att.ID)
}
