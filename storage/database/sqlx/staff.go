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
	"github.com/lojf/nextgen/core/staff"
)

type staffRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	AccessLevel  int       `db:"access_level"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	LastLogin    null.Time `db:"last_login"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
}

type staffRepository struct {
	db *sqlx.DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *sql.DB) *staffRepository {
	return &staffRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo staffRepository) unpack(r staffRow) staff.Staff {
	return staff.Staff{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		AccessLevel:  r.AccessLevel,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

func (repo staffRepository) unpackSlice(rows []staffRow) []staff.Staff {
	members := make([]staff.Staff, 0, len(rows))
	for _, r := range rows {
		members = append(members, repo.unpack(r))
	}
	return members
}

// trapNoRowsErr maps psql "no rows" err to staff.ErrNotFound
func (repo staffRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return staff.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo staffRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...staff.Staff) error {
	query := `SELECT EXISTS (SELECT 1 FROM staff WHERE email = ?`
	args := []interface{}{email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, stf := range excluded {
			ids = append(ids, stf.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "checking staff uniqueness")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), inArgs...); err != nil {
		return errors.Wrap(err, "checking staff uniqueness")
	}
	if exists {
		return staff.ErrEmailExists
	}
	return nil
}

func (repo staffRepository) CreateStaff(ctx context.Context, stf staff.Staff) (staff.Staff, error) {
	stf.ID = uuid.New().String()

	var r staffRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO staff (id, name, email, phone, access_level, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		stf.ID, stf.Name, stf.Email, stf.Phone, stf.AccessLevel, stf.IsActive, stf.PasswordHash,
		stf.CreatedAt.UTC(), null.NewTime(stf.UpdatedAt.UTC(), !stf.UpdatedAt.IsZero()),
	)
	if err != nil {
		return staff.Staff{}, errors.Wrap(err, "inserting staff")
	}
	return repo.unpack(r), nil
}

func (repo staffRepository) QueryStaff(ctx context.Context, filter *staff.QueryFilter, ordering ...core.DBOrdering) ([]staff.Staff, error) {
	var where []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s OR phone ILIKE %s)", arg(val), arg(val), arg(val)))
		}
		if filter.MinLevel > 0 {
			where = append(where, "access_level >= "+arg(filter.MinLevel))
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	query := `SELECT * FROM staff`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy(ordering)

	var rows []staffRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying staff")
	}
	return repo.unpackSlice(rows), nil
}

func (repo staffRepository) GetStaff(ctx context.Context, filter staff.GetFilter) (staff.Staff, error) {
	var r staffRow

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return staff.Staff{}, staff.ErrNotFound
		}
		if err := repo.db.GetContext(ctx, &r, `SELECT * FROM staff WHERE id = $1`, filter.ID); err != nil {
			return staff.Staff{}, repo.trapNoRowsErr(err, "finding staff by ID")
		}
	} else {
		if err := repo.db.GetContext(ctx, &r, `SELECT * FROM staff WHERE email = $1`, filter.Email); err != nil {
			return staff.Staff{}, repo.trapNoRowsErr(err, "finding staff by email")
		}
	}
	return repo.unpack(r), nil
}

func (repo staffRepository) UpdateStaff(ctx context.Context, stf staff.Staff, isActive *bool) (staff.Staff, error) {
	var set []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if stf.Name != "" {
		set = append(set, "name = "+arg(stf.Name))
	}
	if stf.Email != "" {
		set = append(set, "email = "+arg(stf.Email))
	}
	set = append(set, "phone = "+arg(stf.Phone))
	if stf.AccessLevel > 0 {
		set = append(set, "access_level = "+arg(stf.AccessLevel))
	}
	if len(stf.PasswordHash) > 0 {
		set = append(set, "password_hash = "+arg(stf.PasswordHash))
	}
	if isActive != nil {
		set = append(set, "is_active = "+arg(*isActive))
	}
	set = append(set, "updated_at = "+arg(stf.UpdatedAt.UTC()))

	query := fmt.Sprintf(`UPDATE staff SET %s WHERE id = %s RETURNING *`, strings.Join(set, ", "), arg(stf.ID))

	var r staffRow
	if err := repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return staff.Staff{}, repo.trapNoRowsErr(err, "updating staff")
	}
	return repo.unpack(r), nil
}

func (repo staffRepository) SetLastLogin(ctx context.Context, stf staff.Staff) (staff.Staff, error) {
	var r staffRow
	err := repo.db.GetContext(ctx, &r,
		`UPDATE staff SET last_login = $1 WHERE id = $2 RETURNING *`,
		time.Now().UTC(), stf.ID,
	)
	if err != nil {
		return staff.Staff{}, repo.trapNoRowsErr(err, "setting last login")
	}
	return repo.unpack(r), nil
}

func (repo staffRepository) DeactivateStaffByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`UPDATE staff SET is_active = FALSE, updated_at = ? WHERE id IN (?)`, time.Now().UTC(), ids)
	if err != nil {
		return errors.Wrap(err, "deactivating staff")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deactivating staff")
	}
	return nil
}
