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
	"github.com/lojf/nextgen/core/child"
)

type childRow struct {
	ID        string    `db:"id"`
	FormalID  string    `db:"formal_id"`
	Name      string    `db:"name"`
	BirthDate time.Time `db:"birth_date"`
	Gender    string    `db:"gender"`
	Allergies string    `db:"allergies"`
	Notes     string    `db:"notes"`
	PhotoKey  string    `db:"photo_key"`
	Archived  bool      `db:"archived"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

type guardianRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

type linkedGuardianRow struct {
	guardianRow
	Relationship string `db:"relationship"`
	IsPrimary    bool   `db:"is_primary"`
}

type childRepository struct {
	db *sqlx.DB
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(db *sql.DB) *childRepository {
	return &childRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo childRepository) unpack(r childRow) child.Child {
	return child.Child{
		ID:        r.ID,
		FormalID:  r.FormalID,
		Name:      r.Name,
		BirthDate: r.BirthDate,
		Gender:    r.Gender,
		Allergies: r.Allergies,
		Notes:     r.Notes,
		PhotoKey:  r.PhotoKey,
		Archived:  r.Archived,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func (repo childRepository) unpackGuardian(r guardianRow) child.Guardian {
	return child.Guardian{
		ID:        r.ID,
		Name:      r.Name,
		Phone:     r.Phone,
		Email:     r.Email,
		Address:   r.Address,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func (repo childRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// Children

func (repo childRepository) CheckFormalIDUniqueness(ctx context.Context, formalID string, excluded ...child.Child) error {
	query := `SELECT EXISTS (SELECT 1 FROM child WHERE formal_id = ?`
	args := []interface{}{formalID}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, chd := range excluded {
			ids = append(ids, chd.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "checking child uniqueness")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), inArgs...); err != nil {
		return errors.Wrap(err, "checking child uniqueness")
	}
	if exists {
		return child.ErrFormalIDExists
	}
	return nil
}

func (repo childRepository) CreateChild(ctx context.Context, chd child.Child) (child.Child, error) {
	chd.ID = uuid.New().String()

	var r childRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO child (id, formal_id, name, birth_date, gender, allergies, notes, photo_key, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *`,
		chd.ID, chd.FormalID, chd.Name, chd.BirthDate.UTC(), chd.Gender, chd.Allergies, chd.Notes,
		chd.PhotoKey, chd.Archived, chd.CreatedAt.UTC(), null.NewTime(chd.UpdatedAt.UTC(), !chd.UpdatedAt.IsZero()),
	)
	if err != nil {
		return child.Child{}, errors.Wrap(err, "inserting child")
	}
	return repo.unpack(r), nil
}

func (repo childRepository) QueryChildren(ctx context.Context, filter *child.QueryFilter, ordering ...core.DBOrdering) ([]child.Child, error) {
	var where []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	archived := false
	if filter != nil && filter.Archived != nil {
		archived = *filter.Archived
	}
	where = append(where, "archived = "+arg(archived))

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, fmt.Sprintf("(name ILIKE %s OR formal_id ILIKE %s)", arg(val), arg(val)))
		}
		if filter.GuardianID != "" {
			where = append(where, "id IN (SELECT child_id FROM child_guardian WHERE guardian_id = "+arg(filter.GuardianID)+")")
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	query := `SELECT * FROM child WHERE ` + strings.Join(where, " AND ") + orderBy(ordering)

	var rows []childRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying children")
	}

	children := make([]child.Child, 0, len(rows))
	for _, r := range rows {
		children = append(children, repo.unpack(r))
	}
	return children, nil
}

func (repo childRepository) GetChild(ctx context.Context, filter child.GetFilter) (child.Child, error) {
	var r childRow

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return child.Child{}, child.ErrNotFound
		}
		if err := repo.db.GetContext(ctx, &r, `SELECT * FROM child WHERE id = $1`, filter.ID); err != nil {
			return child.Child{}, repo.trapNoRowsErr(err, child.ErrNotFound, "finding child by ID")
		}
	} else {
		if err := repo.db.GetContext(ctx, &r, `SELECT * FROM child WHERE formal_id = $1`, filter.FormalID); err != nil {
			return child.Child{}, repo.trapNoRowsErr(err, child.ErrNotFound, "finding child by formal ID")
		}
	}
	return repo.unpack(r), nil
}

func (repo childRepository) UpdateChild(ctx context.Context, chd child.Child) (child.Child, error) {
	var r childRow
	err := repo.db.GetContext(ctx, &r, `
		UPDATE child
		SET formal_id = $1, name = $2, birth_date = $3, gender = $4, allergies = $5, notes = $6, updated_at = $7
		WHERE id = $8
		RETURNING *`,
		chd.FormalID, chd.Name, chd.BirthDate.UTC(), chd.Gender, chd.Allergies, chd.Notes, chd.UpdatedAt.UTC(), chd.ID,
	)
	if err != nil {
		return child.Child{}, repo.trapNoRowsErr(err, child.ErrNotFound, "updating child")
	}
	return repo.unpack(r), nil
}

func (repo childRepository) SetChildPhoto(ctx context.Context, id, photoKey string) (child.Child, error) {
	var r childRow
	err := repo.db.GetContext(ctx, &r,
		`UPDATE child SET photo_key = $1, updated_at = $2 WHERE id = $3 RETURNING *`,
		photoKey, time.Now().UTC(), id,
	)
	if err != nil {
		return child.Child{}, repo.trapNoRowsErr(err, child.ErrNotFound, "setting child photo")
	}
	return repo.unpack(r), nil
}

func (repo childRepository) ArchiveChildByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`UPDATE child SET archived = TRUE, updated_at = ? WHERE id IN (?)`, time.Now().UTC(), ids)
	if err != nil {
		return errors.Wrap(err, "archiving children")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "archiving children")
	}
	return nil
}

// Guardians

func (repo childRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excluded ...child.Guardian) error {
	query := `SELECT EXISTS (SELECT 1 FROM guardian WHERE phone = ?`
	args := []interface{}{phone}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, grd := range excluded {
			ids = append(ids, grd.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "checking guardian uniqueness")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), inArgs...); err != nil {
		return errors.Wrap(err, "checking guardian uniqueness")
	}
	if exists {
		return child.ErrPhoneExists
	}
	return nil
}

func (repo childRepository) CreateGuardian(ctx context.Context, grd child.Guardian) (child.Guardian, error) {
	grd.ID = uuid.New().String()

	var r guardianRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO guardian (id, name, phone, email, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		grd.ID, grd.Name, grd.Phone, grd.Email, grd.Address,
		grd.CreatedAt.UTC(), null.NewTime(grd.UpdatedAt.UTC(), !grd.UpdatedAt.IsZero()),
	)
	if err != nil {
		return child.Guardian{}, errors.Wrap(err, "inserting guardian")
	}
	return repo.unpackGuardian(r), nil
}

func (repo childRepository) QueryGuardians(ctx context.Context, search string, ordering ...core.DBOrdering) ([]child.Guardian, error) {
	query := `SELECT * FROM guardian`
	var args []interface{}
	if search != "" {
		query += ` WHERE name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += orderBy(ordering)

	var rows []guardianRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}

	guardians := make([]child.Guardian, 0, len(rows))
	for _, r := range rows {
		guardians = append(guardians, repo.unpackGuardian(r))
	}
	return guardians, nil
}

func (repo childRepository) GetGuardianByID(ctx context.Context, id string) (child.Guardian, error) {
	if _, err := uuid.Parse(id); err != nil {
		return child.Guardian{}, child.ErrGuardianNotFound
	}

	var r guardianRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM guardian WHERE id = $1`, id); err != nil {
		return child.Guardian{}, repo.trapNoRowsErr(err, child.ErrGuardianNotFound, "finding guardian by ID")
	}
	return repo.unpackGuardian(r), nil
}

func (repo childRepository) UpdateGuardian(ctx context.Context, grd child.Guardian) (child.Guardian, error) {
	var r guardianRow
	err := repo.db.GetContext(ctx, &r, `
		UPDATE guardian
		SET name = $1, phone = $2, email = $3, address = $4, updated_at = $5
		WHERE id = $6
		RETURNING *`,
		grd.Name, grd.Phone, grd.Email, grd.Address, grd.UpdatedAt.UTC(), grd.ID,
	)
	if err != nil {
		return child.Guardian{}, repo.trapNoRowsErr(err, child.ErrGuardianNotFound, "updating guardian")
	}
	return repo.unpackGuardian(r), nil
}

func (repo childRepository) DeleteGuardiansByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`DELETE FROM guardian WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting guardians")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting guardians")
	}
	return nil
}

// Links

func (repo childRepository) LinkGuardian(ctx context.Context, childID, guardianID, relationship string, isPrimary bool) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO child_guardian (child_id, guardian_id, relationship, is_primary)
		VALUES ($1, $2, $3, $4)`,
		childID, guardianID, relationship, isPrimary,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return child.ErrAlreadyLinked
		}
		return errors.Wrap(err, "linking guardian")
	}
	return nil
}

func (repo childRepository) UnlinkGuardian(ctx context.Context, childID, guardianID string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM child_guardian WHERE child_id = $1 AND guardian_id = $2`,
		childID, guardianID,
	)
	if err != nil {
		return errors.Wrap(err, "unlinking guardian")
	}
	return nil
}

func (repo childRepository) GetChildGuardians(ctx context.Context, childID string) ([]child.LinkedGuardian, error) {
	var rows []linkedGuardianRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT g.*, cg.relationship, cg.is_primary
		FROM guardian g
		JOIN child_guardian cg ON cg.guardian_id = g.id
		WHERE cg.child_id = $1
		ORDER BY cg.is_primary DESC, g.name ASC`,
		childID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying child guardians")
	}

	linked := make([]child.LinkedGuardian, 0, len(rows))
	for _, r := range rows {
		linked = append(linked, child.LinkedGuardian{
			Guardian:     repo.unpackGuardian(r.guardianRow),
			Relationship: r.Relationship,
			IsPrimary:    r.IsPrimary,
		})
	}
	return linked, nil
}
