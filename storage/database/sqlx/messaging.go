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
	"github.com/lojf/nextgen/core/messaging"
)

type emailTemplateRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Subject   string    `db:"subject"`
	TextBody  string    `db:"text_body"`
	HTMLBody  string    `db:"html_body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

type emailLogRow struct {
	ID           string      `db:"id"`
	TemplateID   null.String `db:"template_id"`
	TemplateName string      `db:"template_name"`
	Recipients   string      `db:"recipients"`
	Subject      string      `db:"subject"`
	Status       string      `db:"status"`
	Error        string      `db:"error"`
	CreatedAt    time.Time   `db:"created_at"`
}

type emailConfigRow struct {
	ID        string    `db:"id"`
	FromName  string    `db:"from_name"`
	FromEmail string    `db:"from_email"`
	ReplyTo   string    `db:"reply_to"`
	Bcc       string    `db:"bcc"`
	UpdatedAt null.Time `db:"updated_at"`
}

type messagingRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *sql.DB) *messagingRepository {
	return &messagingRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo messagingRepository) unpackTemplate(r emailTemplateRow) messaging.EmailTemplate {
	return messaging.EmailTemplate{
		ID:        r.ID,
		Name:      r.Name,
		Subject:   r.Subject,
		TextBody:  r.TextBody,
		HTMLBody:  r.HTMLBody,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func (repo messagingRepository) unpackLog(r emailLogRow) messaging.EmailLog {
	return messaging.EmailLog{
		ID:           r.ID,
		TemplateID:   r.TemplateID.String,
		TemplateName: r.TemplateName,
		Recipients:   r.Recipients,
		Subject:      r.Subject,
		Status:       r.Status,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
	}
}

func (repo messagingRepository) unpackConfig(r emailConfigRow) messaging.EmailConfig {
	return messaging.EmailConfig{
		ID:        r.ID,
		FromName:  r.FromName,
		FromEmail: r.FromEmail,
		ReplyTo:   r.ReplyTo,
		Bcc:       r.Bcc,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

// Templates

func (repo messagingRepository) CheckTemplateNameUniqueness(ctx context.Context, name string, excluded ...messaging.EmailTemplate) error {
	query := `SELECT EXISTS (SELECT 1 FROM email_template WHERE name = ?`
	args := []interface{}{name}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, tpl := range excluded {
			ids = append(ids, tpl.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "checking template uniqueness")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), inArgs...); err != nil {
		return errors.Wrap(err, "checking template uniqueness")
	}
	if exists {
		return messaging.ErrNameExists
	}
	return nil
}

func (repo messagingRepository) CreateTemplate(ctx context.Context, tpl messaging.EmailTemplate) (messaging.EmailTemplate, error) {
	tpl.ID = uuid.New().String()

	var r emailTemplateRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO email_template (id, name, subject, text_body, html_body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		tpl.ID, tpl.Name, tpl.Subject, tpl.TextBody, tpl.HTMLBody,
		tpl.CreatedAt.UTC(), null.NewTime(tpl.UpdatedAt.UTC(), !tpl.UpdatedAt.IsZero()),
	)
	if err != nil {
		return messaging.EmailTemplate{}, errors.Wrap(err, "inserting email template")
	}
	return repo.unpackTemplate(r), nil
}

func (repo messagingRepository) QueryTemplates(ctx context.Context, ordering ...core.DBOrdering) ([]messaging.EmailTemplate, error) {
	var rows []emailTemplateRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM email_template`+orderBy(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying email templates")
	}

	templates := make([]messaging.EmailTemplate, 0, len(rows))
	for _, r := range rows {
		templates = append(templates, repo.unpackTemplate(r))
	}
	return templates, nil
}

func (repo messagingRepository) GetTemplate(ctx context.Context, idOrName string) (messaging.EmailTemplate, error) {
	query := `SELECT * FROM email_template WHERE name = $1`
	if _, err := uuid.Parse(idOrName); err == nil {
		query = `SELECT * FROM email_template WHERE id = $1`
	}

	var r emailTemplateRow
	if err := repo.db.GetContext(ctx, &r, query, idOrName); err != nil {
		if err == sql.ErrNoRows {
			return messaging.EmailTemplate{}, messaging.ErrTemplateNotFound
		}
		return messaging.EmailTemplate{}, errors.Wrap(err, "finding email template")
	}
	return repo.unpackTemplate(r), nil
}

func (repo messagingRepository) UpdateTemplate(ctx context.Context, tpl messaging.EmailTemplate) (messaging.EmailTemplate, error) {
	var r emailTemplateRow
	err := repo.db.GetContext(ctx, &r, `
		UPDATE email_template
		SET name = $1, subject = $2, text_body = $3, html_body = $4, updated_at = $5
		WHERE id = $6
		RETURNING *`,
		tpl.Name, tpl.Subject, tpl.TextBody, tpl.HTMLBody, tpl.UpdatedAt.UTC(), tpl.ID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return messaging.EmailTemplate{}, messaging.ErrTemplateNotFound
		}
		return messaging.EmailTemplate{}, errors.Wrap(err, "updating email template")
	}
	return repo.unpackTemplate(r), nil
}

func (repo messagingRepository) DeleteTemplatesByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`DELETE FROM email_template WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting email templates")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting email templates")
	}
	return nil
}

// Config

func (repo messagingRepository) GetConfig(ctx context.Context) (messaging.EmailConfig, error) {
	var r emailConfigRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM email_config LIMIT 1`); err != nil {
		return messaging.EmailConfig{}, errors.Wrap(err, "finding email config")
	}
	return repo.unpackConfig(r), nil
}

func (repo messagingRepository) UpdateConfig(ctx context.Context, cfg messaging.EmailConfig) (messaging.EmailConfig, error) {
	var r emailConfigRow
	err := repo.db.GetContext(ctx, &r, `
		UPDATE email_config
		SET from_name = $1, from_email = $2, reply_to = $3, bcc = $4, updated_at = $5
		WHERE id = $6
		RETURNING *`,
		cfg.FromName, cfg.FromEmail, cfg.ReplyTo, cfg.Bcc, cfg.UpdatedAt.UTC(), cfg.ID,
	)
	if err != nil {
		return messaging.EmailConfig{}, errors.Wrap(err, "updating email config")
	}
	return repo.unpackConfig(r), nil
}

// Logs

func (repo messagingRepository) CreateLog(ctx context.Context, entry messaging.EmailLog) (messaging.EmailLog, error) {
	entry.ID = uuid.New().String()

	var r emailLogRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO email_log (id, template_id, template_name, recipients, subject, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *`,
		entry.ID, null.NewString(entry.TemplateID, entry.TemplateID != ""), entry.TemplateName,
		entry.Recipients, entry.Subject, entry.Status, entry.Error, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return messaging.EmailLog{}, errors.Wrap(err, "inserting email log")
	}
	return repo.unpackLog(r), nil
}

func (repo messagingRepository) QueryLogs(ctx context.Context, filter *messaging.LogFilter, ordering ...core.DBOrdering) ([]messaging.EmailLog, error) {
	var where []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.TemplateID != "" {
			where = append(where, "template_id = "+arg(filter.TemplateID))
		}
		if filter.Status != "" {
			where = append(where, "status = "+arg(filter.Status))
		}
		if !filter.SentFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.SentFrom.UTC()))
		}
		if !filter.SentTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.SentTo.UTC()))
		}
	}

	query := `SELECT * FROM email_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy(ordering)

	var rows []emailLogRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying email logs")
	}

	logs := make([]messaging.EmailLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, repo.unpackLog(r))
	}
	return logs, nil
}
