package messaging

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/lojf/nextgen/core"
)

var (
	// errors
	ErrTemplateNotFound = errors.New("email template not found")
	ErrNameExists       = errors.New("an email template with this name already exists")
	ErrLogNotFound      = errors.New("email log not found")
)

type (
	Repository interface {
		CheckTemplateNameUniqueness(ctx context.Context, name string, excluded ...EmailTemplate) error
		CreateTemplate(ctx context.Context, tpl EmailTemplate) (EmailTemplate, error)
		QueryTemplates(ctx context.Context, ordering ...core.DBOrdering) ([]EmailTemplate, error)
		GetTemplate(ctx context.Context, idOrName string) (EmailTemplate, error)
		UpdateTemplate(ctx context.Context, tpl EmailTemplate) (EmailTemplate, error)
		DeleteTemplatesByID(ctx context.Context, ids ...string) error

		GetConfig(ctx context.Context) (EmailConfig, error)
		UpdateConfig(ctx context.Context, cfg EmailConfig) (EmailConfig, error)

		CreateLog(ctx context.Context, entry EmailLog) (EmailLog, error)
		QueryLogs(ctx context.Context, filter *LogFilter, ordering ...core.DBOrdering) ([]EmailLog, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) checkNameUniqueness(name string, excl ...EmailTemplate) error {
	if err := svc.repo.CheckTemplateNameUniqueness(context.Background(), name, excl...); err != nil {
		if err == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Templates

func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (EmailTemplate, error) {
	now := time.Now().UTC()
	tpl := EmailTemplate{
		Name:      nt.Name,
		Subject:   nt.Subject,
		TextBody:  nt.TextBody,
		HTMLBody:  nt.HTMLBody,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateTemplate(ctx, tpl)
}

func (svc *Service) QueryTemplates(ctx context.Context) ([]EmailTemplate, error) {
	return svc.repo.QueryTemplates(ctx, core.DBOrdering{Field: "name", Ascending: true})
}

func (svc *Service) GetTemplate(ctx context.Context, idOrName string) (EmailTemplate, error) {
	return svc.repo.GetTemplate(ctx, idOrName)
}

func (svc *Service) UpdateTemplate(ctx context.Context, id string, ut UpdateTemplate) (EmailTemplate, error) {
	orig, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return EmailTemplate{}, err
	}

	tpl := EmailTemplate{
		ID:        id,
		Name:      ut.Name,
		Subject:   ut.Subject,
		TextBody:  orig.TextBody,
		HTMLBody:  orig.HTMLBody,
		UpdatedAt: time.Now().UTC(),
	}
	if ut.TextBody != nil {
		tpl.TextBody = *ut.TextBody
	}
	if ut.HTMLBody != nil {
		tpl.HTMLBody = *ut.HTMLBody
	}
	return svc.repo.UpdateTemplate(ctx, tpl)
}

func (svc *Service) DeleteTemplates(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteTemplatesByID(ctx, ids...)
}

// Config

func (svc *Service) GetConfig(ctx context.Context) (EmailConfig, error) {
	return svc.repo.GetConfig(ctx)
}

func (svc *Service) UpdateConfig(ctx context.Context, uc UpdateConfig) (EmailConfig, error) {
	cfg, err := svc.repo.GetConfig(ctx)
	if err != nil {
		return EmailConfig{}, err
	}
	cfg.FromName = uc.FromName
	cfg.FromEmail = uc.FromEmail
	cfg.ReplyTo = uc.ReplyTo
	cfg.Bcc = uc.Bcc
	cfg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateConfig(ctx, cfg)
}

// Logs

func (svc *Service) QueryLogs(ctx context.Context, filter *LogFilter) ([]EmailLog, error) {
	return svc.repo.QueryLogs(ctx, filter, core.DBOrdering{Field: "created_at", Ascending: false})
}

// Send renders the named template with the given data, dispatches the message
// and records an EmailLog row. A render failure is logged and surfaced as a
// validation error; delivery itself is fire-and-forget (SendMessages).
func (svc *Service) Send(ctx context.Context, sr SendRequest) (EmailLog, error) {
	tpl, err := svc.repo.GetTemplate(ctx, sr.TemplateName)
	if err != nil {
		if err == ErrTemplateNotFound {
			return EmailLog{}, core.NewValidationError(err, core.FieldError{Field: "template_name", Error: err.Error()})
		}
		return EmailLog{}, err
	}

	to := make([]mail.Address, 0, len(sr.To))
	for _, addr := range sr.To {
		to = append(to, mail.Address{Address: core.CleanString(addr, true /* lower */)})
	}

	msg := &core.EmailMessage{
		To:           to,
		Subject:      tpl.Subject,
		TextTemplate: tpl.TextBody,
		HTMLTemplate: tpl.HTMLBody,
		TemplateData: sr.Data,
	}
	if cfg, err := svc.repo.GetConfig(ctx); err == nil && cfg.Bcc != "" {
		msg.Bcc = []mail.Address{{Address: cfg.Bcc}}
	}

	entry := EmailLog{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Recipients:   strings.Join(sr.To, ","),
		Subject:      tpl.Subject,
		CreatedAt:    time.Now().UTC(),
	}

	if err := msg.Render(svc.conf); err != nil {
		entry.Status = StatusFailed
		entry.Error = err.Error()
		if _, logErr := svc.repo.CreateLog(ctx, entry); logErr != nil {
			return EmailLog{}, logErr
		}
		return EmailLog{}, core.NewValidationError(err, core.FieldError{Field: "data", Error: err.Error()})
	}

	svc.mailSvc.SendMessages(msg)
	entry.Status = StatusSent
	return svc.repo.CreateLog(ctx, entry)
}
