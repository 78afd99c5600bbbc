package messaging

import (
	"time"

	"github.com/lojf/nextgen/core"
)

// Email log statuses
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// EmailTemplate is a reusable notification template; bodies are Go templates
// executed with core.ContextData.
type EmailTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"` // unique handle, e.g. "welcome_guardian"
	Subject   string    `json:"subject"`
	TextBody  string    `json:"text_body"`
	HTMLBody  string    `json:"html_body"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// EmailLog records one send attempt.
type EmailLog struct {
	ID           string    `json:"id"`
	TemplateID   string    `json:"template_id,omitempty"`
	TemplateName string    `json:"template_name,omitempty"`
	Recipients   string    `json:"recipients"` // comma separated
	Subject      string    `json:"subject"`
	Status       string    `json:"status"` // sent | failed
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// EmailConfig is the single sender configuration row.
type EmailConfig struct {
	ID        string    `json:"id"`
	FromName  string    `json:"from_name"`
	FromEmail string    `json:"from_email"`
	ReplyTo   string    `json:"reply_to"`
	Bcc       string    `json:"bcc"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewTemplate contains information needed to create an EmailTemplate.
type NewTemplate struct {
	Name     string `json:"name" validate:"required,alphanum_"`
	Subject  string `json:"subject" validate:"required"`
	TextBody string `json:"text_body" validate:"required"`
	HTMLBody string `json:"html_body"`
}

func (nt *NewTemplate) Validate(svc *Service) error {
	nt.Name = core.CleanString(nt.Name, true /* lower */)
	nt.Subject = core.CleanString(nt.Subject)

	if err := core.Validate.Struct(nt); err != nil {
		return err
	}
	return svc.checkNameUniqueness(nt.Name)
}

// UpdateTemplate defines what information may be provided to modify an EmailTemplate.
type UpdateTemplate struct {
	Name     string  `json:"name" validate:"omitempty,alphanum_"`
	Subject  string  `json:"subject"`
	TextBody *string `json:"text_body"`
	HTMLBody *string `json:"html_body"`
}

func (ut *UpdateTemplate) Validate(orig EmailTemplate, svc *Service) error {
	if name := core.CleanString(ut.Name, true /* lower */); name != "" {
		ut.Name = name
	} else {
		ut.Name = orig.Name
	}
	if subj := core.CleanString(ut.Subject); subj != "" {
		ut.Subject = subj
	} else {
		ut.Subject = orig.Subject
	}

	if err := core.Validate.Struct(ut); err != nil {
		return err
	}
	return svc.checkNameUniqueness(ut.Name, orig)
}

// UpdateConfig defines the editable sender configuration.
type UpdateConfig struct {
	FromName  string `json:"from_name" validate:"required"`
	FromEmail string `json:"from_email" validate:"required,email"`
	ReplyTo   string `json:"reply_to" validate:"omitempty,email"`
	Bcc       string `json:"bcc" validate:"omitempty,email"`
}

func (uc *UpdateConfig) Validate() error {
	uc.FromName = core.CleanString(uc.FromName)
	uc.FromEmail = core.CleanString(uc.FromEmail, true /* lower */)
	uc.ReplyTo = core.CleanString(uc.ReplyTo, true /* lower */)
	uc.Bcc = core.CleanString(uc.Bcc, true /* lower */)
	return core.Validate.Struct(uc)
}

// SendRequest asks for a templated notification to be sent.
type SendRequest struct {
	TemplateName string                 `json:"template_name" validate:"required"`
	To           []string               `json:"to" validate:"required,min=1,dive,email"`
	Data         map[string]interface{} `json:"data"`
}

func (sr *SendRequest) Validate() error {
	sr.TemplateName = core.CleanString(sr.TemplateName, true /* lower */)
	return core.Validate.Struct(sr)
}

type LogFilter struct {
	TemplateID string    `query:"template_id"`
	Status     string    `query:"status"`
	SentFrom   time.Time `query:"sent_from"`
	SentTo     time.Time `query:"sent_to"`
}
