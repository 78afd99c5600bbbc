package staff

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/lojf/nextgen/core"
)

var (
	// errors
	ErrNotFound    = errors.New("staff member not found")
	ErrEmailExists = errors.New("a staff member with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excluded ...Staff) error
		CreateStaff(ctx context.Context, stf Staff) (Staff, error)
		// QueryStaff applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Name, Email or Phone.
		QueryStaff(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Staff, error)
		GetStaff(ctx context.Context, filter GetFilter) (Staff, error)
		UpdateStaff(ctx context.Context, stf Staff, isActive *bool) (Staff, error)
		SetLastLogin(ctx context.Context, stf Staff) (Staff, error)
		DeactivateStaffByID(ctx context.Context, ids ...string) error
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

func (svc *Service) checkUniqueness(email string, excl ...Staff) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excl...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewStaff) (Staff, error) {
	now := time.Now().UTC()
	stf := Staff{
		Name:        ns.Name,
		Email:       ns.Email,
		Phone:       ns.Phone,
		AccessLevel: ns.AccessLevel,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := stf.SetPassword(ns.Password); err != nil {
		return Staff{}, err
	}
	return svc.repo.CreateStaff(ctx, stf)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Staff, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStaff(ctx, filter, core.DBOrdering{Field: "name", Ascending: true})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Staff, error) {
	return svc.repo.GetStaff(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Staff, error) {
	return svc.repo.GetStaff(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStaff) (Staff, error) {
	stf := Staff{
		ID:          id,
		Name:        us.Name,
		Email:       us.Email,
		Phone:       us.Phone,
		AccessLevel: us.AccessLevel,
		UpdatedAt:   time.Now().UTC(),
	}
	if us.Password != "" {
		if err := stf.SetPassword(us.Password); err != nil {
			return Staff{}, err
		}
	}
	return svc.repo.UpdateStaff(ctx, stf, us.IsActive)
}

func (svc *Service) SetLastLogin(ctx context.Context, stf Staff) (Staff, error) {
	return svc.repo.SetLastLogin(ctx, stf)
}

func (svc *Service) Deactivate(ctx context.Context, ids ...string) error {
	return svc.repo.DeactivateStaffByID(ctx, ids...)
}

// RequestPasswordReset emails a signed reset link to the staff member.
// An unknown email is a no-op; we never leak which addresses exist.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	stf, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}

	token, err := svc.MakeToken(stf)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: stf.Name, Address: stf.Email}},
		Subject: "Password Reset",
		TextTemplate: "Hi {{.Data.Name}},\n\n" +
			"You requested a password reset for your {{.AppName}} account.\n" +
			"Open {{.FrontendBaseURL}}/password-reset/{{.Data.UID}}/{{.Data.Token}} to choose a new password.\n\n" +
			"If you did not request this, you can safely ignore this email.\n",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{stf.Name, EncodeUID(stf), token},
	}
	if err := msg.Render(svc.conf); err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// ConfirmPasswordReset verifies the token and sets the new password.
func (svc *Service) ConfirmPasswordReset(ctx context.Context, cr ConfirmPasswordReset) (Staff, error) {
	id, err := DecodeUID(cr.UID)
	if err != nil {
		return Staff{}, core.NewValidationError(errInvalidToken, core.FieldError{Field: "uid", Error: errInvalidToken.Error()})
	}
	stf, err := svc.GetByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Staff{}, core.NewValidationError(errInvalidToken, core.FieldError{Field: "uid", Error: errInvalidToken.Error()})
		}
		return Staff{}, err
	}
	if err = svc.VerifyToken(stf, cr.Token); err != nil {
		return Staff{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	if err = stf.SetPassword(cr.Password); err != nil {
		return Staff{}, err
	}
	stf.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStaff(ctx, stf, nil)
}
