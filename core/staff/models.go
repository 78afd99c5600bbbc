package staff

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lojf/nextgen/core"
)

// Access levels. Staff can never grant a level above their own.
const (
	LevelVolunteer   = 1
	LevelTeamLeader  = 3
	LevelCoordinator = 5
	LevelAdmin       = 10
)

type Level struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

var Levels = []Level{
	{Name: "Volunteer", Value: LevelVolunteer},
	{Name: "Team Leader", Value: LevelTeamLeader},
	{Name: "Coordinator", Value: LevelCoordinator},
	{Name: "Admin", Value: LevelAdmin},
}

func IsValidLevel(lvl int) bool {
	for _, l := range Levels {
		if l.Value == lvl {
			return true
		}
	}
	return false
}

type Staff struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	AccessLevel  int       `json:"access_level"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (s *Staff) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Staff) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s *Staff) IsTeamLeader() bool  { return s.AccessLevel >= LevelTeamLeader }
func (s *Staff) IsCoordinator() bool { return s.AccessLevel >= LevelCoordinator }
func (s *Staff) IsAdmin() bool       { return s.AccessLevel >= LevelAdmin }

// NewStaff contains information needed to create a new Staff member.
type NewStaff struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	AccessLevel     int    `json:"access_level" validate:"required,accesslevel"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ns *NewStaff) Validate(svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(ns.Email)
}

// UpdateStaff defines what information may be provided to modify an existing Staff member.
type UpdateStaff struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	AccessLevel     int    `json:"access_level" validate:"omitempty,accesslevel"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (us *UpdateStaff) Validate(orig Staff, svc *Service) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}

	if email := core.CleanString(us.Email, true /* lower */); email != "" {
		us.Email = email
	} else {
		us.Email = orig.Email
	}
	us.Phone = core.CleanString(us.Phone)

	if err := core.Validate.Struct(us); err != nil {
		return err
	}
	return svc.checkUniqueness(us.Email, orig)
}

type ResetPassword struct {
	Email string `json:"email" validate:"required,email"`
}

func (rp *ResetPassword) Validate() error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	return core.Validate.Struct(rp)
}

type ConfirmPasswordReset struct {
	Token           string `json:"token" validate:"required"`
	UID             string `json:"uid" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cr ConfirmPasswordReset) Validate() error { return core.Validate.Struct(cr) }

type QueryFilter struct {
	Search      string    `query:"search"`
	MinLevel    int       `query:"min_level"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.MinLevel == 0 && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type GetFilter struct {
	ID    string
	Email string
}
