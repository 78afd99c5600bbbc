package child

import (
	"time"

	"github.com/lojf/nextgen/core"
)

type Child struct {
	ID        string    `json:"id"`
	FormalID  string    `json:"formal_id"` // unique check-in code, e.g. NG-0421
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birth_date"`
	Gender    string    `json:"gender"`
	Allergies string    `json:"allergies"`
	Notes     string    `json:"notes"`
	PhotoKey  string    `json:"photo_key"` // object storage key, empty if no photo
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	Guardians []LinkedGuardian `json:"guardians,omitempty"`
}

func (c *Child) Age(at time.Time) int {
	years := at.Year() - c.BirthDate.Year()
	if at.YearDay() < c.BirthDate.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

type Guardian struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"` // unique guardian identity
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// LinkedGuardian is a Guardian as attached to a specific Child.
type LinkedGuardian struct {
	Guardian
	Relationship string `json:"relationship"`
	IsPrimary    bool   `json:"is_primary"`
}

// NewChild contains information needed to register a new Child.
type NewChild struct {
	FormalID  string    `json:"formal_id" validate:"required,formalid"`
	Name      string    `json:"name" validate:"required"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
	Gender    string    `json:"gender"`
	Allergies string    `json:"allergies"`
	Notes     string    `json:"notes"`
}

func (nc *NewChild) Validate(svc *Service) error {
	nc.FormalID = core.CleanString(nc.FormalID)
	nc.Name = core.CleanString(nc.Name)
	nc.Gender = core.CleanString(nc.Gender)

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkFormalIDUniqueness(nc.FormalID)
}

// UpdateChild defines what information may be provided to modify an existing Child.
type UpdateChild struct {
	FormalID  string     `json:"formal_id" validate:"omitempty,formalid"`
	Name      string     `json:"name"`
	BirthDate *time.Time `json:"birth_date"`
	Gender    *string    `json:"gender"`
	Allergies *string    `json:"allergies"`
	Notes     *string    `json:"notes"`
}

func (uc *UpdateChild) Validate(orig Child, svc *Service) error {
	if fid := core.CleanString(uc.FormalID); fid != "" {
		uc.FormalID = fid
	} else {
		uc.FormalID = orig.FormalID
	}
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	if err := core.Validate.Struct(uc); err != nil {
		return err
	}
	return svc.checkFormalIDUniqueness(uc.FormalID, orig)
}

// NewGuardian contains information needed to create a new Guardian.
type NewGuardian struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

func (ng *NewGuardian) Validate(svc *Service) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Phone = core.CleanString(ng.Phone)
	ng.Email = core.CleanString(ng.Email, true /* lower */)

	if err := core.Validate.Struct(ng); err != nil {
		return err
	}
	return svc.checkPhoneUniqueness(ng.Phone)
}

// UpdateGuardian defines what information may be provided to modify an existing Guardian.
type UpdateGuardian struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone" validate:"omitempty,phone"`
	Email   string  `json:"email" validate:"omitempty,email"`
	Address *string `json:"address"`
}

func (ug *UpdateGuardian) Validate(orig Guardian, svc *Service) error {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	if phone := core.CleanString(ug.Phone); phone != "" {
		ug.Phone = phone
	} else {
		ug.Phone = orig.Phone
	}
	ug.Email = core.CleanString(ug.Email, true /* lower */)

	if err := core.Validate.Struct(ug); err != nil {
		return err
	}
	return svc.checkPhoneUniqueness(ug.Phone, orig)
}

// LinkGuardian attaches an existing Guardian to a Child.
type LinkGuardian struct {
	GuardianID   string `json:"guardian_id" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
	IsPrimary    bool   `json:"is_primary"`
}

func (lg *LinkGuardian) Validate() error {
	lg.Relationship = core.CleanString(lg.Relationship)
	return core.Validate.Struct(lg)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Archived    *bool     `query:"archived"`
	GuardianID  string    `query:"guardian_id"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Archived == nil && qf.GuardianID == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type GetFilter struct {
	ID       string
	FormalID string
}
