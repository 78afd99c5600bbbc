package child

import (
	"context"
	"errors"
	"time"

	"github.com/lojf/nextgen/core"
)

var (
	// errors
	ErrNotFound         = errors.New("child not found")
	ErrGuardianNotFound = errors.New("guardian not found")
	ErrFormalIDExists   = errors.New("a child with this formal ID already exists")
	ErrPhoneExists      = errors.New("a guardian with this phone number already exists")
	ErrAlreadyLinked    = errors.New("this guardian is already linked to the child")
	ErrChildArchived    = errors.New("child record is archived")
)

type (
	Repository interface {
		CheckFormalIDUniqueness(ctx context.Context, formalID string, excluded ...Child) error
		CreateChild(ctx context.Context, chd Child) (Child, error)
		// QueryChildren applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Name or FormalID.
		// Archived children are excluded unless the filter says otherwise.
		QueryChildren(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Child, error)
		GetChild(ctx context.Context, filter GetFilter) (Child, error)
		UpdateChild(ctx context.Context, chd Child) (Child, error)
		SetChildPhoto(ctx context.Context, id, photoKey string) (Child, error)
		ArchiveChildByID(ctx context.Context, ids ...string) error

		CheckPhoneUniqueness(ctx context.Context, phone string, excluded ...Guardian) error
		CreateGuardian(ctx context.Context, grd Guardian) (Guardian, error)
		QueryGuardians(ctx context.Context, search string, ordering ...core.DBOrdering) ([]Guardian, error)
		GetGuardianByID(ctx context.Context, id string) (Guardian, error)
		UpdateGuardian(ctx context.Context, grd Guardian) (Guardian, error)
		DeleteGuardiansByID(ctx context.Context, ids ...string) error

		LinkGuardian(ctx context.Context, childID, guardianID, relationship string, isPrimary bool) error
		UnlinkGuardian(ctx context.Context, childID, guardianID string) error
		GetChildGuardians(ctx context.Context, childID string) ([]LinkedGuardian, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkFormalIDUniqueness(formalID string, excl ...Child) error {
	if err := svc.repo.CheckFormalIDUniqueness(context.Background(), formalID, excl...); err != nil {
		if err == ErrFormalIDExists {
			return core.NewValidationError(err, core.FieldError{Field: "formal_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) checkPhoneUniqueness(phone string, excl ...Guardian) error {
	if err := svc.repo.CheckPhoneUniqueness(context.Background(), phone, excl...); err != nil {
		if err == ErrPhoneExists {
			return core.NewValidationError(err, core.FieldError{Field: "phone", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Children

func (svc *Service) Create(ctx context.Context, nc NewChild) (Child, error) {
	now := time.Now().UTC()
	chd := Child{
		FormalID:  nc.FormalID,
		Name:      nc.Name,
		BirthDate: nc.BirthDate,
		Gender:    nc.Gender,
		Allergies: nc.Allergies,
		Notes:     nc.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateChild(ctx, chd)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Child, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryChildren(ctx, filter, core.DBOrdering{Field: "name", Ascending: true})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Child, error) {
	chd, err := svc.repo.GetChild(ctx, GetFilter{ID: id})
	if err != nil {
		return Child{}, err
	}
	grds, err := svc.repo.GetChildGuardians(ctx, chd.ID)
	if err != nil {
		return Child{}, err
	}
	chd.Guardians = grds
	return chd, nil
}

func (svc *Service) GetByFormalID(ctx context.Context, formalID string) (Child, error) {
	return svc.repo.GetChild(ctx, GetFilter{FormalID: core.CleanString(formalID)})
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateChild) (Child, error) {
	orig, err := svc.repo.GetChild(ctx, GetFilter{ID: id})
	if err != nil {
		return Child{}, err
	}

	chd := Child{
		ID:        id,
		FormalID:  uc.FormalID,
		Name:      uc.Name,
		BirthDate: orig.BirthDate,
		Gender:    orig.Gender,
		Allergies: orig.Allergies,
		Notes:     orig.Notes,
		UpdatedAt: time.Now().UTC(),
	}
	if uc.BirthDate != nil {
		chd.BirthDate = *uc.BirthDate
	}
	if uc.Gender != nil {
		chd.Gender = *uc.Gender
	}
	if uc.Allergies != nil {
		chd.Allergies = *uc.Allergies
	}
	if uc.Notes != nil {
		chd.Notes = *uc.Notes
	}
	return svc.repo.UpdateChild(ctx, chd)
}

// SetPhoto points the child record at an uploaded object storage key and
// returns the previous key so the caller can delete the stale object.
func (svc *Service) SetPhoto(ctx context.Context, id, photoKey string) (Child, string, error) {
	orig, err := svc.repo.GetChild(ctx, GetFilter{ID: id})
	if err != nil {
		return Child{}, "", err
	}
	chd, err := svc.repo.SetChildPhoto(ctx, id, photoKey)
	if err != nil {
		return Child{}, "", err
	}
	return chd, orig.PhotoKey, nil
}

// Archive soft-deletes children; archived records drop out of listings and
// can no longer check in.
func (svc *Service) Archive(ctx context.Context, ids ...string) error {
	return svc.repo.ArchiveChildByID(ctx, ids...)
}

// Guardians

func (svc *Service) CreateGuardian(ctx context.Context, ng NewGuardian) (Guardian, error) {
	now := time.Now().UTC()
	grd := Guardian{
		Name:      ng.Name,
		Phone:     ng.Phone,
		Email:     ng.Email,
		Address:   ng.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateGuardian(ctx, grd)
}

func (svc *Service) QueryGuardians(ctx context.Context, search string) ([]Guardian, error) {
	return svc.repo.QueryGuardians(ctx, core.CleanString(search), core.DBOrdering{Field: "name", Ascending: true})
}

func (svc *Service) GetGuardianByID(ctx context.Context, id string) (Guardian, error) {
	return svc.repo.GetGuardianByID(ctx, id)
}

func (svc *Service) UpdateGuardian(ctx context.Context, id string, ug UpdateGuardian) (Guardian, error) {
	orig, err := svc.repo.GetGuardianByID(ctx, id)
	if err != nil {
		return Guardian{}, err
	}

	grd := Guardian{
		ID:        id,
		Name:      ug.Name,
		Phone:     ug.Phone,
		Email:     ug.Email,
		Address:   orig.Address,
		UpdatedAt: time.Now().UTC(),
	}
	if ug.Address != nil {
		grd.Address = *ug.Address
	}
	return svc.repo.UpdateGuardian(ctx, grd)
}

func (svc *Service) DeleteGuardians(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteGuardiansByID(ctx, ids...)
}

// Links

func (svc *Service) Link(ctx context.Context, childID string, lg LinkGuardian) error {
	if _, err := svc.repo.GetChild(ctx, GetFilter{ID: childID}); err != nil {
		return err
	}
	if _, err := svc.repo.GetGuardianByID(ctx, lg.GuardianID); err != nil {
		return err
	}
	return svc.repo.LinkGuardian(ctx, childID, lg.GuardianID, lg.Relationship, lg.IsPrimary)
}

func (svc *Service) Unlink(ctx context.Context, childID, guardianID string) error {
	return svc.repo.UnlinkGuardian(ctx, childID, guardianID)
}
