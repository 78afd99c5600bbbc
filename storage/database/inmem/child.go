package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/child"
)

type childRepository struct {
	db *DB
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(db *DB) *childRepository {
	return &childRepository{db: db}
}

// Children

func (repo *childRepository) CheckFormalIDUniqueness(ctx context.Context, formalID string, excluded ...child.Child) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, chd := range repo.db.children {
		if chd.FormalID == formalID && !childExcluded(*chd, excluded) {
			return child.ErrFormalIDExists
		}
	}
	return nil
}

func (repo *childRepository) CreateChild(ctx context.Context, chd child.Child) (child.Child, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	chd.ID = uuid.New().String()
	repo.db.children[chd.ID] = &chd
	return chd, nil
}

func (repo *childRepository) QueryChildren(ctx context.Context, filter *child.QueryFilter, ordering ...core.DBOrdering) ([]child.Child, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	archived := false
	if filter != nil && filter.Archived != nil {
		archived = *filter.Archived
	}

	children := make([]child.Child, 0, len(repo.db.children))
	for _, chd := range repo.db.children {
		if chd.Archived != archived {
			continue
		}
		if filter != nil {
			if filter.Search != "" {
				kw := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(chd.Name), kw) &&
					!strings.Contains(strings.ToLower(chd.FormalID), kw) {
					continue
				}
			}
			if filter.GuardianID != "" && !repo.isLinked(chd.ID, filter.GuardianID) {
				continue
			}
			if !filter.CreatedFrom.IsZero() && chd.CreatedAt.Before(filter.CreatedFrom.UTC()) {
				continue
			}
			if !filter.CreatedTo.IsZero() && chd.CreatedAt.After(filter.CreatedTo.UTC()) {
				continue
			}
		}
		children = append(children, *chd)
	}

	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (repo *childRepository) GetChild(ctx context.Context, filter child.GetFilter) (child.Child, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if chd, ok := repo.db.children[filter.ID]; ok {
			return *chd, nil
		}
		return child.Child{}, child.ErrNotFound
	}
	for _, chd := range repo.db.children {
		if chd.FormalID == filter.FormalID {
			return *chd, nil
		}
	}
	return child.Child{}, child.ErrNotFound
}

func (repo *childRepository) UpdateChild(ctx context.Context, chd child.Child) (child.Child, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.children[chd.ID]
	if !ok {
		return child.Child{}, child.ErrNotFound
	}
	orig.FormalID = chd.FormalID
	orig.Name = chd.Name
	orig.BirthDate = chd.BirthDate
	orig.Gender = chd.Gender
	orig.Allergies = chd.Allergies
	orig.Notes = chd.Notes
	orig.UpdatedAt = chd.UpdatedAt
	return *orig, nil
}

func (repo *childRepository) SetChildPhoto(ctx context.Context, id, photoKey string) (child.Child, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.children[id]
	if !ok {
		return child.Child{}, child.ErrNotFound
	}
	orig.PhotoKey = photoKey
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *childRepository) ArchiveChildByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if chd, ok := repo.db.children[id]; ok {
			chd.Archived = true
			chd.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// Guardians

func (repo *childRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excluded ...child.Guardian) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, grd := range repo.db.guardians {
		if grd.Phone == phone && !guardianExcluded(*grd, excluded) {
			return child.ErrPhoneExists
		}
	}
	return nil
}

func (repo *childRepository) CreateGuardian(ctx context.Context, grd child.Guardian) (child.Guardian, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	grd.ID = uuid.New().String()
	repo.db.guardians[grd.ID] = &grd
	return grd, nil
}

func (repo *childRepository) QueryGuardians(ctx context.Context, search string, ordering ...core.DBOrdering) ([]child.Guardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	guardians := make([]child.Guardian, 0, len(repo.db.guardians))
	for _, grd := range repo.db.guardians {
		if search != "" {
			kw := strings.ToLower(search)
			if !strings.Contains(strings.ToLower(grd.Name), kw) &&
				!strings.Contains(strings.ToLower(grd.Phone), kw) &&
				!strings.Contains(strings.ToLower(grd.Email), kw) {
				continue
			}
		}
		guardians = append(guardians, *grd)
	}

	sort.Slice(guardians, func(i, j int) bool { return guardians[i].Name < guardians[j].Name })
	return guardians, nil
}

func (repo *childRepository) GetGuardianByID(ctx context.Context, id string) (child.Guardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if grd, ok := repo.db.guardians[id]; ok {
		return *grd, nil
	}
	return child.Guardian{}, child.ErrGuardianNotFound
}

func (repo *childRepository) UpdateGuardian(ctx context.Context, grd child.Guardian) (child.Guardian, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.guardians[grd.ID]
	if !ok {
		return child.Guardian{}, child.ErrGuardianNotFound
	}
	orig.Name = grd.Name
	orig.Phone = grd.Phone
	orig.Email = grd.Email
	orig.Address = grd.Address
	orig.UpdatedAt = grd.UpdatedAt
	return *orig, nil
}

func (repo *childRepository) DeleteGuardiansByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.guardians, id)

		links := repo.db.links[:0]
		for _, lnk := range repo.db.links {
			if lnk.guardianID != id {
				links = append(links, lnk)
			}
		}
		repo.db.links = links
	}
	return nil
}

// Links

func (repo *childRepository) LinkGuardian(ctx context.Context, childID, guardianID, relationship string, isPrimary bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, lnk := range repo.db.links {
		if lnk.childID == childID && lnk.guardianID == guardianID {
			return child.ErrAlreadyLinked
		}
	}
	repo.db.links = append(repo.db.links, guardianLink{
		childID:      childID,
		guardianID:   guardianID,
		relationship: relationship,
		isPrimary:    isPrimary,
	})
	return nil
}

func (repo *childRepository) UnlinkGuardian(ctx context.Context, childID, guardianID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	links := repo.db.links[:0]
	for _, lnk := range repo.db.links {
		if lnk.childID != childID || lnk.guardianID != guardianID {
			links = append(links, lnk)
		}
	}
	repo.db.links = links
	return nil
}

func (repo *childRepository) GetChildGuardians(ctx context.Context, childID string) ([]child.LinkedGuardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	linked := make([]child.LinkedGuardian, 0)
	for _, lnk := range repo.db.links {
		if lnk.childID != childID {
			continue
		}
		if grd, ok := repo.db.guardians[lnk.guardianID]; ok {
			linked = append(linked, child.LinkedGuardian{
				Guardian:     *grd,
				Relationship: lnk.relationship,
				IsPrimary:    lnk.isPrimary,
			})
		}
	}

	sort.Slice(linked, func(i, j int) bool {
		if linked[i].IsPrimary != linked[j].IsPrimary {
			return linked[i].IsPrimary
		}
		return linked[i].Name < linked[j].Name
	})
	return linked, nil
}

func (repo *childRepository) isLinked(childID, guardianID string) bool {
	for _, lnk := range repo.db.links {
		if lnk.childID == childID && lnk.guardianID == guardianID {
			return true
		}
	}
	return false
}

func childExcluded(chd child.Child, excluded []child.Child) bool {
	for _, excl := range excluded {
		if excl.ID == chd.ID {
			return true
		}
	}
	return false
}

func guardianExcluded(grd child.Guardian, excluded []child.Guardian) bool {
	for _, excl := range excluded {
		if excl.ID == grd.ID {
			return true
		}
	}
	return false
}
