package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/staff"
)

type staffRepository struct {
	db *DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo *staffRepository) query() []staff.Staff {
	members := make([]staff.Staff, 0, len(repo.db.staff))
	for _, stf := range repo.db.staff {
		members = append(members, *stf)
	}
	return members
}

func (repo *staffRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...staff.Staff) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, stf := range repo.query() {
		if stf.Email == email && !staffExcluded(stf, excluded) {
			return staff.ErrEmailExists
		}
	}
	return nil
}

func (repo *staffRepository) CreateStaff(ctx context.Context, stf staff.Staff) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stf.ID = uuid.New().String()
	repo.db.staff[stf.ID] = &stf
	return stf, nil
}

func (repo *staffRepository) QueryStaff(ctx context.Context, filter *staff.QueryFilter, ordering ...core.DBOrdering) ([]staff.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := repo.query()

	if filter != nil {
		filtered := make([]staff.Staff, 0, len(members))
		for _, stf := range members {
			if filter.Search != "" {
				kw := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(stf.Name), kw) &&
					!strings.Contains(strings.ToLower(stf.Email), kw) &&
					!strings.Contains(strings.ToLower(stf.Phone), kw) {
					continue
				}
			}
			if filter.MinLevel > 0 && stf.AccessLevel < filter.MinLevel {
				continue
			}
			if filter.IsActive != nil && stf.IsActive != *filter.IsActive {
				continue
			}
			if !filter.CreatedFrom.IsZero() && stf.CreatedAt.Before(filter.CreatedFrom.UTC()) {
				continue
			}
			if !filter.CreatedTo.IsZero() && stf.CreatedAt.After(filter.CreatedTo.UTC()) {
				continue
			}
			filtered = append(filtered, stf)
		}
		members = filtered
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (repo *staffRepository) GetStaff(ctx context.Context, filter staff.GetFilter) (staff.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if stf, ok := repo.db.staff[filter.ID]; ok {
			return *stf, nil
		}
		return staff.Staff{}, staff.ErrNotFound
	}
	for _, stf := range repo.query() {
		if stf.Email == filter.Email {
			return stf, nil
		}
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (repo *staffRepository) UpdateStaff(ctx context.Context, stf staff.Staff, isActive *bool) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.staff[stf.ID]
	if !ok {
		return staff.Staff{}, staff.ErrNotFound
	}
	if stf.Name != "" {
		orig.Name = stf.Name
	}
	if stf.Email != "" {
		orig.Email = stf.Email
	}
	orig.Phone = stf.Phone
	if stf.AccessLevel > 0 {
		orig.AccessLevel = stf.AccessLevel
	}
	if stf.PasswordHash != nil {
		orig.PasswordHash = stf.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = stf.UpdatedAt

	return *orig, nil
}

func (repo *staffRepository) SetLastLogin(ctx context.Context, stf staff.Staff) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.staff[stf.ID]
	if !ok {
		return staff.Staff{}, staff.ErrNotFound
	}
	orig.LastLogin = time.Now().UTC()
	return *orig, nil
}

func (repo *staffRepository) DeactivateStaffByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if stf, ok := repo.db.staff[id]; ok {
			stf.IsActive = false
			stf.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func staffExcluded(stf staff.Staff, excluded []staff.Staff) bool {
	for _, excl := range excluded {
		if excl.ID == stf.ID {
			return true
		}
	}
	return false
}
