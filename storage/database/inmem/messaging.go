package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/messaging"
)

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *DB) *messagingRepository {
	return &messagingRepository{db: db}
}

// Templates

func (repo *messagingRepository) CheckTemplateNameUniqueness(ctx context.Context, name string, excluded ...messaging.EmailTemplate) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, tpl := range repo.db.templates {
		if tpl.Name == name && !templateExcluded(*tpl, excluded) {
			return messaging.ErrNameExists
		}
	}
	return nil
}

func (repo *messagingRepository) CreateTemplate(ctx context.Context, tpl messaging.EmailTemplate) (messaging.EmailTemplate, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tpl.ID = uuid.New().String()
	repo.db.templates[tpl.ID] = &tpl
	return tpl, nil
}

func (repo *messagingRepository) QueryTemplates(ctx context.Context, ordering ...core.DBOrdering) ([]messaging.EmailTemplate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	templates := make([]messaging.EmailTemplate, 0, len(repo.db.templates))
	for _, tpl := range repo.db.templates {
		templates = append(templates, *tpl)
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (repo *messagingRepository) GetTemplate(ctx context.Context, idOrName string) (messaging.EmailTemplate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tpl, ok := repo.db.templates[idOrName]; ok {
		return *tpl, nil
	}
	for _, tpl := range repo.db.templates {
		if tpl.Name == idOrName {
			return *tpl, nil
		}
	}
	return messaging.EmailTemplate{}, messaging.ErrTemplateNotFound
}

func (repo *messagingRepository) UpdateTemplate(ctx context.Context, tpl messaging.EmailTemplate) (messaging.EmailTemplate, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.templates[tpl.ID]
	if !ok {
		return messaging.EmailTemplate{}, messaging.ErrTemplateNotFound
	}
	orig.Name = tpl.Name
	orig.Subject = tpl.Subject
	orig.TextBody = tpl.TextBody
	orig.HTMLBody = tpl.HTMLBody
	orig.UpdatedAt = tpl.UpdatedAt
	return *orig, nil
}

func (repo *messagingRepository) DeleteTemplatesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.templates, id)
	}
	return nil
}

// Config

func (repo *messagingRepository) GetConfig(ctx context.Context) (messaging.EmailConfig, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.config, nil
}

func (repo *messagingRepository) UpdateConfig(ctx context.Context, cfg messaging.EmailConfig) (messaging.EmailConfig, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cfg.ID = repo.db.config.ID
	repo.db.config = cfg
	return cfg, nil
}

// Logs

func (repo *messagingRepository) CreateLog(ctx context.Context, entry messaging.EmailLog) (messaging.EmailLog, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = uuid.New().String()
	repo.db.logs[entry.ID] = &entry
	return entry, nil
}

func (repo *messagingRepository) QueryLogs(ctx context.Context, filter *messaging.LogFilter, ordering ...core.DBOrdering) ([]messaging.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	logs := make([]messaging.EmailLog, 0, len(repo.db.logs))
	for _, entry := range repo.db.logs {
		if filter != nil {
			if filter.TemplateID != "" && entry.TemplateID != filter.TemplateID {
				continue
			}
			if filter.Status != "" && entry.Status != filter.Status {
				continue
			}
			if !filter.SentFrom.IsZero() && entry.CreatedAt.Before(filter.SentFrom.UTC()) {
				continue
			}
			if !filter.SentTo.IsZero() && entry.CreatedAt.After(filter.SentTo.UTC()) {
				continue
			}
		}
		logs = append(logs, *entry)
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	return logs, nil
}

func templateExcluded(tpl messaging.EmailTemplate, excluded []messaging.EmailTemplate) bool {
	for _, excl := range excluded {
		if excl.ID == tpl.ID {
			return true
		}
	}
	return false
}
