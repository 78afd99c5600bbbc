package inmemdb

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/child"
	"github.com/lojf/nextgen/core/messaging"
	"github.com/lojf/nextgen/core/schedule"
	"github.com/lojf/nextgen/core/staff"
)

type guardianLink struct {
	childID      string
	guardianID   string
	relationship string
	isPrimary    bool
}

type DB struct {
	sync.RWMutex

	staff       map[string]*staff.Staff
	children    map[string]*child.Child
	guardians   map[string]*child.Guardian
	links       []guardianLink
	slots       map[string]*schedule.ServiceSlot
	assignments map[string]*schedule.Assignment
	attendance  map[string]*attendance.Attendance
	templates   map[string]*messaging.EmailTemplate
	logs        map[string]*messaging.EmailLog
	config      messaging.EmailConfig
}

// Open returns a fresh DB seeded with the default service slots and the
// singleton email config row, mirroring the initial migration.
func Open() (*DB, error) {
	db := &DB{
		staff:       make(map[string]*staff.Staff),
		children:    make(map[string]*child.Child),
		guardians:   make(map[string]*child.Guardian),
		slots:       make(map[string]*schedule.ServiceSlot),
		assignments: make(map[string]*schedule.Assignment),
		attendance:  make(map[string]*attendance.Attendance),
		templates:   make(map[string]*messaging.EmailTemplate),
		logs:        make(map[string]*messaging.EmailLog),
		config:      messaging.EmailConfig{ID: uuid.New().String(), UpdatedAt: time.Now().UTC()},
	}

	now := time.Now().UTC()
	seed := []schedule.ServiceSlot{
		{ID: uuid.New().String(), Name: "First Service", StartTime: "09:00", Capacity: 40, IsActive: true, CreatedAt: now},
		{ID: uuid.New().String(), Name: "Second Service", StartTime: "11:00", Capacity: 40, IsActive: true, CreatedAt: now},
		{ID: uuid.New().String(), Name: "Evening Service", StartTime: "17:00", Capacity: 30, IsActive: true, CreatedAt: now},
	}
	for i := range seed {
		db.slots[seed[i].ID] = &seed[i]
	}
	return db, nil
}
