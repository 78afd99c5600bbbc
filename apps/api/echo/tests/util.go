package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/lojf/nextgen/apps/api/echo"
	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/child"
	"github.com/lojf/nextgen/core/messaging"
	"github.com/lojf/nextgen/core/schedule"
	"github.com/lojf/nextgen/core/staff"
	cachesvc "github.com/lojf/nextgen/services/cache"
	emailsvc "github.com/lojf/nextgen/services/email"
	filestoresvc "github.com/lojf/nextgen/services/filestore"
	inmemdb "github.com/lojf/nextgen/storage/database/inmem"
)

var (
	conf *core.Config

	staffRepo     staff.Repository
	childRepo     child.Repository
	scheduleRepo  schedule.Repository
	messagingRepo messaging.Repository

	staffSvc *staff.Service
	store    = filestoresvc.NewMemoryStore()
	source   = &fakeBookingSource{}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type fakeBookingSource struct {
	bookings []schedule.Booking
}

func (s *fakeBookingSource) ListBookings(_ context.Context, _, _ time.Time) ([]schedule.Booking, error) {
	return s.bookings, nil
}

func setup(t *testing.T) echoapi.Server {
	t.Helper()

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	staffRepo = inmemdb.NewStaffRepository(db)
	childRepo = inmemdb.NewChildRepository(db)
	scheduleRepo = inmemdb.NewScheduleRepository(db)
	messagingRepo = inmemdb.NewMessagingRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	staffSvc = staff.NewService(staffRepo, mailSvc, conf)
	childSvc := child.NewService(childRepo)
	scheduleSvc := schedule.NewService(scheduleRepo, staffSvc, source, conf)
	attendanceSvc := attendance.NewService(
		inmemdb.NewAttendanceRepository(db), childSvc, scheduleSvc, cachesvc.NewMemoryCache(), conf)
	messagingSvc := messaging.NewService(messagingRepo, mailSvc, conf)

	source.bookings = nil
	store = filestoresvc.NewMemoryStore()
	emailsvc.ClearSentMessages()

	// set up server
	return echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		Conf:           conf,
		StaffSvc:       staffSvc,
		ChildSvc:       childSvc,
		ScheduleSvc:    scheduleSvc,
		AttendanceSvc:  attendanceSvc,
		MessagingSvc:   messagingSvc,
		FileStore:      store,
		MailSvc:        mailSvc,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, stf staff.Staff) string {
	claims := echoapi.GetStaffClaims(stf, conf)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// Data helpers

func createStaff(t *testing.T, name, email, pwd string, level int, active bool) staff.Staff {
	t.Helper()

	now := time.Now().UTC()
	stf := staff.Staff{
		Name:        name,
		Email:       email,
		AccessLevel: level,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if pwd != "" {
		if err := stf.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed: %v", err)
		}
	}
	stf, err := staffRepo.CreateStaff(context.Background(), stf)
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	return stf
}

func createChild(t *testing.T, formalID, name string) child.Child {
	t.Helper()

	now := time.Now().UTC()
	chd, err := childRepo.CreateChild(context.Background(), child.Child{
		FormalID:  formalID,
		Name:      name,
		BirthDate: now.AddDate(-6, 0, 0),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateChild() failed: %v", err)
	}
	return chd
}

func createGuardian(t *testing.T, name, phone string) child.Guardian {
	t.Helper()

	now := time.Now().UTC()
	grd, err := childRepo.CreateGuardian(context.Background(), child.Guardian{
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateGuardian() failed: %v", err)
	}
	return grd
}

func createTemplate(t *testing.T, name, subject, textBody string) messaging.EmailTemplate {
	t.Helper()

	now := time.Now().UTC()
	tpl, err := messagingRepo.CreateTemplate(context.Background(), messaging.EmailTemplate{
		Name:      name,
		Subject:   subject,
		TextBody:  textBody,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tpl
}

func firstSlot(t *testing.T) schedule.ServiceSlot {
	t.Helper()

	slots, err := scheduleRepo.QueryServiceSlots(context.Background(), true)
	if err != nil {
		t.Fatalf("QueryServiceSlots() failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("no seeded service slots")
	}
	return slots[0]
}
