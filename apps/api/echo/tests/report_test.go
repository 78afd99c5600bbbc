package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/staff"

	echoapi "github.com/lojf/nextgen/apps/api/echo"
	emailsvc "github.com/lojf/nextgen/services/email"
)

func Test_reportApi_weekly(t *testing.T) {
	app := setup(t)

	vol := createStaff(t, "Vol", "vol@test.cd", "", staff.LevelVolunteer, true)
	lead := createStaff(t, "Lead", "lead@test.cd", "", staff.LevelTeamLeader, true)
	leadToken := getToken(t, lead)

	chd := createChild(t, "NG-0001", "Ketsia")
	mama := createGuardian(t, "Mama Kabila", "+243810000001")
	slot := firstSlot(t)

	body := marchallObj(t, attendance.CheckIn{ChildID: chd.ID, ServiceSlotID: slot.ID, GuardianID: mama.ID})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-in", getToken(t, vol), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in failed! code = %v", rec.Code)
	}

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/reports/weekly",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Team leader required", path: "/v1/reports/weekly", token: getToken(t, vol),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "bad week start", path: "/v1/reports/weekly?week_start=lol", token: leadToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"week_start": "expected a YYYY-MM-DD date"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("current week", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/weekly", leadToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var rep attendance.WeeklyReport
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if rep.WeekStart.Weekday() != time.Monday {
			t.Errorf("failed! weekStart = %v", rep.WeekStart)
		}
		if rep.TotalCheckIns != 1 || rep.UniqueChildren != 1 || rep.NewChildren != 1 {
			t.Errorf("failed! report = %+v", rep)
		}
		if len(rep.PerDay) != 7 {
			t.Fatalf("failed! perDay = %+v", rep.PerDay)
		}
		var dayTotal int
		for i, dc := range rep.PerDay {
			if !dc.Date.Equal(rep.WeekStart.AddDate(0, 0, i)) {
				t.Errorf("failed! perDay[%d] = %+v", i, dc)
			}
			dayTotal += dc.CheckIns
		}
		if dayTotal != rep.TotalCheckIns {
			t.Errorf("failed! dayTotal = %v; want %v", dayTotal, rep.TotalCheckIns)
		}
	})

	t.Run("week start snaps to Monday", func(t *testing.T) {
		// 2021-05-05 was a Wednesday
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/weekly?week_start=2021-05-05", leadToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v", rec.Code)
		}
		var rep attendance.WeeklyReport
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		monday := time.Date(2021, 5, 3, 0, 0, 0, 0, time.UTC)
		if !rep.WeekStart.Equal(monday) || !rep.WeekEnd.Equal(monday.AddDate(0, 0, 7)) {
			t.Errorf("failed! report = %+v", rep)
		}
		if rep.TotalCheckIns != 0 {
			t.Errorf("failed! totalCheckIns = %v", rep.TotalCheckIns)
		}
	})
}

func Test_reportApi_exportWeekly(t *testing.T) {
	app := setup(t)

	lead := createStaff(t, "Lead", "lead@test.cd", "", staff.LevelTeamLeader, true)
	coord := createStaff(t, "Coord", "coord@test.cd", "", staff.LevelCoordinator, true)
	coordToken := getToken(t, coord)

	chd := createChild(t, "NG-0001", "Ketsia")
	mama := createGuardian(t, "Mama Kabila", "+243810000001")
	slot := firstSlot(t)

	body := marchallObj(t, attendance.CheckIn{ChildID: chd.ID, ServiceSlotID: slot.ID, GuardianID: mama.ID})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-in", coordToken, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in failed! code = %v", rec.Code)
	}

	tests := []httpTest{
		{
			name: "Coordinator required", token: getToken(t, lead), body: []byte("{}"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid recipient", token: coordToken,
			body:     marchallObj(t, echoapi.ExportWeeklyRequest{EmailTo: []string{"lol"}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email_to[0]": "email_to[0] must be a valid email address"}),
		},
		{
			name: "bad week start", token: coordToken,
			body:     marchallObj(t, echoapi.ExportWeeklyRequest{WeekStart: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"week_start": "expected a YYYY-MM-DD date"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/reports/weekly/export"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("exported", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/reports/weekly/export", coordToken, []byte("{}"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.ExportWeeklyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !strings.HasPrefix(resp.Key, "reports/weekly-") || !strings.HasSuffix(resp.Key, ".xlsx") {
			t.Errorf("failed! key = %q", resp.Key)
		}
		if resp.URL != "memory://"+resp.Key || resp.Emailed != 0 {
			t.Errorf("failed! resp = %+v", resp)
		}
		if !store.Has(resp.Key) {
			t.Error("failed! workbook not stored")
		}
	})

	t.Run("emailed", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		body := marchallObj(t, echoapi.ExportWeeklyRequest{EmailTo: []string{"pastor@test.cd"}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/reports/weekly/export", coordToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.ExportWeeklyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if resp.Emailed != 1 {
			t.Errorf("failed! resp = %+v", resp)
		}

		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("failed! SentMessages = %+v", emailsvc.SentMessages)
		}
		msg := emailsvc.SentMessages[0]
		if msg.Subject != "Weekly Attendance Report" || len(msg.Attachments) != 1 || msg.Attachments[0].Filename != resp.Key {
			t.Errorf("failed! message = %+v", msg)
		}
	})
}
