package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/staff"
)

func Test_attendanceApi_checkIn(t *testing.T) {
	app := setup(t)

	vol := createStaff(t, "Vol", "vol@test.cd", "", staff.LevelVolunteer, true)
	chd := createChild(t, "NG-0001", "Ketsia")
	gone := createChild(t, "NG-0002", "Moved Away")
	mama := createGuardian(t, "Mama Kabila", "+243810000001")
	slot := firstSlot(t)
	volToken := getToken(t, vol)

	if err := childRepo.ArchiveChildByID(context.Background(), gone.ID); err != nil {
		t.Fatalf("ArchiveChildByID() failed: %v", err)
	}

	checkIn := func(childID, slotID, guardianID string) []byte {
		return marchallObj(t, attendance.CheckIn{ChildID: childID, ServiceSlotID: slotID, GuardianID: guardianID})
	}
	unknownID := "b3a4f5d0-5c55-4b3c-93a1-00000000dead"

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: volToken, body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"child_id": "this field is required", "service_slot_id": "this field is required", "guardian_id": "this field is required",
			}),
		},
		{
			name: "unknown child", token: volToken, body: checkIn(unknownID, slot.ID, mama.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"child_id": "child not found"}),
		},
		{
			name: "archived child", token: volToken, body: checkIn(gone.ID, slot.ID, mama.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"child_id": "child record is archived"}),
		},
		{
			name: "unknown service", token: volToken, body: checkIn(chd.ID, unknownID, mama.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"service_slot_id": "service slot not found"}),
		},
		{
			name: "unknown guardian", token: volToken, body: checkIn(chd.ID, slot.ID, unknownID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"guardian_id": "guardian not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/attendance/check-in"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("checked in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-in", volToken, checkIn(chd.ID, slot.ID, mama.ID))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var att attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if att.Status != attendance.StatusCheckedIn || att.CheckInByID != vol.ID ||
			att.ChildName != chd.Name || att.ChildFormalID != chd.FormalID || att.GuardianID != mama.ID {
			t.Errorf("failed! attendance = %+v", att)
		}
	})

	t.Run("double check-in", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"child_id": "child is already checked in for this service"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-in", volToken, checkIn(chd.ID, slot.ID, mama.ID))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_attendanceApi_checkOut(t *testing.T) {
	app := setup(t)

	vol := createStaff(t, "Vol", "vol@test.cd", "", staff.LevelVolunteer, true)
	lead := createStaff(t, "Lead", "lead@test.cd", "", staff.LevelTeamLeader, true)
	chd := createChild(t, "NG-0001", "Ketsia")
	mama := createGuardian(t, "Mama Kabila", "+243810000001")
	slot := firstSlot(t)
	volToken := getToken(t, vol)

	body := marchallObj(t, attendance.CheckIn{ChildID: chd.ID, ServiceSlotID: slot.ID, GuardianID: mama.ID})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-in", volToken, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in failed! code = %v", rec.Code)
	}
	var att attendance.Attendance
	if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}

	checkOut := marchallObj(t, attendance.CheckOut{AttendanceID: att.ID})

	tests := []httpTest{
		{
			name: "required fields", token: volToken, body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"attendance_id": "this field is required"}),
		},
		{
			name: "unknown attendance", token: volToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, attendance.CheckOut{AttendanceID: "b3a4f5d0-5c55-4b3c-93a1-00000000dead"}),
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/attendance/check-out"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("checked out", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-out", getToken(t, lead), checkOut)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var got attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if got.Status != attendance.StatusCheckedOut || got.CheckOutByID != lead.ID || got.CheckOutAt.IsZero() {
			t.Errorf("failed! attendance = %+v", got)
		}
	})

	t.Run("already checked out", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"attendance_id": "child is not checked in"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-out", volToken, checkOut)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_attendanceApi_query(t *testing.T) {
	app := setup(t)

	vol := createStaff(t, "Vol", "vol@test.cd", "", staff.LevelVolunteer, true)
	ketsia := createChild(t, "NG-0001", "Ketsia")
	jemima := createChild(t, "NG-0002", "Jemima")
	mama := createGuardian(t, "Mama Kabila", "+243810000001")
	slot := firstSlot(t)
	volToken := getToken(t, vol)

	for _, chd := range []string{ketsia.ID, jemima.ID} {
		body := marchallObj(t, attendance.CheckIn{ChildID: chd, ServiceSlotID: slot.ID, GuardianID: mama.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/check-in", volToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("check-in failed! code = %v", rec.Code)
		}
	}

	list := func(t *testing.T, path string) []attendance.Attendance {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, volToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v", rec.Code)
		}
		var atts []attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &atts); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return atts
	}

	t.Run("all", func(t *testing.T) {
		if atts := list(t, "/v1/attendance"); len(atts) != 2 {
			t.Errorf("failed! attendance = %+v", atts)
		}
	})

	t.Run("by child", func(t *testing.T) {
		atts := list(t, "/v1/attendance?child_id="+ketsia.ID)
		if len(atts) != 1 || atts[0].ChildID != ketsia.ID {
			t.Errorf("failed! attendance = %+v", atts)
		}
	})

	t.Run("by status", func(t *testing.T) {
		if atts := list(t, "/v1/attendance?status="+attendance.StatusCheckedOut); len(atts) != 0 {
			t.Errorf("failed! attendance = %+v", atts)
		}
	})

	t.Run("today", func(t *testing.T) {
		// twice: second hit comes from the cache
		for i := 0; i < 2; i++ {
			if atts := list(t, "/v1/attendance/today"); len(atts) != 2 {
				t.Errorf("failed! attendance = %+v", atts)
			}
		}
	})
}
