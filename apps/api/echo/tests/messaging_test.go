package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/lojf/nextgen/core/messaging"
	"github.com/lojf/nextgen/core/staff"

	emailsvc "github.com/lojf/nextgen/services/email"
)

func Test_messagingApi_templates(t *testing.T) {
	app := setup(t)

	vol := createStaff(t, "Vol", "vol@test.cd", "", staff.LevelVolunteer, true)
	coord := createStaff(t, "Coord", "coord@test.cd", "", staff.LevelCoordinator, true)
	admin := createStaff(t, "Admin", "admin@test.cd", "", staff.LevelAdmin, true)
	coordToken := getToken(t, coord)

	welcome := createTemplate(t, "welcome_guardian", "Welcome!", "Hello {{.Data.Name}}")

	newTemplate := func(name string) []byte {
		return marchallObj(t, messaging.NewTemplate{Name: name, Subject: "Subject", TextBody: "Body"})
	}

	tests := []httpTest{
		{
			name: "create: Auth required", method: http.MethodPost, path: "/v1/emails/templates",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "create: Coordinator required", method: http.MethodPost, path: "/v1/emails/templates", token: getToken(t, vol),
			body:     newTemplate("reminder"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: required fields", method: http.MethodPost, path: "/v1/emails/templates", token: coordToken,
			body:     []byte("{}"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{
				"name": "this field is required", "subject": "this field is required", "text_body": "this field is required",
			}),
		},
		{
			name: "create: invalid name", method: http.MethodPost, path: "/v1/emails/templates", token: coordToken,
			body:     newTemplate("no spaces!"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "create: duplicate name", method: http.MethodPost, path: "/v1/emails/templates", token: coordToken,
			body:     newTemplate("welcome_guardian"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "an email template with this name already exists"}),
		},
		{
			name: "retrieve", method: http.MethodGet, path: "/v1/emails/templates/" + welcome.ID, token: coordToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, welcome),
		},
		{
			name: "list", method: http.MethodGet, path: "/v1/emails/templates", token: coordToken,
			wantCode: http.StatusOK, wantData: marchallList(t, welcome),
		},
		{
			name: "delete: Admin required", method: http.MethodDelete, path: "/v1/emails/templates/" + welcome.ID, token: coordToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/emails/templates", coordToken, newTemplate("Reminder"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var tpl messaging.EmailTemplate
		if err := json.Unmarshal(rec.Body.Bytes(), &tpl); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		// handles are lowercased
		if tpl.ID == "" || tpl.Name != "reminder" {
			t.Errorf("failed! template = %+v", tpl)
		}
	})

	t.Run("update", func(t *testing.T) {
		body := marchallObj(t, messaging.UpdateTemplate{Subject: "Karibu!"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/emails/templates/"+welcome.ID, coordToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var tpl messaging.EmailTemplate
		if err := json.Unmarshal(rec.Body.Bytes(), &tpl); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if tpl.Subject != "Karibu!" || tpl.Name != welcome.Name || tpl.TextBody != welcome.TextBody {
			t.Errorf("failed! template = %+v", tpl)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/emails/templates/"+welcome.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v", rec.Code)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/emails/templates/"+welcome.ID, coordToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNotFound)
		}
	})
}

func Test_messagingApi_config(t *testing.T) {
	app := setup(t)

	coord := createStaff(t, "Coord", "coord@test.cd", "", staff.LevelCoordinator, true)
	admin := createStaff(t, "Admin", "admin@test.cd", "", staff.LevelAdmin, true)
	coordToken := getToken(t, coord)
	adminToken := getToken(t, admin)

	update := messaging.UpdateConfig{FromName: "NextGen Kids", FromEmail: "kids@test.cd", ReplyTo: "office@test.cd"}

	tests := []httpTest{
		{
			name: "update: Admin required", method: http.MethodPut, token: coordToken,
			body:     marchallObj(t, update),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "update: required fields", method: http.MethodPut, token: adminToken,
			body:     []byte("{}"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{
				"from_name": "this field is required", "from_email": "this field is required",
			}),
		},
		{
			name: "update: invalid email", method: http.MethodPut, token: adminToken,
			body:     marchallObj(t, messaging.UpdateConfig{FromName: "NextGen Kids", FromEmail: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"from_email": "from_email must be a valid email address"}),
		},
	}
	for _, tt := range tests {
		tt.path = "/v1/emails/config"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("update then get", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/emails/config", adminToken, marchallObj(t, update))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/emails/config", coordToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v", rec.Code)
		}
		var cfg messaging.EmailConfig
		if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if cfg.FromName != update.FromName || cfg.FromEmail != update.FromEmail || cfg.ReplyTo != update.ReplyTo {
			t.Errorf("failed! config = %+v", cfg)
		}
	})
}

func Test_messagingApi_send(t *testing.T) {
	app := setup(t)

	coord := createStaff(t, "Coord", "coord@test.cd", "", staff.LevelCoordinator, true)
	coordToken := getToken(t, coord)

	createTemplate(t, "welcome_guardian", "Welcome!", "Hello {{.Data.Name}}, karibu.")

	send := func(tplName string, to []string, data map[string]interface{}) []byte {
		return marchallObj(t, messaging.SendRequest{TemplateName: tplName, To: to, Data: data})
	}

	tests := []httpTest{
		{
			name: "required fields", token: coordToken, body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"template_name": "this field is required", "to": "this field is required",
			}),
		},
		{
			name: "unknown template", token: coordToken, wantCode: http.StatusBadRequest,
			body:     send("nope", []string{"mama@test.cd"}, nil),
			wantData: marchallObj(t, map[string]string{"template_name": "email template not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/emails/send"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("sent", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		body := send("welcome_guardian", []string{"mama@test.cd"}, map[string]interface{}{"Name": "Mama Kabila"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/emails/send", coordToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var entry messaging.EmailLog
		if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if entry.Status != messaging.StatusSent || entry.TemplateName != "welcome_guardian" || entry.Recipients != "mama@test.cd" {
			t.Errorf("failed! log = %+v", entry)
		}

		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("failed! SentMessages = %+v", emailsvc.SentMessages)
		}
		msg := emailsvc.SentMessages[0]
		if msg.Subject != "Welcome!" || !strings.Contains(msg.TextContent, "Hello Mama Kabila") {
			t.Errorf("failed! message = %+v", msg)
		}

		// the send attempt is logged
		req, rec = newAuthRequest(http.MethodGet, "/v1/emails/logs?status="+messaging.StatusSent, coordToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v", rec.Code)
		}
		var logs []messaging.EmailLog
		if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(logs) != 1 || logs[0].ID != entry.ID {
			t.Errorf("failed! logs = %+v", logs)
		}
	})
}
