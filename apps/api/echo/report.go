package echoapi

import (
	"bytes"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/staff"
	reportsvc "github.com/lojf/nextgen/services/report"
)

const reportURLExpiry = time.Hour

type reportApi struct {
	svc     *attendance.Service
	store   core.FileStore
	mailSvc core.EmailService
	conf    *core.Config
}

func registerReportAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *attendance.Service,
	store core.FileStore,
	mailSvc core.EmailService,
	conf *core.Config,
) {
	api := reportApi{svc: svc, store: store, mailSvc: mailSvc, conf: conf}

	rg := g.Group("/reports", jwt, levelMiddleware(staff.LevelTeamLeader))
	rg.GET("/weekly", api.weekly)
	rg.POST("/weekly/export", api.exportWeekly, levelMiddleware(staff.LevelCoordinator))
}

func (api *reportApi) weekStart(ctx echo.Context) (time.Time, error) {
	raw := ctx.QueryParam("week_start")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	start, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, core.NewValidationError(err,
			core.FieldError{Field: "week_start", Error: "expected a YYYY-MM-DD date"})
	}
	return start, nil
}

func (api *reportApi) weekly(ctx echo.Context) error {
	start, err := api.weekStart(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.Weekly(ctx.Request().Context(), start)
	if err != nil {
		return errors.Wrap(err, "building weekly report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// exportWeekly renders the weekly report as an xlsx workbook, stores it and
// returns a presigned download URL; recipients in the request also get the
// workbook attached to an email.
func (api *reportApi) exportWeekly(ctx echo.Context) error {
	var data ExportWeeklyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExportWeeklyRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	start := time.Now().UTC()
	if data.WeekStart != "" {
		var err error
		if start, err = time.Parse("2006-01-02", data.WeekStart); err != nil {
			return core.NewValidationError(err,
				core.FieldError{Field: "week_start", Error: "expected a YYYY-MM-DD date"})
		}
	}

	reqCtx := ctx.Request().Context()
	rep, err := api.svc.Weekly(reqCtx, start)
	if err != nil {
		return errors.Wrap(err, "building weekly report")
	}

	buf, err := reportsvc.BuildWeeklyXLSX(rep)
	if err != nil {
		return errors.Wrap(err, "rendering weekly workbook")
	}
	content := buf.Bytes()

	key := reportsvc.ObjectKey(rep)
	if err = api.store.Upload(reqCtx, key, buf, int64(len(content)), reportsvc.ContentType); err != nil {
		return errors.Wrap(err, "uploading weekly workbook")
	}

	url, err := api.store.PresignGet(reqCtx, key, reportURLExpiry)
	if err != nil {
		return errors.Wrap(err, "presigning workbook URL")
	}

	if len(data.EmailTo) > 0 {
		to := make([]mail.Address, 0, len(data.EmailTo))
		for _, addr := range data.EmailTo {
			to = append(to, mail.Address{Address: addr})
		}
		msg := &core.EmailMessage{
			To:      to,
			Subject: "Weekly Attendance Report",
			TextTemplate: "Hi,\n\n" +
				"The {{.AppName}} attendance report for the week of {{.Data.WeekStart}} is attached.\n",
			TemplateData: struct{ WeekStart string }{rep.WeekStart.Format("2006-01-02")},
		}
		if err = msg.Render(api.conf); err != nil {
			return errors.Wrap(err, "rendering report email")
		}
		if err = msg.Attach(bytes.NewReader(content), key, reportsvc.ContentType); err != nil {
			return errors.Wrap(err, "attaching workbook")
		}
		api.mailSvc.SendMessages(msg)
	}

	return ctx.JSON(http.StatusOK, ExportWeeklyResponse{Key: key, URL: url, Emailed: len(data.EmailTo)})
}

type (
	ExportWeeklyRequest struct {
		WeekStart string   `json:"week_start"`
		EmailTo   []string `json:"email_to" validate:"omitempty,dive,email"`
	}

	ExportWeeklyResponse struct {
		Key     string `json:"key"`
		URL     string `json:"url"`
		Emailed int    `json:"emailed"`
	}
)

func (er *ExportWeeklyRequest) Validate() error {
	for i, addr := range er.EmailTo {
		er.EmailTo[i] = core.CleanString(addr, true /* lower */)
	}
	return core.Validate.Struct(er)
}
