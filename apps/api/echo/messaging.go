package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core/messaging"
	"github.com/lojf/nextgen/core/staff"
)

type messagingApi struct {
	svc *messaging.Service
}

func registerMessagingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *messaging.Service) {
	api := messagingApi{svc: svc}

	eg := g.Group("/emails", jwt, levelMiddleware(staff.LevelCoordinator))

	tg := eg.Group("/templates")
	tg.POST("", api.createTemplate)
	tg.GET("", api.queryTemplates)
	tg.GET("/:id", api.retrieveTemplate)
	tg.PUT("/:id", api.updateTemplate)
	tg.DELETE("/:id", api.deleteTemplate, levelMiddleware(staff.LevelAdmin))

	eg.GET("/config", api.getConfig)
	eg.PUT("/config", api.updateConfig, levelMiddleware(staff.LevelAdmin))
	eg.GET("/logs", api.queryLogs)
	eg.POST("/send", api.send)
}

// Templates

func (api *messagingApi) createTemplate(ctx echo.Context) error {
	var data messaging.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	tpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating email template")
	}
	return ctx.JSON(http.StatusCreated, tpl)
}

func (api *messagingApi) queryTemplates(ctx echo.Context) error {
	templates, err := api.svc.QueryTemplates(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying email templates")
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *messagingApi) retrieveTemplate(ctx echo.Context) error {
	tpl, err := api.svc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == messaging.ErrTemplateNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding email template")
	}
	return ctx.JSON(http.StatusOK, tpl)
}

func (api *messagingApi) updateTemplate(ctx echo.Context) error {
	orig, err := api.svc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == messaging.ErrTemplateNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding email template")
	}

	var data messaging.UpdateTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTemplate")
	}
	if err := data.Validate(orig, api.svc); err != nil {
		return err
	}

	tpl, err := api.svc.UpdateTemplate(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating email template")
	}
	return ctx.JSON(http.StatusOK, tpl)
}

func (api *messagingApi) deleteTemplate(ctx echo.Context) error {
	tpl, err := api.svc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == messaging.ErrTemplateNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding email template")
	}

	if err := api.svc.DeleteTemplates(ctx.Request().Context(), tpl.ID); err != nil {
		return errors.Wrap(err, "deleting email template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Config

func (api *messagingApi) getConfig(ctx echo.Context) error {
	cfg, err := api.svc.GetConfig(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding email config")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *messagingApi) updateConfig(ctx echo.Context) error {
	var data messaging.UpdateConfig
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateConfig")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cfg, err := api.svc.UpdateConfig(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating email config")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

// Logs

func (api *messagingApi) queryLogs(ctx echo.Context) error {
	var filter messaging.LogFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to LogFilter")
	}

	logs, err := api.svc.QueryLogs(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying email logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}

// Send

func (api *messagingApi) send(ctx echo.Context) error {
	var data messaging.SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	entry, err := api.svc.Send(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}
