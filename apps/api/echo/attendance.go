package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance", jwt)
	ag.POST("/check-in", api.checkIn)
	ag.POST("/check-out", api.checkOut)
	ag.GET("", api.query)
	ag.GET("/today", api.queryToday)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	att, err := api.svc.CheckIn(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *attendanceApi) checkOut(ctx echo.Context) error {
	var data attendance.CheckOut
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckOut")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	att, err := api.svc.CheckOut(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		if err == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	var filter attendance.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	atts, err := api.svc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *attendanceApi) queryToday(ctx echo.Context) error {
	atts, err := api.svc.QueryToday(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying today's attendance")
	}
	return ctx.JSON(http.StatusOK, atts)
}
