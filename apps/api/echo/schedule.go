package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/schedule"
	"github.com/lojf/nextgen/core/staff"
)

type scheduleApi struct {
	svc *schedule.Service
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *schedule.Service) {
	api := scheduleApi{svc: svc}

	sg := g.Group("/services", jwt)
	sg.GET("", api.querySlots)
	sg.GET("/:id", api.retrieveSlot)
	sg.PUT("/:id", api.updateSlot, levelMiddleware(staff.LevelCoordinator))

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.createAssignment, levelMiddleware(staff.LevelCoordinator))
	ag.GET("", api.queryAssignments)
	ag.DELETE("/:id", api.deleteAssignment, levelMiddleware(staff.LevelCoordinator))
	ag.POST("/sync", api.sync, levelMiddleware(staff.LevelCoordinator))
}

// Slots

func (api *scheduleApi) querySlots(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("active") == "true"
	slots, err := api.svc.QuerySlots(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying service slots")
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *scheduleApi) retrieveSlot(ctx echo.Context) error {
	slot, err := api.svc.GetSlotByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == schedule.ErrSlotNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding service slot")
	}
	return ctx.JSON(http.StatusOK, slot)
}

func (api *scheduleApi) updateSlot(ctx echo.Context) error {
	var data schedule.UpdateServiceSlot
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateServiceSlot")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	slot, err := api.svc.UpdateSlot(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if err == schedule.ErrSlotNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating service slot")
	}
	return ctx.JSON(http.StatusOK, slot)
}

// Assignments

func (api *scheduleApi) createAssignment(ctx echo.Context) error {
	var data schedule.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), data)
	if err != nil {
		switch err {
		case schedule.ErrSlotNotFound:
			return errHttpNotFound
		case schedule.ErrAlreadyAssigned:
			return core.NewValidationError(err, core.FieldError{Field: "staff_id", Error: err.Error()})
		}
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *scheduleApi) queryAssignments(ctx echo.Context) error {
	var filter schedule.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *scheduleApi) deleteAssignment(ctx echo.Context) error {
	if _, err := api.svc.GetAssignmentByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if err == schedule.ErrAssignmentNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding assignment")
	}

	if err := api.svc.DeleteAssignments(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) sync(ctx echo.Context) error {
	res, err := api.svc.Sync(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "syncing assignments")
	}
	return ctx.JSON(http.StatusOK, res)
}
