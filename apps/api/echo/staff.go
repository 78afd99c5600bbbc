package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/staff"
)

var (
	errStaffNotFoundInCtx = errors.New("staff object not found in echo.Context")
	errNoPermsToSetLevel  = "not enough rights to grant this access level"
)

type staffApi struct {
	svc  *staff.Service
	conf *core.Config
}

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *staff.Service, conf *core.Config) {
	api := staffApi{svc: svc, conf: conf}

	sg := g.Group("/staff")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	sg.POST("/login", api.login)
	sg.POST("/password-reset", api.resetPassword)
	sg.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/register", api.create, levelMiddleware(staff.LevelAdmin))
	ag.GET("", api.query, levelMiddleware(staff.LevelTeamLeader))
	ag.DELETE("", api.deactivateMultiple, levelMiddleware(staff.LevelAdmin))
	ag.GET("/levels", api.queryLevels)

	// detail endpoints
	dg := ag.Group("/:id", ctxStaffOrAdminMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.deactivate, levelMiddleware(staff.LevelAdmin))
}

// Handlers

func (api *staffApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *staffApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *staffApi) resetPassword(ctx echo.Context) error {
	var data staff.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	// do not leak which emails exist
	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"detail": "password reset email sent"})
}

func (api *staffApi) confirmPasswordReset(ctx echo.Context) error {
	var data staff.ConfirmPasswordReset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPasswordReset")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := api.svc.ConfirmPasswordReset(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"detail": "password has been reset"})
}

func (api *staffApi) create(ctx echo.Context) error {
	var data staff.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	// ctxStaff cannot grant a level > their own
	ctxStf, err := getContextStaff(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context staff")
	}
	if data.AccessLevel > ctxStf.AccessLevel {
		return core.NewValidationError(nil, core.FieldError{Field: "access_level", Error: errNoPermsToSetLevel})
	}

	stf, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating staff")
	}
	return ctx.JSON(http.StatusCreated, stf)
}

func (api *staffApi) query(ctx echo.Context) error {
	var filter staff.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	members, err := api.svc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *staffApi) queryLevels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, staff.Levels)
}

func (api *staffApi) retrieve(ctx echo.Context) error {
	stf, ok := ctx.Get("object").(staff.Staff)
	if !ok {
		return errStaffNotFoundInCtx
	}
	return ctx.JSON(http.StatusOK, stf)
}

func (api *staffApi) update(ctx echo.Context) error {
	stf, ok := ctx.Get("object").(staff.Staff)
	if !ok {
		return errStaffNotFoundInCtx
	}

	var data staff.UpdateStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStaff")
	}

	ctxStf, err := getContextStaff(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context staff")
	}
	if !ctxStf.IsAdmin() {
		// staff cannot edit other staff
		if stf.ID != ctxStf.ID {
			return errHttpForbidden
		}
		// `IsActive`, `AccessLevel` and `Email` can only be changed by admin
		if data.IsActive != nil || data.AccessLevel != 0 || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(stf, api.svc); err != nil {
		return err
	}

	// ctxStaff cannot grant a level > their own
	if data.AccessLevel > ctxStf.AccessLevel {
		return core.NewValidationError(nil, core.FieldError{Field: "access_level", Error: errNoPermsToSetLevel})
	}

	stf, err = api.svc.Update(ctx.Request().Context(), stf.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating staff")
	}
	return ctx.JSON(http.StatusOK, stf)
}

func (api *staffApi) deactivate(ctx echo.Context) error {
	stf, ok := ctx.Get("object").(staff.Staff)
	if !ok {
		return errStaffNotFoundInCtx
	}

	// ctxStaff cannot deactivate themselves
	ctxStf, err := getContextStaff(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context staff")
	}
	if stf.ID == ctxStf.ID {
		return errHttpForbidden
	}

	if err := api.svc.Deactivate(ctx.Request().Context(), stf.ID); err != nil {
		return errors.Wrap(err, "deactivating staff")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *staffApi) deactivateMultiple(ctx echo.Context) error {
	var data DeactivateMultipleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeactivateMultipleRequest")
	}
	if data.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxStaff cannot deactivate themselves
	ctxStf, err := getContextStaff(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context staff")
	}
	for _, id := range data.IDs {
		if id == ctxStf.ID {
			return errHttpForbidden
		}
	}

	if err := api.svc.Deactivate(ctx.Request().Context(), data.IDs...); err != nil {
		return errors.Wrap(err, "deactivating staff")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func ctxStaffOrAdminMiddleware(svc *staff.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Param("id")
			ctxStf, err := getContextStaff(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context staff")
			}

			if id == ctxStf.ID || ctxStf.IsAdmin() {
				stf, err := svc.GetByID(ctx.Request().Context(), id)
				if err == nil {
					ctx.Set("object", stf)
					return next(ctx)
				} else if err != staff.ErrNotFound {
					return err
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	DeactivateMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}
