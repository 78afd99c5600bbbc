package echoapi

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/child"
	"github.com/lojf/nextgen/core/staff"
)

const photoURLExpiry = 15 * time.Minute

type childApi struct {
	svc   *child.Service
	store core.FileStore
}

func registerChildAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *child.Service, store core.FileStore) {
	api := childApi{svc: svc, store: store}

	cg := g.Group("/children", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.archive, levelMiddleware(staff.LevelCoordinator))
	cg.POST("/:id/photo", api.uploadPhoto)
	cg.GET("/:id/photo", api.photoURL)
	cg.POST("/:id/guardians", api.link)
	cg.DELETE("/:id/guardians/:guardianID", api.unlink)

	gg := g.Group("/guardians", jwt)
	gg.POST("", api.createGuardian)
	gg.GET("", api.queryGuardians)
	gg.GET("/:id", api.retrieveGuardian)
	gg.PUT("/:id", api.updateGuardian)
	gg.DELETE("/:id", api.deleteGuardian, levelMiddleware(staff.LevelCoordinator))
}

// Children

func (api *childApi) create(ctx echo.Context) error {
	var data child.NewChild
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChild")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	chd, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating child")
	}
	return ctx.JSON(http.StatusCreated, chd)
}

func (api *childApi) query(ctx echo.Context) error {
	var filter child.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	children, err := api.svc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *childApi) retrieve(ctx echo.Context) error {
	chd, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == child.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding child")
	}
	return ctx.JSON(http.StatusOK, chd)
}

func (api *childApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == child.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding child")
	}

	var data child.UpdateChild
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChild")
	}
	if err := data.Validate(orig, api.svc); err != nil {
		return err
	}

	chd, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating child")
	}
	return ctx.JSON(http.StatusOK, chd)
}

func (api *childApi) archive(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if err == child.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding child")
	}

	if err := api.svc.Archive(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "archiving child")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// uploadPhoto stores the uploaded file first, then points the child record at
// it; a failed save removes the fresh object, a successful one reaps the old.
func (api *childApi) uploadPhoto(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	chd, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		if err == child.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding child")
	}

	fh, err := ctx.FormFile("photo")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "photo", Error: "photo file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded photo")
	}
	defer func() { _ = src.Close() }()

	key := "children/" + chd.ID + "/" + uuid.New().String() + filepath.Ext(fh.Filename)
	contentType := fh.Header.Get("Content-Type")
	if err = api.store.Upload(reqCtx, key, src, fh.Size, contentType); err != nil {
		return errors.Wrap(err, "uploading photo")
	}

	chd, prevKey, err := api.svc.SetPhoto(reqCtx, chd.ID, key)
	if err != nil {
		_ = api.store.Remove(reqCtx, key)
		return errors.Wrap(err, "setting child photo")
	}
	if prevKey != "" {
		_ = api.store.Remove(reqCtx, prevKey)
	}

	return ctx.JSON(http.StatusOK, chd)
}

func (api *childApi) photoURL(ctx echo.Context) error {
	chd, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == child.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding child")
	}
	if chd.PhotoKey == "" {
		return errHttpNotFound
	}

	url, err := api.store.PresignGet(ctx.Request().Context(), chd.PhotoKey, photoURLExpiry)
	if err != nil {
		return errors.Wrap(err, "presigning photo URL")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"url": url})
}

// Links

func (api *childApi) link(ctx echo.Context) error {
	var data child.LinkGuardian
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkGuardian")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	err := api.svc.Link(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		switch err {
		case child.ErrNotFound:
			return errHttpNotFound
		case child.ErrGuardianNotFound:
			return core.NewValidationError(err, core.FieldError{Field: "guardian_id", Error: err.Error()})
		case child.ErrAlreadyLinked:
			return core.NewValidationError(err, core.FieldError{Field: "guardian_id", Error: err.Error()})
		}
		return errors.Wrap(err, "linking guardian")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *childApi) unlink(ctx echo.Context) error {
	err := api.svc.Unlink(ctx.Request().Context(), ctx.Param("id"), ctx.Param("guardianID"))
	if err != nil {
		return errors.Wrap(err, "unlinking guardian")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Guardians

func (api *childApi) createGuardian(ctx echo.Context) error {
	var data child.NewGuardian
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGuardian")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	grd, err := api.svc.CreateGuardian(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating guardian")
	}
	return ctx.JSON(http.StatusCreated, grd)
}

func (api *childApi) queryGuardians(ctx echo.Context) error {
	guardians, err := api.svc.QueryGuardians(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying guardians")
	}
	return ctx.JSON(http.StatusOK, guardians)
}

func (api *childApi) retrieveGuardian(ctx echo.Context) error {
	grd, err := api.svc.GetGuardianByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == child.ErrGuardianNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding guardian")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *childApi) updateGuardian(ctx echo.Context) error {
	orig, err := api.svc.GetGuardianByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == child.ErrGuardianNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding guardian")
	}

	var data child.UpdateGuardian
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGuardian")
	}
	if err := data.Validate(orig, api.svc); err != nil {
		return err
	}

	grd, err := api.svc.UpdateGuardian(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating guardian")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *childApi) deleteGuardian(ctx echo.Context) error {
	if _, err := api.svc.GetGuardianByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if err == child.ErrGuardianNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding guardian")
	}

	if err := api.svc.DeleteGuardians(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting guardian")
	}
	return ctx.NoContent(http.StatusNoContent)
}
