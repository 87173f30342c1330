package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/user"
)

type analyticsApi struct {
	svc     analytics.Service
	userSvc user.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc analytics.Service, userSvc user.Service) {
	api := analyticsApi{svc: svc, userSvc: userSvc}

	g.GET("/students/:id/stats", api.studentStats, jwt)
	g.GET("/admin/stats", api.adminStats, jwt, adminMiddleware())
}

// Handlers

// studentStats serves a student's derived statistics. Students may only
// request their own; teachers and admins may request anyone's.
func (api *analyticsApi) studentStats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	id := ctx.Param("id")
	if ctxUsr.IsStudent() && ctxUsr.ID != id {
		return errHTTPNotFound
	}

	if _, err := api.userSvc.GetByID(ctx.Request().Context(), id); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHTTPNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}

	stats, err := api.svc.ForStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *analyticsApi) adminStats(ctx echo.Context) error {
	stats, err := api.svc.ForAdmin(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing admin stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
