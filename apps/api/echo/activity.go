package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/user"
)

type activityApi struct {
	svc      activity.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc activity.Service, userSvc user.Service, validate *validator.Validate) {
	api := activityApi{svc: svc, userSvc: userSvc, validate: validate}

	g.POST("/attendance", api.recordAttendance, jwt, roleMiddleware(user.RoleTeacher))
	g.GET("/activity", api.query, jwt)
}

// Handlers

func (api *activityApi) recordAttendance(ctx echo.Context) error {
	var data activity.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.RecordAttendance(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusCreated, e)
}

// query returns the caller's activity log. Admins and teachers may
// inspect any user via `?user_id=`; students only see their own.
func (api *activityApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := &activity.QueryFilter{UserID: ctxUsr.ID}
	if target := ctx.QueryParam("user_id"); target != "" && (ctxUsr.IsAdmin() || ctxUsr.IsTeacher()) {
		filter.UserID = target
	}
	if v := ctx.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from: expected YYYY-MM-DD")
		}
		filter.From = t
	}
	if v := ctx.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to: expected YYYY-MM-DD")
		}
		filter.To = t
	}
	filter.AttendanceOnly = ctx.QueryParam("attendance") == "true"

	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying activity entries")
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
