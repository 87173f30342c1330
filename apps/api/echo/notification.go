package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/notification"
	"github.com/mwalimu/darasa/core/user"
)

type notificationApi struct {
	svc     notification.Service
	userSvc user.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notification.Service, userSvc user.Service) {
	api := notificationApi{svc: svc, userSvc: userSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("", api.create, roleMiddleware(user.RoleTeacher))
	ng.POST("/:id/read", api.markRead)
	ng.DELETE("/:id", api.destroy)
}

// contextNotification loads the notification under :id; only the
// receiver (or an admin) ever learns it exists.
func (api *notificationApi) contextNotification(ctx echo.Context) (notification.Notification, error) {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return notification.Notification{}, errHTTPNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "finding notification by ID")
	}
	if n.ReceiverID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return notification.Notification{}, errHTTPNotFound
	}
	return n, nil
}

// Handlers

// query lists the caller's notifications, newest first. `?unread=true`
// narrows to unread ones.
func (api *notificationApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	unreadOnly := ctx.QueryParam("unread") == "true"
	notifs, err := api.svc.QueryForReceiver(ctx.Request().Context(), ctxUsr.ID, unreadOnly)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data NotifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotifyRequest")
	}
	if len(data.ReceiverIDs) == 0 || data.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "receiver_ids and title are required")
	}

	if err := api.svc.NotifyAll(ctx.Request().Context(), ctxUsr.ID, data.ReceiverIDs, data.Title, data.Message); err != nil {
		return errors.Wrap(err, "sending notifications")
	}
	return ctx.JSON(http.StatusCreated, SuccessResponse{Success: "Notifications sent"})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	n, err := api.contextNotification(ctx)
	if err != nil {
		return err
	}

	n, err = api.svc.MarkRead(ctx.Request().Context(), n.ID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	n, err := api.contextNotification(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), n.ID); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type NotifyRequest struct {
	ReceiverIDs []string `json:"receiver_ids"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
}
