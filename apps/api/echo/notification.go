package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/user"
)

type notificationApi struct {
	svc      *notification.Service
	validate *validator.Validate
}

// registerNotificationAPI serves the inbox of the authenticated user.
func registerNotificationAPI(g *echo.Group, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc, validate: deps.Validate}

	g.GET("", api.inbox)
	g.GET("/count", api.unreadCount)
	g.POST("/:id/read", api.markRead)
	g.POST("/read-all", api.markAllRead)
	g.POST("/broadcast", api.broadcast)
}

func (api *notificationApi) inbox(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	filter.RecipientID = actor.User.ID

	inbox, err := api.svc.Inbox(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "getting inbox")
	}
	return ctx.JSON(http.StatusOK, inbox)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), actor.User.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, map[string]int{"count": n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), actor.User.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), actor.User.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications as read")
	}
	return ctx.JSON(http.StatusOK, map[string]int{"marked": n})
}

func (api *notificationApi) broadcast(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceBroadcast}); err != nil {
		return err
	}
	var data notification.Broadcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to notification.Broadcast")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Broadcast(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "broadcasting notification")
	}
	return ctx.JSON(http.StatusCreated, map[string]int{"sent": n})
}
