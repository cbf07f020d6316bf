package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

// actorMiddleware loads the authenticated user and resolves its profiles. Deactivated accounts are turned away.
func actorMiddleware(users *user.Service, schools *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			actor, err := schools.Actor(ctx.Request().Context(), usr)
			if err != nil {
				return errors.Wrap(err, "resolving actor")
			}
			ctx.Set(contextActorKey, actor)
			return next(ctx)
		}
	}
}

func getContextActor(ctx echo.Context) (user.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(user.Actor); ok {
		return actor, nil
	}
	return user.Actor{}, errUnauthorized
}

// authorize is the single permission check every protected handler goes through.
func authorize(ctx echo.Context, action user.Action, res user.Resource) (user.Actor, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return actor, err
	}
	return actor, user.Authorize(actor, action, res)
}

// studentScope resolves which students a listing of kind covers.
// An explicit studentID is checked; otherwise admins see everyone (nil), students themselves
// and parents their children.
func studentScope(ctx echo.Context, kind user.ResourceKind, studentID string) ([]string, error) {
	if studentID != "" {
		if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: kind, StudentID: studentID}); err != nil {
			return nil, err
		}
		return []string{studentID}, nil
	}

	actor, err := authorize(ctx, user.ActionView, user.Resource{Kind: kind})
	if err == nil {
		return nil, nil
	}
	var ids []string
	switch {
	case actor.StudentID != "":
		ids = []string{actor.StudentID}
	case len(actor.ChildIDs) > 0:
		ids = actor.ChildIDs
	default:
		return nil, err
	}
	for _, id := range ids {
		if !user.Can(actor, user.ActionView, user.Resource{Kind: kind, StudentID: id}) {
			return nil, err
		}
	}
	return ids, nil
}
