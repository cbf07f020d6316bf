package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
)

var ErrNotFound = core.NewNotFoundError("notification")

type (
	Repository interface {
		Create(ctx context.Context, ns ...Notification) error
		// Query returns the newest notifications first.
		Query(ctx context.Context, filter QueryFilter) ([]Notification, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		// MarkRead marks a notification of recipientID as read. Notifications of other users are not found.
		MarkRead(ctx context.Context, recipientID, id string) (Notification, error)
		MarkAllRead(ctx context.Context, recipientID string) (int, error)
	}

	Service struct {
		repo  Repository
		users *user.Service
		now   func() time.Time
	}
)

func NewService(repo Repository, users *user.Service) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()
	return &Service{repo: repo, users: users, now: func() time.Time { return time.Now().UTC() }}
}

func (svc *Service) build(recipientID, title, message string, typ Type, relatedURL string) Notification {
	if typ == "" {
		typ = TypeInfo
	}
	var url null.String
	if relatedURL != "" {
		url = null.StringFrom(relatedURL)
	}
	return Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Title:       core.CleanString(title),
		Message:     core.CleanString(message),
		Type:        typ,
		RelatedURL:  url,
		CreatedAt:   svc.now(),
	}
}

// Notify posts a notification to a single user.
func (svc *Service) Notify(ctx context.Context, nn NewNotification) (Notification, error) {
	n := svc.build(nn.RecipientID, nn.Title, nn.Message, nn.Type, core.CleanString(nn.RelatedURL))
	if err := svc.repo.Create(ctx, n); err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

// Broadcast posts b to every active user of its audience and returns how many were notified.
// Unknown and inactive users of a specific audience are skipped.
func (svc *Service) Broadcast(ctx context.Context, b Broadcast) (int, error) {
	recipients, err := svc.audience(ctx, b)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	ns := make([]Notification, 0, len(recipients))
	for _, id := range recipients {
		ns = append(ns, svc.build(id, b.Title, b.Message, b.Type, b.RelatedURL))
	}
	if err = svc.repo.Create(ctx, ns...); err != nil {
		return 0, errors.Wrap(err, "creating notifications")
	}
	return len(ns), nil
}

func (svc *Service) audience(ctx context.Context, b Broadcast) ([]string, error) {
	var roles []string
	switch b.Audience {
	case AudienceParents:
		roles = user.ParentRoles
	case AudienceTeachers:
		roles = user.TeacherRoles
	case AudienceStudents:
		roles = user.StudentRoles
	case AudienceAdmins:
		roles = user.AdminRoles
	case AudienceSpecific:
		ids := make([]string, 0, len(b.RecipientIDs))
		seen := make(map[string]bool, len(b.RecipientIDs))
		for _, id := range b.RecipientIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			usr, err := svc.users.GetByID(ctx, id)
			if errors.Is(err, user.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, errors.Wrap(err, "getting recipient")
			}
			if usr.IsActive {
				ids = append(ids, usr.ID)
			}
		}
		return ids, nil
	default:
		return nil, core.NewValidationError(errors.Errorf("unknown audience %q", b.Audience), core.FieldError{Field: "audience", Error: "unknown audience"})
	}

	active := true
	users, err := svc.users.Query(ctx, &user.QueryFilter{Roles: roles, IsActive: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying recipients")
	}
	ids := make([]string, 0, len(users))
	for _, usr := range users {
		ids = append(ids, usr.ID)
	}
	return ids, nil
}

// Inbox lists the notifications of a user.
func (svc *Service) Inbox(ctx context.Context, filter QueryFilter) (Inbox, error) {
	ns, err := svc.repo.Query(ctx, filter)
	if err != nil {
		return Inbox{}, errors.Wrap(err, "querying notifications")
	}
	unread, err := svc.repo.CountUnread(ctx, filter.RecipientID)
	if err != nil {
		return Inbox{}, errors.Wrap(err, "counting unread notifications")
	}
	return Inbox{Notifications: ns, UnreadCount: unread}, nil
}

func (svc *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.CountUnread(ctx, recipientID)
}

func (svc *Service) MarkRead(ctx context.Context, recipientID, id string) (Notification, error) {
	return svc.repo.MarkRead(ctx, recipientID, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, recipientID)
}
