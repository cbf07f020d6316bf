package inmemdb

import (
	"context"
	"sort"

	"github.com/excellacademy/academia/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) Create(_ context.Context, ns ...notification.Notification) error {
	return repo.db.write(false, func(t *tables) error {
		for _, n := range ns {
			t.inbox[n.ID] = n
		}
		return nil
	})
}

func (repo *notificationRepository) Query(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	ns := make([]notification.Notification, 0)
	repo.db.read(func(t *tables) {
		for _, n := range t.inbox {
			if filter.RecipientID != "" && n.RecipientID != filter.RecipientID {
				continue
			}
			if filter.UnreadOnly && n.IsRead {
				continue
			}
			ns = append(ns, n)
		}
	})
	sort.Slice(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID < ns[j].ID
	})
	if filter.Limit > 0 && len(ns) > filter.Limit {
		ns = ns[:filter.Limit]
	}
	return ns, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, recipientID string) (int, error) {
	var count int
	repo.db.read(func(t *tables) {
		for _, n := range t.inbox {
			if n.RecipientID == recipientID && !n.IsRead {
				count++
			}
		}
	})
	return count, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, recipientID, id string) (notification.Notification, error) {
	var n notification.Notification
	err := repo.db.write(false, func(t *tables) error {
		var ok bool
		if n, ok = t.inbox[id]; !ok || n.RecipientID != recipientID {
			return notification.ErrNotFound
		}
		n.IsRead = true
		t.inbox[id] = n
		return nil
	})
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	var count int
	err := repo.db.write(false, func(t *tables) error {
		for id, n := range t.inbox {
			if n.RecipientID == recipientID && !n.IsRead {
				n.IsRead = true
				t.inbox[id] = n
				count++
			}
		}
		return nil
	})
	return count, err
}
