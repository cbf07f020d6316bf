package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func cloneUser(usr user.User) user.User {
	usr.Roles = cloneStrings(usr.Roles)
	usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	return usr
}

func (repo *userRepository) CheckUniqueness(_ context.Context, uname, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	var err error
	repo.db.read(func(t *tables) {
		for _, usr := range t.users {
			if excluded[usr.ID] {
				continue
			}
			if uname != "" && usr.Username == uname {
				err = user.ErrUsernameExists
				return
			}
			if email != "" && usr.Email == email {
				err = user.ErrEmailExists
				return
			}
		}
	})
	return err
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return user.User{}, core.NewDuplicateKeyError("user", err)
	}
	usr = cloneUser(usr)
	err := repo.db.write(false, func(t *tables) error {
		t.users[usr.ID] = usr
		return nil
	})
	return cloneUser(usr), err
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	users := make([]user.User, 0)
	repo.db.read(func(t *tables) {
		for _, usr := range t.users {
			if filter == nil || matchUser(usr, filter) {
				users = append(users, cloneUser(usr))
			}
		}
	})
	sortUsers(users, orderings)
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if s := strings.ToLower(filter.Search); s != "" {
		if !strings.Contains(strings.ToLower(usr.Name), s) &&
			!strings.Contains(usr.Username, s) &&
			!strings.Contains(usr.Email, s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range usr.Roles {
			if containsStr(filter.Roles, role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// sortUsers sorts by the orderings, defaulting to username.
func sortUsers(users []user.User, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "username", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "username":
				cmp = strings.Compare(a.Username, b.Username)
			case "email":
				cmp = strings.Compare(a.Email, b.Email)
			case "created_at":
				cmp = a.CreatedAt.Compare(b.CreatedAt)
			case "last_login":
				cmp = a.LastLogin.Compare(b.LastLogin)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return a.ID < b.ID
	})
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	var (
		usr   user.User
		found bool
	)
	repo.db.read(func(t *tables) {
		if filter.ID != "" {
			usr, found = t.users[filter.ID]
			return
		}
		for _, u := range t.users {
			for _, ue := range filter.UsernameOrEmail {
				if ue != "" && (u.Username == ue || u.Email == ue) {
					usr, found = u, true
					return
				}
			}
		}
	})
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return cloneUser(usr), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUniqueness(ctx, usr.Username, usr.Email, usr); err != nil {
		return user.User{}, core.NewDuplicateKeyError("user", err)
	}
	usr = cloneUser(usr)
	err := repo.db.write(false, func(t *tables) error {
		orig, ok := t.users[usr.ID]
		if !ok {
			return user.ErrNotFound
		}
		usr.CreatedAt = orig.CreatedAt
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return cloneUser(usr), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	var exists bool
	repo.db.read(func(t *tables) { _, exists = t.users[usr.ID] })
	if exists {
		return repo.UpdateUser(ctx, usr)
	}
	return repo.CreateUser(ctx, usr)
}

func (repo *userRepository) DeleteUsers(_ context.Context, ids ...string) error {
	return repo.db.write(false, func(t *tables) error {
		for _, id := range ids {
			delete(t.users, id)
		}
		return nil
	})
}
