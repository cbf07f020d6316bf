package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	IsActive     bool           `json:"is_active"`
	Roles        pq.StringArray `json:"roles"`
	PasswordHash []byte         `json:"password_hash"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastLogin    null.Time      `json:"last_login"`
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
	if row.Roles == nil {
		row.Roles = pq.StringArray{}
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin)
	}
	return row
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		IsActive:     row.IsActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db dbtx
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: bind(db)}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, uname, email string, excludedUsers ...user.User) error {
	var f filter
	f.where("((username <> '' AND username = ?) OR (email <> '' AND email = ?))", uname, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		f.where("id NOT IN (?)", ids)
	}

	var rows []userRow
	if err := f.sel(ctx, repo.db, &rows, "SELECT "+userColumns+" FROM users", "LIMIT 1"); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if uname != "" && rows[0].Username == uname {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		newUserRow(usr),
	)
	if err != nil {
		return user.User{}, translate(err)
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, qf *user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	var f filter
	if qf != nil {
		if qf.Search != "" {
			s := "%" + qf.Search + "%"
			f.where("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", s, s, s)
		}
		if len(qf.Roles) > 0 {
			f.where("roles && ?", pq.Array(qf.Roles))
		}
		if qf.IsActive != nil {
			f.where("is_active = ?", *qf.IsActive)
		}
		if !qf.CreatedFrom.IsZero() {
			f.where("created_at >= ?", qf.CreatedFrom)
		}
		if !qf.CreatedTo.IsZero() {
			f.where("created_at <= ?", qf.CreatedTo)
		}
	}

	var rows []userRow
	orderBy := core.OrderBy(orderings, userOrderings, "username ASC")
	if err := f.sel(ctx, repo.db, &rows, "SELECT "+userColumns+" FROM users", "ORDER BY "+orderBy+", id"); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, gf user.GetFilter) (user.User, error) {
	var f filter
	switch {
	case gf.ID != "":
		f.where("id = ?", gf.ID)
	case len(gf.UsernameOrEmail) > 0:
		f.where("(username IN (?) OR email IN (?))", gf.UsernameOrEmail, gf.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var rows []userRow
	if err := f.sel(ctx, repo.db, &rows, "SELECT "+userColumns+" FROM users", "LIMIT 1"); err != nil {
		return user.User{}, err
	}
	if len(rows) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rows[0].toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users
		SET name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
		    password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr),
	)
	if err = mustAffect(res, translate(err), user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, username = EXCLUDED.username, email = EXCLUDED.email, is_active = EXCLUDED.is_active,
		    roles = EXCLUDED.roles, password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at`,
		newUserRow(usr),
	)
	if err != nil {
		return user.User{}, translate(err)
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	_, err = exec(ctx, repo.db, query, args...)
	return err
}
