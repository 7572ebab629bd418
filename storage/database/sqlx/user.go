package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/user"
)

var _ user.Repository = (*userRepository)(nil)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

var userOrderColumns = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

// userRow is a users row; roles are stored comma separated.
type userRow struct {
	ID           int          `db:"id"`
	Name         string       `db:"name"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	IsActive     bool         `db:"is_active"`
	Roles        string       `db:"roles"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        splitRoles(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func splitRoles(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func joinRoles(roles []string) string { return strings.Join(roles, ",") }

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := "SELECT username, email FROM users WHERE ((username <> '' AND username = ?) OR (email <> '' AND email = ?))"
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q, inArgs, err := sqlx.In(" AND id NOT IN (?)", ids)
		if err != nil {
			return err
		}
		query += q
		args = append(args, inArgs...)
	}

	var taken []userRow
	if err := selectAll(ctx, repo.db, &taken, query+" LIMIT 2", args...); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, r := range taken {
		if username != "" && r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insert(ctx, repo.db,
		`INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		usr.Name, usr.Username, usr.Email, usr.IsActive, joinRoles(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, uniqueOr(err, user.ErrUsernameExists, "inserting user")
	}
	usr.ID = id
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := selectAll(ctx, repo.db, &rows, "SELECT "+userColumns+" FROM users ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var r userRow
	if err := get(ctx, repo.db, user.ErrNotFound, &r, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return user.User{}, err
	}
	return r.user(), nil
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var r userRow
	query := "SELECT " + userColumns + " FROM users WHERE (username <> '' AND username = ?) OR (email <> '' AND email = ?) LIMIT 1"
	if err := get(ctx, repo.db, user.ErrNotFound, &r, query, username, username); err != nil {
		return user.User{}, err
	}
	return r.user(), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, term, term, term)
	}
	if len(filter.Roles) > 0 {
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(roleConds, "(',' || roles || ',') LIKE ?")
			args = append(args, "%,"+role+",%")
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *filter.IsActive)
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var rows []userRow
	query += core.OrderBy(filter.Orderings, userOrderColumns, "id")
	if err := selectAll(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	query := "UPDATE users SET name = ?, username = ?, email = ?, roles = ?, password_hash = ?, updated_at = ?"
	args := []interface{}{usr.Name, usr.Username, usr.Email, joinRoles(usr.Roles), usr.PasswordHash, usr.UpdatedAt}
	if isActive != nil {
		query += ", is_active = ?"
		args = append(args, *isActive)
	}
	args = append(args, usr.ID)

	if err := exec(ctx, repo.db, user.ErrNotFound, query+" WHERE id = ?", args...); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, uniqueOr(err, user.ErrUsernameExists, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id int, at time.Time) error {
	return exec(ctx, repo.db, user.ErrNotFound, "UPDATE users SET last_login = ? WHERE id = ?", at, id)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	return errors.Wrap(err, "deleting users")
}
