package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/user"
)

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

type userRow struct {
	ID           int            `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	Image        string         `db:"image"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		Image:        r.Image,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

func users(rows []userRow) []user.User {
	usrs := make([]user.User, 0, len(rows))
	for _, r := range rows {
		usrs = append(usrs, r.user())
	}
	return usrs
}

const userCols = `id, name, username, email, is_active, roles, image, password_hash, created_at, updated_at, last_login`

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	args := []interface{}{username, email}
	q := `SELECT username, email FROM "user" WHERE (username = $1 OR email = $2)`
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += ` AND NOT (id = ANY($3))`
		args = append(args, pq.Array(ids))
	}

	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
		if r.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `
INSERT INTO "user" (name, username, email, is_active, roles, image, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(
		ctx, &row, q,
		usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.Image, usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = row.ID
	return usr, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	q := fmt.Sprintf(`SELECT %s FROM "user" ORDER BY id`, userCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	exe := getExec(repo.exec, exec)

	var row userRow
	q := fmt.Sprintf(`SELECT %s FROM "user" WHERE id = $1`, userCols)
	if err := exe.GetContext(ctx, &row, q, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	usr := row.user()

	var interests []int
	err := exe.SelectContext(ctx, &interests, `SELECT subject_id FROM user_interest WHERE user_id = $1 ORDER BY subject_id`, id)
	if err != nil {
		return user.User{}, errors.Wrap(err, "querying user interests")
	}
	usr.Interests = interests
	return usr, nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	q := fmt.Sprintf(`SELECT %s FROM "user" WHERE username = $1 OR email = $1`, userCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, uname); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		p := arg(val)
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR username ILIKE %s OR email ILIKE %s)", p, p, p))
	}
	if len(filter.Roles) > 0 {
		// users with any role that starts with any of the provided roles
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(roleConds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE %s)", arg(role+"%")))
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	q := fmt.Sprintf(`SELECT %s FROM "user"`, userCols)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY id"

	var rows []userRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return users(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	sets := []string{"name = $1", "username = $2", "email = $3", "updated_at = $4"}
	args := []interface{}{usr.Name, usr.Username, usr.Email, usr.UpdatedAt.UTC()}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// only save set fields
	if usr.Roles != nil {
		sets = append(sets, "roles = "+arg(pq.Array(usr.Roles)))
	}
	if usr.PasswordHash != nil {
		sets = append(sets, "password_hash = "+arg(usr.PasswordHash))
	}
	if usr.Image != "" {
		sets = append(sets, "image = "+arg(usr.Image))
	}
	if !usr.LastLogin.IsZero() {
		sets = append(sets, "last_login = "+arg(usr.LastLogin.UTC()))
	}
	if isActive != nil {
		sets = append(sets, "is_active = "+arg(*isActive))
	}

	q := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = %s RETURNING %s`,
		strings.Join(sets, ", "), arg(usr.ID), userCols)

	var row userRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "updating user")
	}
	return row.user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) error {
	q := `DELETE FROM "user" WHERE id = ANY($1)`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (repo userRepository) SetUserInterests(ctx context.Context, userID int, subjectIDs []int, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)
	if _, err := exe.ExecContext(ctx, `DELETE FROM user_interest WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "clearing user interests")
	}
	if len(subjectIDs) == 0 {
		return nil
	}
	q := `INSERT INTO user_interest (user_id, subject_id) SELECT $1, UNNEST($2::INT[])`
	if _, err := exe.ExecContext(ctx, q, userID, pq.Array(subjectIDs)); err != nil {
		return errors.Wrap(err, "setting user interests")
	}
	return nil
}
