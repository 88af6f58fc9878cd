package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/homecase-users/internal/domain"
	"github.com/mkrupp/homecase-users/internal/infra/database"
	"github.com/mkrupp/homecase-users/internal/infra/logging"
	"github.com/mkrupp/homecase-users/internal/infra/metrics"
)

// SQLiteUserRepository implements Repository using SQLite as the storage backend.
type SQLiteUserRepository struct {
	log logging.Logger
}

var _ Repository = (*SQLiteUserRepository)(nil)

// NewSQLiteUserRepository creates a new SQLiteUserRepository.
func NewSQLiteUserRepository() *SQLiteUserRepository {
	return &SQLiteUserRepository{
		log: logging.GetLogger("repo.user.sqlite_user_repository"),
	}
}

// ListAll implements Repository.ListAll using SQLite.
func (r *SQLiteUserRepository) ListAll(ctx context.Context, q Querier) (users []domain.User, err error) {
	defer metrics.RecordDBQuery("user.list_all", time.Now(), &err)

	users = []domain.User{}
	if err = sqlx.SelectContext(ctx, q, &users, "SELECT id, name, email FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}

	return users, nil
}

// GetByID implements Repository.GetByID using SQLite.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, q Querier, id int64) (user domain.User, err error) {
	defer metrics.RecordDBQuery("user.get_by_id", time.Now(), &err)

	err = sqlx.GetContext(ctx, q, &user, "SELECT id, name, email FROM users WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return domain.User{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// Create implements Repository.Create using SQLite.
func (r *SQLiteUserRepository) Create(ctx context.Context, q Querier, user domain.NewUser) (id int64, err error) {
	if err := user.Validate(); err != nil {
		return 0, err
	}

	defer metrics.RecordDBQuery("user.create", time.Now(), &err)

	res, err := q.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
		user.Name,
		user.Email,
		user.PasswordHash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", r.mapConstraintError(ctx, err))
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

// Update implements Repository.Update using SQLite.
func (r *SQLiteUserRepository) Update(ctx context.Context, q Querier, id int64, upd domain.UserUpdate) (affected int64, err error) {
	query, args, err := buildUpdate(id, upd)
	if err != nil {
		return 0, err
	}

	defer metrics.RecordDBQuery("user.update", time.Now(), &err)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update user: %w", r.mapConstraintError(ctx, err))
	}

	affected, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

// Delete implements Repository.Delete using SQLite.
func (r *SQLiteUserRepository) Delete(ctx context.Context, q Querier, id int64) (affected int64, err error) {
	defer metrics.RecordDBQuery("user.delete", time.Now(), &err)

	res, err := q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}

	affected, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

// SearchByName implements Repository.SearchByName using SQLite.
// The substring is matched literally; SQLite LIKE is case-insensitive for ASCII.
func (r *SQLiteUserRepository) SearchByName(ctx context.Context, q Querier, substring string) (users []domain.User, err error) {
	defer metrics.RecordDBQuery("user.search_by_name", time.Now(), &err)

	users = []domain.User{}
	if err = sqlx.SelectContext(ctx, q, &users,
		`SELECT id, name, email FROM users WHERE name LIKE ? ESCAPE '\' ORDER BY id`,
		"%"+escapeLike(substring)+"%",
	); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	return users, nil
}

// FindCredentials implements Repository.FindCredentials using SQLite.
func (r *SQLiteUserRepository) FindCredentials(ctx context.Context, q Querier, email string) (creds domain.Credentials, err error) {
	defer metrics.RecordDBQuery("user.find_credentials", time.Now(), &err)

	err = sqlx.GetContext(ctx, q, &creds, "SELECT id, password_hash FROM users WHERE email = ?", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return domain.Credentials{}, fmt.Errorf("query credentials: %w", err)
	}

	return creds, nil
}

func (r *SQLiteUserRepository) mapConstraintError(ctx context.Context, err error) error {
	if database.IsUniqueViolation(err) {
		r.log.DebugContext(ctx, "unique constraint violated", "error", err)

		return errors.Join(domain.ErrDuplicateEmail, err)
	}

	return err
}

//nolint:gochecknoglobals
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// updatableColumns is the closed set of columns an update may touch.
//
//nolint:gochecknoglobals
var updatableColumns = []struct {
	name  string
	value func(domain.UserUpdate) *string
}{
	{"name", func(u domain.UserUpdate) *string { return u.Name }},
	{"email", func(u domain.UserUpdate) *string { return u.Email }},
}

// buildUpdate maps the present fields of upd to assignment clauses. The
// IS NOT guard keeps rows whose values already match out of the affected count.
func buildUpdate(id int64, upd domain.UserUpdate) (string, []any, error) {
	if upd.IsEmpty() {
		return "", nil, domain.ErrNoFields
	}

	var (
		assignments []string
		guards      []string
		setArgs     []any
		guardArgs   []any
	)

	for _, col := range updatableColumns {
		v := col.value(upd)
		if v == nil {
			continue
		}

		assignments = append(assignments, col.name+" = ?")
		guards = append(guards, col.name+" IS NOT ?")
		setArgs = append(setArgs, *v)
		guardArgs = append(guardArgs, *v)
	}

	query := "UPDATE users SET " + strings.Join(assignments, ", ") +
		" WHERE id = ? AND (" + strings.Join(guards, " OR ") + ")"

	args := append(setArgs, id)
	args = append(args, guardArgs...)

	return query, args, nil
}
