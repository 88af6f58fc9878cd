package user

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/homecase-users/internal/domain"
)

// Querier is the connection a repository call runs on. It is satisfied by
// *sqlx.Conn, *sqlx.Tx and *sqlx.DB.
type Querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// Repository defines the interface for user data persistence.
// Every method runs on the connection passed in by the caller.
type Repository interface {
	// ListAll returns every user ordered by id. An empty store yields an empty slice.
	ListAll(ctx context.Context, q Querier) ([]domain.User, error)

	// GetByID returns the user with the given id, or ErrUserNotFound.
	GetByID(ctx context.Context, q Querier, id int64) (domain.User, error)

	// Create inserts a user and returns its new id.
	// Returns ErrMissingField if name or email is empty and ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, q Querier, user domain.NewUser) (int64, error)

	// Update applies the fields present in upd and returns the number of rows changed.
	// Zero means either no such id or values identical to the stored ones.
	// Returns ErrNoFields if upd is empty and ErrDuplicateEmail if the email is taken.
	Update(ctx context.Context, q Querier, id int64, upd domain.UserUpdate) (int64, error)

	// Delete removes the user with the given id and returns the number of rows removed.
	Delete(ctx context.Context, q Querier, id int64) (int64, error)

	// SearchByName returns users whose name contains substring, ordered by id.
	SearchByName(ctx context.Context, q Querier, substring string) ([]domain.User, error)

	// FindCredentials returns the id and password hash for email, or ErrUserNotFound.
	FindCredentials(ctx context.Context, q Querier, email string) (domain.Credentials, error)
}
