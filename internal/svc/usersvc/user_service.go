package usersvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/homecase-users/internal/domain"
	"github.com/mkrupp/homecase-users/internal/infra/database"
	"github.com/mkrupp/homecase-users/internal/infra/logging"
	"github.com/mkrupp/homecase-users/internal/repo/user"
	"github.com/mkrupp/homecase-users/internal/util/password"
)

// Store hands out one connection per operation. *database.Gateway implements it.
type Store interface {
	// WithConn runs fn on a dedicated connection and releases it on every exit path.
	WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

var _ Store = (*database.Gateway)(nil)

// UpdateOutcome tells an applied update apart from one that changed nothing.
type UpdateOutcome int

const (
	// UpdateApplied means at least one stored value changed.
	UpdateApplied UpdateOutcome = iota
	// UpdateUnchanged means the user exists but already held the supplied values.
	UpdateUnchanged
)

// UserService provides user management and authentication.
// Every operation runs on a single connection acquired from Store.
type UserService struct {
	Store    Store
	UserRepo user.Repository
	Hasher   password.Hasher
	Log      logging.Logger

	decoyOnce sync.Once
	decoy     string
}

// NewUserService creates a new UserService.
func NewUserService(store Store, userRepo user.Repository, hasher password.Hasher) *UserService {
	//nolint:exhaustruct
	return &UserService{
		Store:    store,
		UserRepo: userRepo,
		Hasher:   hasher,
		Log:      logging.GetLogger("svc.usersvc.user_service"),
	}
}

// ListUsers returns every user ordered by id.
func (s *UserService) ListUsers(ctx context.Context) (users []domain.User, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "list users failed", "error", err)
		} else {
			log.DebugContext(ctx, "users listed", "count", len(users))
		}
	}()

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		users, err = s.UserRepo.ListAll(ctx, conn)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// GetUser returns the user with the given id.
// Returns ErrUserNotFound if there is none.
func (s *UserService) GetUser(ctx context.Context, id int64) (u domain.User, err error) {
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "get user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user fetched")
		}
	}()

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		u, err = s.UserRepo.GetByID(ctx, conn, id)

		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

// CreateUser registers a new user. The password is hashed before anything is stored.
// Returns ErrMissingField if any argument is empty, ErrPasswordTooLong if the
// password cannot be hashed, and ErrDuplicateEmail if the email is taken.
func (s *UserService) CreateUser(ctx context.Context, name, email, plaintext string) (id int64, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user created", "id", id)
		}
	}()

	if name == "" || email == "" || plaintext == "" {
		return 0, domain.ErrMissingField
	}

	// hash before acquiring a connection, bcrypt is slow
	hash, err := s.Hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			err = errors.Join(domain.ErrPasswordTooLong, err)
		}

		return 0, fmt.Errorf("hash password: %w", err)
	}

	newUser := domain.NewUser{Name: name, Email: email, PasswordHash: hash}

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		id, err = s.UserRepo.Create(ctx, conn, newUser)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	return id, nil
}

// UpdateUser applies a partial update to the user with the given id.
// When nothing changed, existence is re-checked on the same connection to tell
// UpdateUnchanged apart from ErrUserNotFound. A concurrent delete between the two
// statements is not guarded against.
func (s *UserService) UpdateUser(ctx context.Context, id int64, upd domain.UserUpdate) (outcome UpdateOutcome, err error) {
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user updated", "unchanged", outcome == UpdateUnchanged)
		}
	}()

	if upd.IsEmpty() {
		return 0, domain.ErrNoFields
	}

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		affected, err := s.UserRepo.Update(ctx, conn, id, upd)
		if err != nil {
			return err
		}

		if affected > 0 {
			outcome = UpdateApplied

			return nil
		}

		if _, err := s.UserRepo.GetByID(ctx, conn, id); err != nil {
			return err
		}

		outcome = UpdateUnchanged

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update user: %w", err)
	}

	return outcome, nil
}

// DeleteUser removes the user with the given id.
// Returns ErrUserNotFound if there is none.
func (s *UserService) DeleteUser(ctx context.Context, id int64) (err error) {
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user deleted")
		}
	}()

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		affected, err := s.UserRepo.Delete(ctx, conn, id)
		if err != nil {
			return err
		}

		if affected == 0 {
			return domain.ErrUserNotFound
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

// SearchUsers returns users whose name contains substring, ordered by id.
// Returns ErrMissingField if substring is empty.
func (s *UserService) SearchUsers(ctx context.Context, substring string) (users []domain.User, err error) {
	log := s.Log.With(logging.Group("search", "name", substring))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "search users failed", "error", err)
		} else {
			log.DebugContext(ctx, "users searched", "count", len(users))
		}
	}()

	if substring == "" {
		return nil, domain.ErrMissingField
	}

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		users, err = s.UserRepo.SearchByName(ctx, conn, substring)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	return users, nil
}

// Login checks an email/password pair and returns the user's id.
// Returns ErrInvalidCredentials both for an unknown email and for a wrong password.
func (s *UserService) Login(ctx context.Context, email, plaintext string) (id int64, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful", "id", id)
		}
	}()

	if email == "" || plaintext == "" {
		return 0, domain.ErrMissingField
	}

	var creds domain.Credentials

	err = s.Store.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		creds, err = s.UserRepo.FindCredentials(ctx, conn, email)

		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// unknown emails pay the same bcrypt cost as wrong passwords
			s.Hasher.Verify(plaintext, s.decoyHash())

			return 0, errors.Join(domain.ErrInvalidCredentials, err)
		}

		return 0, fmt.Errorf("find credentials: %w", err)
	}

	if !s.Hasher.Verify(plaintext, creds.PasswordHash) {
		return 0, domain.ErrInvalidCredentials
	}

	return creds.ID, nil
}

// decoyHash returns a hash of a fixed password at the hasher's cost, computed once.
func (s *UserService) decoyHash() string {
	s.decoyOnce.Do(func() {
		hash, err := s.Hasher.Hash("decoy password")
		if err != nil {
			s.Log.Error("hash decoy password failed", "error", err)
		}

		s.decoy = hash
	})

	return s.decoy
}

// Ping checks that the store is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	return nil
}
