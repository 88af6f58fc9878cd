package usersvc_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/homecase-users/internal/domain"
	"github.com/mkrupp/homecase-users/internal/infra/database"
	"github.com/mkrupp/homecase-users/internal/repo/user"
	"github.com/mkrupp/homecase-users/internal/svc/usersvc"
	"github.com/mkrupp/homecase-users/internal/util/password"
)

var ErrStoreDown = errors.New("store down")

// failingStore implements usersvc.Store and never hands out a connection.
type failingStore struct{}

func (failingStore) WithConn(context.Context, func(*sqlx.Conn) error) error {
	return ErrStoreDown
}

func (failingStore) Ping(context.Context) error {
	return ErrStoreDown
}

// countingHasher counts Verify calls on the wrapped hasher.
type countingHasher struct {
	password.Hasher

	verifies atomic.Int32
}

func (h *countingHasher) Verify(plaintext, hash string) bool {
	h.verifies.Add(1)

	return h.Hasher.Verify(plaintext, hash)
}

// setupTestService returns a service over a fresh, seeded SQLite file.
func setupTestService(t *testing.T) (*usersvc.UserService, *database.Gateway) {
	t.Helper()

	ctx := context.Background()
	hasher := password.NewBcryptHasher(password.HasherConfig{Cost: bcrypt.MinCost})

	//nolint:exhaustruct
	gw, err := database.NewSQLiteGateway(ctx, database.SQLiteGatewayConfig{
		Path:         filepath.Join(t.TempDir(), "users.db"),
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		Seed:         true,
	})
	if err != nil {
		t.Fatalf("NewSQLiteGateway() error = %v", err)
	}

	t.Cleanup(func() {
		if inUse := gw.Stats().InUse; inUse != 0 {
			t.Errorf("%d connections still in use", inUse)
		}

		_ = gw.Close()
	})

	if _, err := gw.Bootstrap(ctx, hasher); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	return usersvc.NewUserService(gw, user.NewSQLiteUserRepository(), hasher), gw
}

func ptr(s string) *string { return &s }

func TestUserService_CreateThenGet(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{name: "ascii", userName: "Alice", email: "alice@example.com", password: "pw"},
		{name: "unicode", userName: "Zoë Ünal", email: "zoe@example.com", password: "pässwörd"},
		{name: "quotes", userName: `O'Brien "Bob"`, email: "ob@example.com", password: "x'; DROP TABLE users; --"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.CreateUser(ctx, tt.userName, tt.email, tt.password)
			if err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}

			got, err := svc.GetUser(ctx, id)
			if err != nil {
				t.Fatalf("GetUser() error = %v", err)
			}

			want := domain.User{ID: id, Name: tt.userName, Email: tt.email}
			if got != want {
				t.Errorf("GetUser() = %+v, want %+v", got, want)
			}

			loginID, err := svc.Login(ctx, tt.email, tt.password)
			if err != nil || loginID != id {
				t.Errorf("Login() = %d, %v, want %d, nil", loginID, err, id)
			}
		})
	}
}

func TestUserService_CreateUser_Errors(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{name: "duplicate email", userName: "John", email: "john@example.com", password: "pw", wantErr: domain.ErrDuplicateEmail},
		{name: "missing name", email: "a@example.com", password: "pw", wantErr: domain.ErrMissingField},
		{name: "missing email", userName: "A", password: "pw", wantErr: domain.ErrMissingField},
		{name: "missing password", userName: "A", email: "a@example.com", wantErr: domain.ErrMissingField},
		{name: "password too long", userName: "A", email: "a@example.com", password: strings.Repeat("x", 73), wantErr: domain.ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		id          int64
		upd         domain.UserUpdate
		wantOutcome usersvc.UpdateOutcome
		wantErr     error
	}{
		{name: "applied", id: 1, upd: domain.UserUpdate{Name: ptr("John Q. Doe")}, wantOutcome: usersvc.UpdateApplied},
		{name: "unchanged", id: 1, upd: domain.UserUpdate{Name: ptr("John Q. Doe")}, wantOutcome: usersvc.UpdateUnchanged},
		{name: "not found", id: 999, upd: domain.UserUpdate{Name: ptr("Ghost")}, wantErr: domain.ErrUserNotFound},
		{name: "no fields", id: 1, upd: domain.UserUpdate{}, wantErr: domain.ErrNoFields},
		{name: "duplicate email", id: 1, upd: domain.UserUpdate{Email: ptr("jane@example.com")}, wantErr: domain.ErrDuplicateEmail},
	}

	// subtests run in order on one store
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := svc.UpdateUser(ctx, tt.id, tt.upd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateUser() error = %v, want %v", err, tt.wantErr)
			}

			if err == nil && outcome != tt.wantOutcome {
				t.Errorf("UpdateUser() outcome = %v, want %v", outcome, tt.wantOutcome)
			}
		})
	}
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()

	if err := svc.DeleteUser(ctx, 3); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := svc.GetUser(ctx, 3); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUser() after delete error = %v, want %v", err, domain.ErrUserNotFound)
	}

	if err := svc.DeleteUser(ctx, 3); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("DeleteUser() again error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

func TestUserService_SearchUsers(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()

	users, err := svc.SearchUsers(ctx, "oh")
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}

	want := []domain.User{
		{ID: 1, Name: "John Doe", Email: "john@example.com"},
		{ID: 3, Name: "Bob Johnson", Email: "bob@example.com"},
	}

	if len(users) != len(want) {
		t.Fatalf("SearchUsers() = %+v, want %+v", users, want)
	}

	for i := range want {
		if users[i] != want[i] {
			t.Errorf("users[%d] = %+v, want %+v", i, users[i], want[i])
		}
	}

	if _, err := svc.SearchUsers(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("SearchUsers(\"\") error = %v, want %v", err, domain.ErrValidation)
	}
}

func TestUserService_Login(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		wantID   int64
		wantErr  error
	}{
		{name: "successful login", email: "jane@example.com", password: "secret456", wantID: 2},
		{name: "wrong password", email: "jane@example.com", password: "secret457", wantErr: domain.ErrInvalidCredentials},
		{name: "user not found", email: "nobody@example.com", password: "secret456", wantErr: domain.ErrInvalidCredentials},
		{name: "missing password", email: "jane@example.com", wantErr: domain.ErrMissingField},
		{name: "missing email", password: "secret456", wantErr: domain.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := svc.Login(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}

			if id != tt.wantID {
				t.Errorf("Login() id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestUserService_Login_UnknownEmailVerifies(t *testing.T) {
	t.Parallel()

	_, gw := setupTestService(t)
	hasher := &countingHasher{Hasher: password.NewBcryptHasher(password.HasherConfig{Cost: bcrypt.MinCost})}
	svc := usersvc.NewUserService(gw, user.NewSQLiteUserRepository(), hasher)
	ctx := context.Background()

	for _, email := range []string{"nobody@example.com", "jane@example.com"} {
		before := hasher.verifies.Load()

		if _, err := svc.Login(ctx, email, "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("Login(%s) error = %v, want %v", email, err, domain.ErrInvalidCredentials)
		}

		if got := hasher.verifies.Load() - before; got != 1 {
			t.Errorf("Login(%s) ran Verify %d times, want 1", email, got)
		}
	}
}

func TestUserService_StoreFailure(t *testing.T) {
	t.Parallel()

	svc := usersvc.NewUserService(failingStore{}, user.NewSQLiteUserRepository(),
		password.NewBcryptHasher(password.HasherConfig{Cost: bcrypt.MinCost}))
	ctx := context.Background()

	calls := map[string]func() error{
		"ListUsers": func() error {
			_, err := svc.ListUsers(ctx)

			return err
		},
		"GetUser": func() error {
			_, err := svc.GetUser(ctx, 1)

			return err
		},
		"CreateUser": func() error {
			_, err := svc.CreateUser(ctx, "A", "a@example.com", "pw")

			return err
		},
		"UpdateUser": func() error {
			_, err := svc.UpdateUser(ctx, 1, domain.UserUpdate{Name: ptr("B")})

			return err
		},
		"DeleteUser": func() error {
			return svc.DeleteUser(ctx, 1)
		},
		"SearchUsers": func() error {
			_, err := svc.SearchUsers(ctx, "a")

			return err
		},
		"Login": func() error {
			_, err := svc.Login(ctx, "a@example.com", "pw")

			return err
		},
		"Ping": func() error {
			return svc.Ping(ctx)
		},
	}

	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrStoreDown) {
			t.Errorf("%s() error = %v, want %v", name, err, ErrStoreDown)
		}
	}
}
