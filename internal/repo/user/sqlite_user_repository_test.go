package user_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/homecase-users/internal/domain"
	"github.com/mkrupp/homecase-users/internal/infra/database"
	"github.com/mkrupp/homecase-users/internal/repo/user"
)

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hash:" + plain, nil }

// setup returns a connection on a bootstrapped store holding the three sample users.
func setup(t *testing.T) (*user.SQLiteUserRepository, *sqlx.Conn) {
	t.Helper()

	ctx := context.Background()

	//nolint:exhaustruct
	gw, err := database.NewSQLiteGateway(ctx, database.SQLiteGatewayConfig{
		Path:         filepath.Join(t.TempDir(), "users.db"),
		BusyTimeout:  time.Second,
		MaxOpenConns: 2,
		Seed:         true,
	})
	if err != nil {
		t.Fatalf("NewSQLiteGateway() error = %v", err)
	}

	t.Cleanup(func() { _ = gw.Close() })

	if _, err := gw.Bootstrap(ctx, plainHasher{}); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	conn, err := gw.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() { gw.Release(ctx, conn) })

	return user.NewSQLiteUserRepository(), conn
}

func ptr(s string) *string { return &s }

func names(users []domain.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}

	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func TestListAll(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	users, err := repo.ListAll(ctx, conn)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	want := []string{"John Doe", "Jane Smith", "Bob Johnson"}
	if got := names(users); !equal(got, want) {
		t.Errorf("ListAll() = %v, want %v", got, want)
	}

	for i := 1; i < len(users); i++ {
		if users[i-1].ID >= users[i].ID {
			t.Errorf("ListAll() not ordered by id: %v", users)
		}
	}
}

func TestListAll_Empty(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, "DELETE FROM users"); err != nil {
		t.Fatalf("clear users: %v", err)
	}

	users, err := repo.ListAll(ctx, conn)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	if users == nil || len(users) != 0 {
		t.Errorf("ListAll() = %#v, want empty non-nil slice", users)
	}
}

func TestCreateAndGetByID(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, conn, domain.NewUser{Name: "Alice", Email: "alice@example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if id <= 3 {
		t.Errorf("Create() id = %d, want id after the sample users", id)
	}

	got, err := repo.GetByID(ctx, conn, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	want := domain.User{ID: id, Name: "Alice", Email: "alice@example.com"}
	if got != want {
		t.Errorf("GetByID() = %+v, want %+v", got, want)
	}
}

func TestCreate_Errors(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    domain.NewUser
		wantErr error
	}{
		{
			name:    "duplicate email",
			user:    domain.NewUser{Name: "Other John", Email: "john@example.com", PasswordHash: "h"},
			wantErr: domain.ErrDuplicateEmail,
		},
		{
			name:    "missing name",
			user:    domain.NewUser{Email: "x@example.com", PasswordHash: "h"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "missing email",
			user:    domain.NewUser{Name: "X", PasswordHash: "h"},
			wantErr: domain.ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, conn, tt.user)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)

	_, err := repo.GetByID(context.Background(), conn, 999)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		id           int64
		upd          domain.UserUpdate
		wantAffected int64
		wantErr      error
		want         *domain.User
	}{
		{
			name:         "name only",
			id:           1,
			upd:          domain.UserUpdate{Name: ptr("Johnny Doe")},
			wantAffected: 1,
			want:         &domain.User{ID: 1, Name: "Johnny Doe", Email: "john@example.com"},
		},
		{
			name:         "email only",
			id:           2,
			upd:          domain.UserUpdate{Email: ptr("jane.smith@example.com")},
			wantAffected: 1,
			want:         &domain.User{ID: 2, Name: "Jane Smith", Email: "jane.smith@example.com"},
		},
		{
			name:         "identical values",
			id:           3,
			upd:          domain.UserUpdate{Name: ptr("Bob Johnson"), Email: ptr("bob@example.com")},
			wantAffected: 0,
			want:         &domain.User{ID: 3, Name: "Bob Johnson", Email: "bob@example.com"},
		},
		{
			name:         "one field changed",
			id:           3,
			upd:          domain.UserUpdate{Name: ptr("Robert Johnson"), Email: ptr("bob@example.com")},
			wantAffected: 1,
			want:         &domain.User{ID: 3, Name: "Robert Johnson", Email: "bob@example.com"},
		},
		{
			name:         "missing id",
			id:           999,
			upd:          domain.UserUpdate{Name: ptr("Nobody")},
			wantAffected: 0,
		},
		{
			name:    "no fields",
			id:      1,
			upd:     domain.UserUpdate{},
			wantErr: domain.ErrNoFields,
		},
		{
			name:    "duplicate email",
			id:      1,
			upd:     domain.UserUpdate{Email: ptr("bob@example.com")},
			wantErr: domain.ErrDuplicateEmail,
		},
	}

	// subtests share one store and run in order
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			affected, err := repo.Update(ctx, conn, tt.id, tt.upd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				return
			}

			if affected != tt.wantAffected {
				t.Errorf("Update() affected = %d, want %d", affected, tt.wantAffected)
			}

			if tt.want == nil {
				return
			}

			got, err := repo.GetByID(ctx, conn, tt.id)
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}

			if got != *tt.want {
				t.Errorf("GetByID() = %+v, want %+v", got, *tt.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	affected, err := repo.Delete(ctx, conn, 2)
	if err != nil || affected != 1 {
		t.Fatalf("Delete() = %d, %v, want 1, nil", affected, err)
	}

	if _, err := repo.GetByID(ctx, conn, 2); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByID() after delete error = %v, want %v", err, domain.ErrUserNotFound)
	}

	affected, err = repo.Delete(ctx, conn, 2)
	if err != nil || affected != 0 {
		t.Errorf("second Delete() = %d, %v, want 0, nil", affected, err)
	}
}

func TestSearchByName(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, conn, domain.NewUser{Name: "100% Real_Name", Email: "real@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		substring string
		want      []string
	}{
		{"oh", []string{"John Doe", "Bob Johnson"}},
		{"Smith", []string{"Jane Smith"}},
		{"JOHN", []string{"John Doe", "Bob Johnson"}},
		{"%", []string{"100% Real_Name"}},
		{"_", []string{"100% Real_Name"}},
		{"zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.substring, func(t *testing.T) {
			users, err := repo.SearchByName(ctx, conn, tt.substring)
			if err != nil {
				t.Fatalf("SearchByName() error = %v", err)
			}

			if users == nil {
				t.Fatal("SearchByName() returned nil slice")
			}

			if got := names(users); !equal(got, tt.want) {
				t.Errorf("SearchByName(%q) = %v, want %v", tt.substring, got, tt.want)
			}
		})
	}
}

func TestFindCredentials(t *testing.T) {
	t.Parallel()

	repo, conn := setup(t)
	ctx := context.Background()

	creds, err := repo.FindCredentials(ctx, conn, "jane@example.com")
	if err != nil {
		t.Fatalf("FindCredentials() error = %v", err)
	}

	if creds.ID != 2 || creds.PasswordHash != "hash:secret456" {
		t.Errorf("FindCredentials() = %+v", creds)
	}

	if _, err := repo.FindCredentials(ctx, conn, "nobody@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("FindCredentials() error = %v, want %v", err, domain.ErrUserNotFound)
	}
}
