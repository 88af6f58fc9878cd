package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
)`

//go:embed seed.yaml
var seedYAML []byte

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// SeedUser is one entry of the embedded sample data.
type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SeedUsers returns the sample users shipped with the service.
func SeedUsers() ([]SeedUser, error) {
	var doc struct {
		Users []SeedUser `yaml:"users"`
	}

	if err := yaml.Unmarshal(seedYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	return doc.Users, nil
}

// Bootstrap creates the users table if it does not exist and, when seeding is
// enabled, inserts the sample users into an empty table. Safe to run on every start.
// Returns the number of users inserted.
func (g *Gateway) Bootstrap(ctx context.Context, hasher PasswordHasher) (int, error) {
	var inserted int

	err := g.WithConn(ctx, func(conn *sqlx.Conn) error {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}

		if !g.cfg.Seed {
			return nil
		}

		n, err := seed(ctx, conn, hasher)
		inserted = n

		return err
	})
	if err != nil {
		return 0, err
	}

	g.log.InfoContext(ctx, "database bootstrapped", "seeded", inserted)

	return inserted, nil
}

func seed(ctx context.Context, conn *sqlx.Conn, hasher PasswordHasher) (inserted int, err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	if err = tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	if count > 0 {
		return 0, tx.Commit()
	}

	users, err := SeedUsers()
	if err != nil {
		return 0, err
	}

	for _, u := range users {
		hash, hashErr := hasher.Hash(u.Password)
		if hashErr != nil {
			err = fmt.Errorf("hash seed password for %s: %w", u.Email, hashErr)

			return 0, err
		}

		if _, err = tx.ExecContext(ctx,
			"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
			u.Name, u.Email, hash,
		); err != nil {
			return 0, fmt.Errorf("insert seed user %s: %w", u.Email, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return len(users), nil
}

// Reset removes the database file together with its WAL sidecar files.
// Missing files are not an error.
func Reset(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}

	return nil
}
