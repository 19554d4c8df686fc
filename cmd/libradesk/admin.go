package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/libradesk/libradesk/internal/auth"
	"github.com/libradesk/libradesk/internal/identity"
	"github.com/libradesk/libradesk/internal/roles"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	switch args[0] {
	case "bootstrap":
		return runBootstrap(args[1:])
	case "reset-password":
		return runResetPassword(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		printAdminUsage()
		return 2
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  libradesk admin bootstrap --email admin@example.com [--password <pw>] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  libradesk admin reset-password --email user@example.com [--password <new>] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Notes:")
	fmt.Fprintln(os.Stderr, "  - bootstrap creates the first admin account; every later admin is invited.")
	fmt.Fprintln(os.Stderr, "  - If --password is omitted, a random password is generated and printed.")
	fmt.Fprintln(os.Stderr, "  - --db-dsn defaults to LD_DB_DSN.")
}

// runBootstrap creates the seed admin account: a user row plus the admin
// role grant. The invite flow needs an existing admin to call it, so the
// first one has to come from here.
func runBootstrap(args []string) int {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var email string
	var password string
	var dbDSN string

	fs.StringVar(&email, "email", "", "Admin email")
	fs.StringVar(&password, "password", "", "Password (if empty, generates one)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to LD_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	password, generated, code := resolvePassword(password)
	if code != 0 {
		return code
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		return 1
	}

	pool, cleanup, code := connect(dbDSN)
	if code != 0 {
		return code
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	identities := identity.NewStore(pool)
	userID, err := identities.CreateUser(ctx, email, passwordHash)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			fmt.Fprintf(os.Stderr, "A user with email %q already exists\n", email)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		return 1
	}

	roleStore := roles.NewStore(pool)
	if err := roleStore.Grant(ctx, userID, roles.RoleAdmin); err != nil {
		// Do not leave a half-bootstrapped account behind.
		if delErr := identities.DeleteUser(ctx, userID); delErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to clean up user after role grant failure: %v\n", delErr)
		}
		fmt.Fprintf(os.Stderr, "Failed to grant admin role: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Admin account created: %s (%s)\n", email, userID)
	if generated {
		fmt.Fprintln(os.Stdout, password)
	}

	return 0
}

func runResetPassword(args []string) int {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var email string
	var password string
	var dbDSN string

	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&password, "password", "", "New password (if empty, generates one)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to LD_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	password, generated, code := resolvePassword(password)
	if code != 0 {
		return code
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		return 1
	}

	pool, cleanup, code := connect(dbDSN)
	if code != 0 {
		return code
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tag, err := pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE email = $1`, email, passwordHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update password: %v\n", err)
		return 1
	}
	if tag.RowsAffected() == 0 {
		fmt.Fprintf(os.Stderr, "No user found with email %q\n", email)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Password updated.")
	if generated {
		fmt.Fprintln(os.Stdout, password)
	}

	return 0
}

func resolvePassword(password string) (resolved string, generated bool, code int) {
	if password == "" {
		pw, err := generatePassword(24)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate password: %v\n", err)
			return "", false, 1
		}
		return pw, true, 0
	}

	if len(password) < auth.MinPasswordLength {
		fmt.Fprintf(os.Stderr, "Password must be at least %d characters\n", auth.MinPasswordLength)
		return "", false, 2
	}

	return password, false, 0
}

func connect(dbDSN string) (pool *pgxpool.Pool, cleanup func(), code int) {
	if dbDSN == "" {
		dbDSN = strings.TrimSpace(os.Getenv("LD_DB_DSN"))
	}
	if dbDSN == "" {
		fmt.Fprintln(os.Stderr, "--db-dsn is required (or set LD_DB_DSN)")
		return nil, nil, 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, nil, 1
	}

	return pool, pool.Close, 0
}

func generatePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, printable, without padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
