package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	authAttemptWindow = 10 * time.Minute
	authMaxAttempts   = 15
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// RegisterUser creates an account. The first account ever created becomes
// an approved admin; every later account starts pending until an admin
// approves it.
func (s *Store) RegisterUser(ctx context.Context, usernameInput, password string) (User, error) {
	username := strings.ToLower(strings.TrimSpace(usernameInput))

	if !usernamePattern.MatchString(username) {
		return User{}, ErrInvalidUsername
	}
	if len(password) < 8 || len(password) > 100 {
		return User{}, ErrInvalidPassword
	}

	key := "register:" + username
	allowed, err := s.consumeAuthAttempt(ctx, key)
	if err != nil {
		return User{}, err
	}
	if !allowed {
		return User{}, ErrRateLimited
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&exists)
	if err != nil {
		return User{}, err
	}
	if exists > 0 {
		return User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return User{}, err
	}

	u := User{
		Username:     username,
		PasswordHash: hash,
		Role:         "member",
		Status:       "pending",
		Created:      nowRFC3339(),
	}
	if total == 0 {
		u.Role = "admin"
		u.Status = "approved"
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, status, created) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.Role, u.Status, u.Created)
	if err != nil {
		return User{}, err
	}

	s.clearAuthAttempts(ctx, key)
	return u, nil
}

// AuthenticateUser checks credentials and account status. An unknown
// username and a wrong password produce the same error.
func (s *Store) AuthenticateUser(ctx context.Context, usernameInput, password string) (User, error) {
	username := strings.ToLower(strings.TrimSpace(usernameInput))
	key := "login:" + username

	allowed, err := s.consumeAuthAttempt(ctx, key)
	if err != nil {
		return User{}, err
	}
	if !allowed {
		return User{}, ErrRateLimited
	}

	u, err := s.getUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}

	if u.Status != "approved" {
		return User{}, ErrPendingApproval
	}

	s.clearAuthAttempts(ctx, key)
	return u, nil
}

// PendingUsers lists accounts awaiting admin approval.
func (s *Store) PendingUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx,
		`SELECT username, role, status, created FROM users WHERE status = 'pending' ORDER BY username ASC`)
}

// ApprovedUsers lists approved accounts, used by the channel member picker.
func (s *Store) ApprovedUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx,
		`SELECT username, role, status, created FROM users WHERE status = 'approved' ORDER BY username ASC`)
}

// ApproveUser flips a pending account to approved.
func (s *Store) ApproveUser(ctx context.Context, usernameInput string) (User, error) {
	username := strings.ToLower(strings.TrimSpace(usernameInput))

	u, err := s.getUser(ctx, username)
	if err != nil {
		return User{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET status = 'approved' WHERE username = ?`, username)
	if err != nil {
		return User{}, err
	}

	u.Status = "approved"
	return u, nil
}

func (s *Store) getUser(ctx context.Context, username string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, status, created FROM users WHERE username = ?`,
		username)

	var u User
	if err := row.Scan(&u.Username, &u.PasswordHash, &u.Role, &u.Status, &u.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) listUsers(ctx context.Context, query string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username, &u.Role, &u.Status, &u.Created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// consumeAuthAttempt implements a fixed-window rate limit keyed by
// operation and username.
func (s *Store) consumeAuthAttempt(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()

	var count int
	var resetAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count, reset_at FROM auth_attempts WHERE key = ?`, key).Scan(&count, &resetAt)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && resetAt < now) {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO auth_attempts (key, count, reset_at) VALUES (?, 1, ?)
			 ON CONFLICT(key) DO UPDATE SET count = 1, reset_at = excluded.reset_at`,
			key, now+authAttemptWindow.Milliseconds())
		return true, err
	}
	if err != nil {
		return false, err
	}

	if count >= authMaxAttempts {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE auth_attempts SET count = count + 1 WHERE key = ?`, key)
	return true, err
}

func (s *Store) clearAuthAttempts(ctx context.Context, key string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_attempts WHERE key = ?`, key); err != nil {
		s.logger.Warnf("failed to clear auth attempts for %s: %v", key, err)
	}
}
