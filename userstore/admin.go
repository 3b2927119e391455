package userstore

import (
	"context"
	"fmt"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

const (
	// DefaultListLimit is used by ListUsers when limit is not positive.
	DefaultListLimit = 100
	// MaxListLimit caps a single ListUsers page.
	MaxListLimit = 1000
)

// GetUserByUsername returns [goSession.ErrUserNotFound] when no row matches.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (goSession.UserRecord, error) {
	return s.getOne(ctx, "username = ?", username)
}

// GetUserByEmail returns [goSession.ErrUserNotFound] when no row matches.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (goSession.UserRecord, error) {
	return s.getOne(ctx, "email = ?", email)
}

// ListUsers returns one page of users ordered by id.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]goSession.UserRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?"), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("userstore: list users: %w", err)
	}
	defer rows.Close()

	users := make([]goSession.UserRecord, 0)
	for rows.Next() {
		var u goSession.UserRecord
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Enabled); err != nil {
			return nil, fmt.Errorf("userstore: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userstore: list users: %w", err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of in and returns the stored row.
// A new password is hashed with the store's current parameters. Unique
// violations map to [goSession.ErrUsernameTaken] or [goSession.ErrEmailTaken].
func (s *Store) UpdateUser(ctx context.Context, id int64, in goSession.UserUpdate) (goSession.UserRecord, error) {
	var (
		sets []string
		args []any
	)
	if in.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *in.Username)
	}
	if in.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *in.Email)
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return goSession.UserRecord{}, fmt.Errorf("userstore: hash password: %w", err)
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hash)
	}
	if in.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *in.Role)
	}
	if in.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *in.Enabled)
	}
	if len(sets) == 0 {
		return s.GetUserByID(ctx, id)
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := s.db.ExecContext(context.WithoutCancel(ctx),
		s.rebind("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return goSession.UserRecord{}, mapped
		}
		return goSession.UserRecord{}, fmt.Errorf("userstore: update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes a user. It returns [goSession.ErrUserNotFound] when no
// row matches. Outstanding refresh tokens stop rotating because refresh
// re-loads the subject.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(context.WithoutCancel(ctx),
		s.rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("userstore: delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goSession.ErrUserNotFound
	}
	return nil
}
