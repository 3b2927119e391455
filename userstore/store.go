package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names the database/sql driver a [Store] talks to.
type Dialect string

const (
	// DialectSQLite uses the pure-Go modernc.org/sqlite driver.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres uses the pgx stdlib driver.
	DialectPostgres Dialect = "pgx"
)

const defaultRole = "USER"

// Store is a database/sql backed [goSession.UserProvider]. Passwords are
// kept as Argon2id PHC hashes.
type Store struct {
	db      *sql.DB
	dialect Dialect
	hasher  *password.Argon2
}

var _ goSession.UserProvider = (*Store)(nil)

// New wraps an open database. Callers run [Store.Migrate] before first use.
func New(db *sql.DB, dialect Dialect, hasher *password.Argon2) (*Store, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("userstore: unsupported dialect %q", dialect)
	}
	if db == nil {
		return nil, errors.New("userstore: nil database")
	}
	if hasher == nil {
		return nil, errors.New("userstore: nil password hasher")
	}
	return &Store{db: db, dialect: dialect, hasher: hasher}, nil
}

// Open connects with the given driver and DSN, pings, and migrates.
func Open(ctx context.Context, dialect Dialect, dsn string, hasher *password.Argon2) (*Store, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("userstore: open: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite serialises writers; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	s, err := New(db, dialect, hasher)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("userstore: ping: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

const userColumns = "id, username, email, role, enabled"

// Authenticate checks username and password. An unknown username yields
// [goSession.ErrUserNotFound], a wrong password [goSession.ErrInvalidCredentials].
// A hash produced with weaker parameters is upgraded in place.
func (s *Store) Authenticate(ctx context.Context, username, pass string) (goSession.UserRecord, error) {
	var (
		u    goSession.UserRecord
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+userColumns+", password_hash FROM users WHERE username = ?"), username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Enabled, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}
	if err != nil {
		return goSession.UserRecord{}, fmt.Errorf("userstore: authenticate: %w", err)
	}

	ok, err := s.hasher.Verify(pass, hash)
	if errors.Is(err, password.ErrTooLong) {
		return goSession.UserRecord{}, goSession.ErrInvalidCredentials
	}
	if err != nil {
		return goSession.UserRecord{}, fmt.Errorf("userstore: verify %q: %w", username, err)
	}
	if !ok {
		return goSession.UserRecord{}, goSession.ErrInvalidCredentials
	}

	if upgrade, err := s.hasher.NeedsUpgrade(hash); err == nil && upgrade {
		s.rehash(ctx, u.ID, pass)
	}
	return u, nil
}

func (s *Store) rehash(ctx context.Context, id int64, pass string) {
	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return
	}
	_, _ = s.db.ExecContext(context.WithoutCancel(ctx),
		s.rebind("UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"), hash, id)
}

// GetUserByID returns [goSession.ErrUserNotFound] when no row matches.
func (s *Store) GetUserByID(ctx context.Context, id int64) (goSession.UserRecord, error) {
	return s.getOne(ctx, "id = ?", id)
}

// GetUserByClientSecret returns [goSession.ErrUserNotFound] when no row
// matches.
func (s *Store) GetUserByClientSecret(ctx context.Context, secret string) (goSession.UserRecord, error) {
	if secret == "" {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}
	return s.getOne(ctx, "client_secret = ?", secret)
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (goSession.UserRecord, error) {
	var u goSession.UserRecord
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+userColumns+" FROM users WHERE "+where), arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}
	if err != nil {
		return goSession.UserRecord{}, fmt.Errorf("userstore: get user: %w", err)
	}
	return u, nil
}

// UsernameExists reports whether a user with username is stored.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "username = ?", username)
}

// EmailExists reports whether a user with email is stored.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email = ?", email)
}

func (s *Store) exists(ctx context.Context, where string, arg any) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(1) FROM users WHERE "+where), arg,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("userstore: exists: %w", err)
	}
	return n > 0, nil
}

// CreateUser hashes the password and inserts an enabled user. A unique
// constraint violation maps to [goSession.ErrUsernameTaken] or
// [goSession.ErrEmailTaken].
func (s *Store) CreateUser(ctx context.Context, in goSession.CreateUserInput) (goSession.UserRecord, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return goSession.UserRecord{}, fmt.Errorf("userstore: hash password: %w", err)
	}
	role := in.Role
	if role == "" {
		role = defaultRole
	}

	u := goSession.UserRecord{Username: in.Username, Email: in.Email, Role: role, Enabled: true}
	err = s.db.QueryRowContext(context.WithoutCancel(ctx),
		s.rebind(`INSERT INTO users (username, email, password_hash, client_secret, role, enabled)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		in.Username, in.Email, hash, in.ClientSecret, role, true,
	).Scan(&u.ID)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return goSession.UserRecord{}, mapped
		}
		return goSession.UserRecord{}, fmt.Errorf("userstore: create user: %w", err)
	}
	return u, nil
}

// SetEnabled enables or disables a user. It returns
// [goSession.ErrUserNotFound] when no row matches.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE users SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"), enabled, id)
	if err != nil {
		return fmt.Errorf("userstore: set enabled: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goSession.ErrUserNotFound
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return nil
		}
		return columnError(pgErr.ConstraintName)
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	return columnError(msg)
}

func columnError(hint string) error {
	switch {
	case strings.Contains(hint, "username"):
		return goSession.ErrUsernameTaken
	case strings.Contains(hint, "email"):
		return goSession.ErrEmailTaken
	default:
		return fmt.Errorf("userstore: duplicate client secret: %s", hint)
	}
}
