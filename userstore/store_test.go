package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher(t *testing.T) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DialectSQLite, ":memory:", testHasher(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createAlice(t *testing.T, s *Store) goSession.UserRecord {
	t.Helper()
	u, err := s.CreateUser(context.Background(), goSession.CreateUserInput{
		Username:     "alice",
		Email:        "alice@example.com",
		Password:     "s3cret-pass",
		ClientSecret: "alice-client-secret",
	})
	require.NoError(t, err)
	return u
}

func TestCreateAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createAlice(t, s)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "USER", created.Role)
	assert.True(t, created.Enabled)

	byID, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	bySecret, err := s.GetUserByClientSecret(ctx, "alice-client-secret")
	require.NoError(t, err)
	assert.Equal(t, created, bySecret)

	_, err = s.GetUserByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, goSession.ErrUserNotFound)
	_, err = s.GetUserByClientSecret(ctx, "")
	assert.ErrorIs(t, err, goSession.ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := createAlice(t, s)

	u, err := s.Authenticate(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, created, u)

	_, err = s.Authenticate(ctx, "alice", "wrong-pass")
	assert.ErrorIs(t, err, goSession.ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "bob", "s3cret-pass")
	assert.ErrorIs(t, err, goSession.ErrUserNotFound)
}

func TestAuthenticateReturnsDisabledUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := createAlice(t, s)

	require.NoError(t, s.SetEnabled(ctx, created.ID, false))

	u, err := s.Authenticate(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.False(t, u.Enabled)

	assert.ErrorIs(t, s.SetEnabled(ctx, 999, true), goSession.ErrUserNotFound)
}

func TestAuthenticateUpgradesWeakHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := createAlice(t, s)

	stronger, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	s.hasher = stronger

	_, err = s.Authenticate(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)

	var hash string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", created.ID).Scan(&hash))
	assert.Contains(t, hash, "t=2")
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createAlice(t, s)

	ok, err := s.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UsernameExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUserUniqueViolations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createAlice(t, s)

	_, err := s.CreateUser(ctx, goSession.CreateUserInput{
		Username: "alice", Email: "other@example.com", Password: "s3cret-pass", ClientSecret: "x1",
	})
	assert.ErrorIs(t, err, goSession.ErrUsernameTaken)

	_, err = s.CreateUser(ctx, goSession.CreateUserInput{
		Username: "bob", Email: "alice@example.com", Password: "s3cret-pass", ClientSecret: "x2",
	})
	assert.ErrorIs(t, err, goSession.ErrEmailTaken)
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateUser(context.Background(), goSession.CreateUserInput{
		Username: "bob", Email: "bob@example.com", Password: "short", ClientSecret: "x",
	})
	assert.ErrorIs(t, err, password.ErrTooShort)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestUniqueViolationMapping(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}, goSession.ErrUsernameTaken},
		{fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), goSession.ErrEmailTaken},
		{errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), goSession.ErrUsernameTaken},
		{errors.New("UNIQUE constraint failed: users.email"), goSession.ErrEmailTaken},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, uniqueViolation(tc.err), tc.want)
	}

	assert.Nil(t, uniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.Nil(t, uniqueViolation(errors.New("disk I/O error")))

	secret := uniqueViolation(errors.New("UNIQUE constraint failed: users.client_secret"))
	require.Error(t, secret)
	assert.True(t, strings.Contains(secret.Error(), "client secret"))
}

func TestNewRejectsBadArguments(t *testing.T) {
	_, err := New(nil, DialectSQLite, testHasher(t))
	assert.Error(t, err)

	s := newTestStore(t)
	_, err = New(s.DB(), Dialect("mysql"), testHasher(t))
	assert.Error(t, err)
	_, err = New(s.DB(), DialectSQLite, nil)
	assert.Error(t, err)
}
