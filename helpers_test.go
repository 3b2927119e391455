package goSession

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessTTL = time.Minute
	cfg.Store.OperationTimeout = 500 * time.Millisecond
	cfg.JWT.Enabled = true
	cfg.JWT.TTL = 10 * time.Minute
	cfg.JWT.PrivateKey = []byte(testJWTSecret)
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type memUser struct {
	record   UserRecord
	password string
	secret   string
}

// memoryUsers is an in-memory UserProvider. Passwords are compared in
// plaintext.
type memoryUsers struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*memUser
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{nextID: 1, users: map[int64]*memUser{}}
}

func (m *memoryUsers) add(username, email, password, secret, role string) UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	u := &memUser{
		record:   UserRecord{ID: id, Username: username, Email: email, Role: role, Enabled: true},
		password: password,
		secret:   secret,
	}
	m.users[id] = u
	return u.record
}

func (m *memoryUsers) setEnabled(id int64, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].record.Enabled = enabled
}

func (m *memoryUsers) Authenticate(_ context.Context, username, password string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.record.Username == username {
			if u.password != password {
				return UserRecord{}, ErrInvalidCredentials
			}
			return u.record, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (m *memoryUsers) GetUserByID(_ context.Context, id int64) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u.record, nil
}

func (m *memoryUsers) GetUserByClientSecret(_ context.Context, secret string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.secret != "" && u.secret == secret {
			return u.record, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (m *memoryUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.record.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.record.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) CreateUser(ctx context.Context, in CreateUserInput) (UserRecord, error) {
	if taken, _ := m.UsernameExists(ctx, in.Username); taken {
		return UserRecord{}, ErrUsernameTaken
	}
	if taken, _ := m.EmailExists(ctx, in.Email); taken {
		return UserRecord{}, ErrEmailTaken
	}
	return m.add(in.Username, in.Email, in.Password, in.ClientSecret, in.Role), nil
}

func newTestEngine(t *testing.T, cfg Config, up UserProvider, sink AuditSink) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)

	b := New().WithConfig(cfg).WithRedis(rdb)
	if up != nil {
		b = b.WithUserProvider(up)
	}
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}
