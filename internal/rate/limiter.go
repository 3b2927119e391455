package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/redis/go-redis/v9"
)

// incrScript bumps a fixed-window counter and arms its expiry in one step.
// A counter found without a TTL is re-armed so it can never stick.
const incrScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var incrLua = redis.NewScript(incrScript)

// Config holds rate limiter tuning parameters. A zero Max* disables the
// corresponding limit.
type Config struct {
	Prefix              string
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
	MaxRefreshAttempts  int
	RefreshWindow       time.Duration
	MaxRegisterAttempts int
	RegisterWindow      time.Duration
}

// Limiter enforces fixed-window limits on failed logins (per username and per
// IP), refresh attempts (per IP), and registrations (per IP).
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "auth:rl:"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns [ErrRateLimited] when the username or IP has exhausted
// its failed-login budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginUserKey(username), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login for the username and IP.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if _, err := l.incrementWithTTL(ctx, l.loginUserKey(username), l.config.LoginWindow); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginWindow); err != nil {
			return err
		}
	}

	return nil
}

// ResetLogin clears the failed-login counter for the username. The IP
// counter is left alone so one good account cannot reset a spraying IP.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginUserKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts a refresh attempt from ip and enforces the refresh limit.
func (l *Limiter) CheckRefresh(ctx context.Context, ip string) error {
	if l.config.MaxRefreshAttempts <= 0 || ip == "" {
		return nil
	}
	return l.enforce(ctx, l.refreshIPKey(ip), l.config.MaxRefreshAttempts, l.config.RefreshWindow)
}

// CheckRegister counts a registration attempt from ip and enforces the
// registration limit.
func (l *Limiter) CheckRegister(ctx context.Context, ip string) error {
	if l.config.MaxRegisterAttempts <= 0 || ip == "" {
		return nil
	}
	return l.enforce(ctx, l.registerIPKey(ip), l.config.MaxRegisterAttempts, l.config.RegisterWindow)
}

// LoginAttempts returns the failed-login counter for a username.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) LoginAttempts(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginUserKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) enforce(ctx context.Context, key string, maxAttempts int, window time.Duration) error {
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	count, err := incrLua.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func (l *Limiter) loginUserKey(username string) string {
	return l.config.Prefix + "login:u:" + internal.HashKeyPart(username)
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + "login:ip:" + internal.HashKeyPart(ip)
}

func (l *Limiter) refreshIPKey(ip string) string {
	return l.config.Prefix + "refresh:ip:" + internal.HashKeyPart(ip)
}

func (l *Limiter) registerIPKey(ip string) string {
	return l.config.Prefix + "register:ip:" + internal.HashKeyPart(ip)
}
