package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// Subject is the flow-local view of a user record returned by the user
// provider.
type Subject struct {
	ID       int64
	Username string
	Email    string
	Role     string
	Enabled  bool
}

// Record returns the identity record for s carrying role.
func (s Subject) Record(role string) session.Record {
	return session.Record{SubjectID: s.ID, SubjectName: s.Username, Role: role}
}

// Tokens is an issued credential pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Consumed is a refresh token already removed from the store. Restore puts it
// back with its remaining lifetime.
type Consumed interface {
	Record() session.Record
	Restore(ctx context.Context) error
}

// AuditFunc emits one audit event. meta is evaluated lazily.
type AuditFunc func(ctx context.Context, event string, success bool, subjectID int64, subjectName string, err error, meta func() map[string]string)

// Events carries audit event names used by the flows.
type Events struct {
	LoginSuccess       string
	LoginFailure       string
	ClientLoginSuccess string
	ClientLoginFailure string
	RefreshSuccess     string
	RefreshInvalid     string
	RefreshFailure     string
	RegisterSuccess    string
	RegisterFailure    string
	Logout             string
	RateLimited        string
}

// Metrics carries metric IDs used by the flows.
type Metrics struct {
	LoginSuccess       int
	LoginFailure       int
	ClientLoginSuccess int
	ClientLoginFailure int
	RateLimited        int
	RefreshSuccess     int
	RefreshFailure     int
	RefreshRestored    int
	RegisterSuccess    int
	RegisterFailure    int
	Logout             int
}

// Errors carries host-level sentinel errors the flows return.
type Errors struct {
	EngineNotReady           error
	InvalidCredentials       error
	InvalidClientCredentials error
	InvalidRefreshToken      error
	PasswordMismatch         error
	UsernameTaken            error
	EmailTaken               error
	UserNotFound             error
	RateLimited              error
	StoreUnavailable         error
}

// Common holds the hooks every flow shares.
type Common struct {
	ClientIPFromContext func(context.Context) string
	MetricInc           func(int)
	EmitAudit           AuditFunc
	Warn                func(string, ...any)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (c *Common) fill() {
	if c.ClientIPFromContext == nil {
		c.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.EmitAudit == nil {
		c.EmitAudit = func(context.Context, string, bool, int64, string, error, func() map[string]string) {}
	}
	if c.Warn == nil {
		c.Warn = func(string, ...any) {}
	}
}

func (c *Common) rateLimited(ctx context.Context, action, ip string, subject string) error {
	c.MetricInc(c.Metrics.RateLimited)
	c.EmitAudit(ctx, c.Events.RateLimited, false, 0, subject, c.Errors.RateLimited, func() map[string]string {
		return map[string]string{"action": action, "ip": ip}
	})
	return c.Errors.RateLimited
}
