package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// LoginDeps captures login and client-login dependencies.
type LoginDeps struct {
	Common

	DefaultRole string
	ClientRole  string
	SignedTTL   time.Duration

	CheckLoginRate     func(ctx context.Context, username, ip string) error
	IncrementLoginRate func(ctx context.Context, username, ip string) error
	ResetLoginRate     func(ctx context.Context, username string) error
	LoginAttempts      func(ctx context.Context, username string) (int, error)

	Authenticate          func(ctx context.Context, username, password string) (Subject, error)
	GetUserByClientSecret func(ctx context.Context, secret string) (Subject, error)

	IssuePair    func(ctx context.Context, record session.Record) (Tokens, error)
	IssueRefresh func(ctx context.Context, record session.Record) (string, error)
	MintSigned   func(record session.Record) (string, error)
}

// LoginResult is a successful login.
type LoginResult struct {
	Tokens Tokens
	Record session.Record
}

// RunLogin verifies username and password through the user provider and
// issues an opaque access and refresh pair.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (LoginResult, error) {
	deps.fill()
	if deps.Authenticate == nil || deps.IssuePair == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if !errors.Is(err, deps.Errors.RateLimited) {
				deps.Warn("goSession: login limiter unavailable", "error", err)
			} else {
				return LoginResult{}, deps.rateLimited(ctx, "login", ip, username)
			}
		}
	}

	subject, err := deps.Authenticate(ctx, username, password)
	if err == nil && !subject.Enabled {
		err = deps.Errors.InvalidCredentials
	}
	if err != nil {
		if !isCredentialError(err, deps.Errors) {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, 0, username, err, nil)
			return LoginResult{}, err
		}

		if deps.IncrementLoginRate != nil {
			if incErr := deps.IncrementLoginRate(ctx, username, ip); incErr != nil {
				deps.Warn("goSession: login limiter increment failed", "error", incErr)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, 0, username, deps.Errors.InvalidCredentials, deps.attemptsMeta(ctx, username))
		return LoginResult{}, deps.Errors.InvalidCredentials
	}

	role := subject.Role
	if role == "" {
		role = deps.DefaultRole
	}
	record := subject.Record(role)

	tokens, err := deps.IssuePair(ctx, record)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, subject.ID, subject.Username, err, nil)
		return LoginResult{}, err
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, username); err != nil {
			deps.Warn("goSession: login limiter reset failed", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, subject.ID, subject.Username, nil, nil)

	return LoginResult{Tokens: tokens, Record: record}, nil
}

// RunClientLogin resolves a subject by client secret and issues a signed
// access token plus an opaque refresh token, both with the client role.
// A non-empty clientID must equal the resolved subject's username.
func RunClientLogin(ctx context.Context, clientID, clientSecret string, deps LoginDeps) (LoginResult, error) {
	deps.fill()
	if deps.GetUserByClientSecret == nil || deps.MintSigned == nil || deps.IssueRefresh == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	fail := func(err error, subjectID int64, name string) (LoginResult, error) {
		deps.MetricInc(deps.Metrics.ClientLoginFailure)
		deps.EmitAudit(ctx, deps.Events.ClientLoginFailure, false, subjectID, name, err, nil)
		return LoginResult{}, err
	}

	if clientSecret == "" {
		return fail(deps.Errors.InvalidClientCredentials, 0, clientID)
	}

	subject, err := deps.GetUserByClientSecret(ctx, clientSecret)
	if err == nil && !subject.Enabled {
		err = deps.Errors.InvalidClientCredentials
	}
	if err != nil {
		if isCredentialError(err, deps.Errors) || errors.Is(err, deps.Errors.InvalidClientCredentials) {
			return fail(deps.Errors.InvalidClientCredentials, 0, clientID)
		}
		return fail(err, 0, clientID)
	}
	if clientID != "" && clientID != subject.Username {
		return fail(deps.Errors.InvalidClientCredentials, 0, clientID)
	}

	record := subject.Record(deps.ClientRole)

	access, err := deps.MintSigned(record)
	if err != nil {
		return fail(fmt.Errorf("mint signed token: %w", err), subject.ID, subject.Username)
	}
	refresh, err := deps.IssueRefresh(ctx, record)
	if err != nil {
		return fail(err, subject.ID, subject.Username)
	}

	deps.MetricInc(deps.Metrics.ClientLoginSuccess)
	deps.EmitAudit(ctx, deps.Events.ClientLoginSuccess, true, subject.ID, subject.Username, nil, nil)

	return LoginResult{
		Tokens: Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    deps.SignedTTL,
		},
		Record: record,
	}, nil
}

func isCredentialError(err error, e Errors) bool {
	return (e.InvalidCredentials != nil && errors.Is(err, e.InvalidCredentials)) ||
		(e.UserNotFound != nil && errors.Is(err, e.UserNotFound))
}

// attemptsMeta reports the failed-login count for username in the audit
// metadata. A limiter error leaves the field out.
func (deps LoginDeps) attemptsMeta(ctx context.Context, username string) func() map[string]string {
	if deps.LoginAttempts == nil {
		return nil
	}
	return func() map[string]string {
		n, err := deps.LoginAttempts(ctx, username)
		if err != nil {
			return nil
		}
		return map[string]string{"failed_attempts": strconv.Itoa(n)}
	}
}
