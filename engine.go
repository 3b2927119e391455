package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Verifier names reported by [Engine.Authenticate] logs.
const (
	VerifierOpaque = "opaque"
	VerifierSigned = "signed"
)

// Engine coordinates token issuance, request authentication, and the
// login, refresh, registration and logout flows.
//
// Engine instances are built by [Builder] and are safe for concurrent use.
type Engine struct {
	config       Config
	store        *session.Store
	issuer       *Issuer
	jwtManager   *jwt.Manager
	userProvider UserProvider
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       Logger
	verifiers    []flows.Verifier
}

// Close flushes the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the Engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Issuer exposes the opaque token issuer.
func (e *Engine) Issuer() *Issuer { return e.issuer }

// Logger returns the Engine logger.
func (e *Engine) Logger() Logger { return e.logger }

// Ping checks the token store.
func (e *Engine) Ping(ctx context.Context) error {
	return storeError(e.store.Ping(ctx))
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

/*
====================================
REQUEST AUTHENTICATION
====================================
*/

// Authenticate resolves credential through the ordered verifier chain:
// the opaque access token first, then the signed token when configured.
// It returns [ErrUnauthenticated] when nothing resolves. Store outages,
// corrupt records and invalid signed tokens are logged and treated as a
// failed path; they are never returned.
func (e *Engine) Authenticate(ctx context.Context, credential string) (Identity, error) {
	start := time.Now()
	result := flows.RunAuthenticate(ctx, credential, e.verifiers)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))

	for _, f := range result.Failures {
		reason := failureReason(f.Err)
		if reason == "signed_token_invalid" {
			e.logger.Debug(ctx, "goSession: verifier failed", "verifier", f.Verifier, "reason", reason, "error", f.Err)
			continue
		}
		e.logger.Warn(ctx, "goSession: verifier failed", "verifier", f.Verifier, "reason", reason, "error", f.Err)
	}

	if !result.Resolved {
		e.metricInc(MetricAnonymousRequest)
		return Identity{}, ErrUnauthenticated
	}
	if result.Verifier == VerifierSigned {
		e.metricInc(MetricSignedTokenFallback)
	}
	return identityFromRecord(result.Record), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, errSignedTokenInvalid):
		return "signed_token_invalid"
	case errors.Is(err, flows.ErrVerifierPanic):
		return "verifier_panic"
	default:
		return "verifier_error"
	}
}

func (e *Engine) opaqueVerifier() flows.Verifier {
	return flows.NewVerifier(VerifierOpaque, func(ctx context.Context, credential string) (session.Record, error) {
		id, err := e.issuer.ResolveAccess(ctx, credential)
		switch {
		case err == nil:
			e.metricInc(MetricResolveHit)
			return id.record(), nil
		case errors.Is(err, ErrTokenNotFound):
			e.metricInc(MetricResolveMiss)
			return session.Record{}, flows.ErrUnresolved
		case errors.Is(err, ErrStoreUnavailable):
			e.metricInc(MetricStoreError)
		case errors.Is(err, ErrDecode):
			e.metricInc(MetricDecodeError)
		}
		return session.Record{}, err
	})
}

func signedVerifier(m *jwt.Manager) flows.Verifier {
	return flows.NewVerifier(VerifierSigned, func(_ context.Context, credential string) (session.Record, error) {
		if err := m.Validate(credential); err != nil {
			return session.Record{}, fmt.Errorf("%w: %v", errSignedTokenInvalid, err)
		}
		claims, err := m.ExtractClaims(credential)
		if err != nil {
			return session.Record{}, fmt.Errorf("%w: %v", errSignedTokenInvalid, err)
		}
		return session.Record{
			SubjectID:   claims.UID,
			SubjectName: claims.Username,
			Role:        claims.Role,
		}, nil
	})
}

/*
====================================
FLOWS
====================================
*/

// Login verifies a username and password and issues an opaque pair.
func (e *Engine) Login(ctx context.Context, username, password string) (AuthResponse, error) {
	res, err := flows.RunLogin(ctx, username, password, e.loginDeps())
	if err != nil {
		return AuthResponse{}, err
	}
	return e.response(res), nil
}

// ClientLogin resolves a client secret and issues a signed access token with
// the client role plus an opaque refresh token. A non-empty clientID must
// match the subject's username. It returns [ErrEngineNotReady] when no
// signed-token manager is configured.
func (e *Engine) ClientLogin(ctx context.Context, clientID, clientSecret string) (AuthResponse, error) {
	res, err := flows.RunClientLogin(ctx, clientID, clientSecret, e.loginDeps())
	if err != nil {
		return AuthResponse{}, err
	}
	return e.response(res), nil
}

// Refresh rotates a refresh token. A token can be used once; concurrent
// reuse yields exactly one success and [ErrInvalidRefreshToken] for the rest.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (AuthResponse, error) {
	res, err := flows.RunRefresh(ctx, refreshToken, e.refreshDeps())
	if err != nil {
		return AuthResponse{}, err
	}
	return e.response(res), nil
}

// Register creates a user and logs them in.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	res, err := flows.RunRegister(ctx, flows.RegisterInput{
		Username:        in.Username,
		Email:           in.Email,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
	}, e.registerDeps())
	if err != nil {
		return AuthResponse{}, err
	}
	return e.response(res), nil
}

// Logout revokes the given access and refresh tokens. Either may be empty.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return flows.RunLogout(ctx, accessToken, refreshToken, flows.LogoutDeps{
		Common: e.common(),
		ResolveAccess: func(ctx context.Context, token string) (session.Record, error) {
			id, err := e.issuer.ResolveAccess(ctx, token)
			return id.record(), err
		},
		RevokeAccess:  e.issuer.RevokeAccess,
		RevokeRefresh: e.issuer.RevokeRefresh,
	})
}

// UsernameExists reports whether username is registered.
func (e *Engine) UsernameExists(ctx context.Context, username string) (bool, error) {
	if e.userProvider == nil {
		return false, ErrEngineNotReady
	}
	return e.userProvider.UsernameExists(ctx, username)
}

// EmailExists reports whether email is registered.
func (e *Engine) EmailExists(ctx context.Context, email string) (bool, error) {
	if e.userProvider == nil {
		return false, ErrEngineNotReady
	}
	return e.userProvider.EmailExists(ctx, email)
}

func (e *Engine) response(res flows.LoginResult) AuthResponse {
	return NewAuthResponse(TokenPair{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
	}, identityFromRecord(res.Record))
}

/*
====================================
FLOW WIRING
====================================
*/

func (e *Engine) common() flows.Common {
	return flows.Common{
		ClientIPFromContext: ClientIPFromContext,
		MetricInc:           func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:           e.emitAudit,
		Warn: func(msg string, args ...any) {
			e.logger.Warn(context.Background(), msg, args...)
		},
		Metrics: flows.Metrics{
			LoginSuccess:       int(MetricLoginSuccess),
			LoginFailure:       int(MetricLoginFailure),
			ClientLoginSuccess: int(MetricClientLoginSuccess),
			ClientLoginFailure: int(MetricClientLoginFailure),
			RateLimited:        int(MetricRateLimited),
			RefreshSuccess:     int(MetricRefreshSuccess),
			RefreshFailure:     int(MetricRefreshFailure),
			RefreshRestored:    int(MetricRefreshRestored),
			RegisterSuccess:    int(MetricRegisterSuccess),
			RegisterFailure:    int(MetricRegisterFailure),
			Logout:             int(MetricLogout),
		},
		Events: flows.Events{
			LoginSuccess:       AuditLoginSuccess,
			LoginFailure:       AuditLoginFailure,
			ClientLoginSuccess: AuditClientLoginSuccess,
			ClientLoginFailure: AuditClientLoginFailure,
			RefreshSuccess:     AuditRefreshSuccess,
			RefreshInvalid:     AuditRefreshInvalid,
			RefreshFailure:     AuditRefreshFailure,
			RegisterSuccess:    AuditRegisterSuccess,
			RegisterFailure:    AuditRegisterFailure,
			Logout:             AuditLogout,
			RateLimited:        AuditRateLimited,
		},
		Errors: flows.Errors{
			EngineNotReady:           ErrEngineNotReady,
			InvalidCredentials:       ErrInvalidCredentials,
			InvalidClientCredentials: ErrInvalidClientCredentials,
			InvalidRefreshToken:      ErrInvalidRefreshToken,
			PasswordMismatch:         ErrPasswordMismatch,
			UsernameTaken:            ErrUsernameTaken,
			EmailTaken:               ErrEmailTaken,
			UserNotFound:             ErrUserNotFound,
			RateLimited:              ErrRateLimited,
			StoreUnavailable:         ErrStoreUnavailable,
		},
	}
}

func (e *Engine) issuePair(ctx context.Context, record session.Record) (flows.Tokens, error) {
	pair, err := e.issuer.IssuePair(ctx, identityFromRecord(record))
	if err != nil {
		return flows.Tokens{}, err
	}
	return flows.Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func (e *Engine) loginDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		Common:       e.common(),
		DefaultRole:  e.config.Token.DefaultRole,
		ClientRole:   e.config.Token.ClientRole,
		IssuePair:    e.issuePair,
		IssueRefresh: e.issuer.issueRefreshRecord,
	}

	if e.rateLimiter != nil {
		deps.CheckLoginRate = func(ctx context.Context, username, ip string) error {
			return limiterError(e.rateLimiter.CheckLogin(ctx, username, ip))
		}
		deps.IncrementLoginRate = e.rateLimiter.IncrementLogin
		deps.ResetLoginRate = e.rateLimiter.ResetLogin
		deps.LoginAttempts = e.rateLimiter.LoginAttempts
	}

	if e.userProvider != nil {
		deps.Authenticate = func(ctx context.Context, username, password string) (flows.Subject, error) {
			u, err := e.userProvider.Authenticate(ctx, username, password)
			return toSubject(u), err
		}
		deps.GetUserByClientSecret = func(ctx context.Context, secret string) (flows.Subject, error) {
			u, err := e.userProvider.GetUserByClientSecret(ctx, secret)
			return toSubject(u), err
		}
	}

	if e.jwtManager != nil {
		m := e.jwtManager
		deps.SignedTTL = m.TTL()
		deps.MintSigned = func(r session.Record) (string, error) {
			return m.Mint(r.SubjectID, r.SubjectName, r.Role)
		}
	}

	return deps
}

func (e *Engine) refreshDeps() flows.RefreshDeps {
	deps := flows.RefreshDeps{
		Common:       e.common(),
		PreserveRole: e.config.Token.PreserveRoleOnRefresh,
		DefaultRole:  e.config.Token.DefaultRole,
		Consume: func(ctx context.Context, token string) (flows.Consumed, error) {
			c, err := e.issuer.ConsumeRefresh(ctx, token)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		IssuePair: e.issuePair,
	}
	if e.rateLimiter != nil {
		deps.CheckRefreshRate = func(ctx context.Context, ip string) error {
			return limiterError(e.rateLimiter.CheckRefresh(ctx, ip))
		}
	}
	if e.userProvider != nil {
		deps.GetUserByID = func(ctx context.Context, id int64) (flows.Subject, error) {
			u, err := e.userProvider.GetUserByID(ctx, id)
			return toSubject(u), err
		}
	}
	return deps
}

func (e *Engine) registerDeps() flows.RegisterDeps {
	deps := flows.RegisterDeps{
		Common:          e.common(),
		DefaultRole:     e.config.Token.DefaultRole,
		NewClientSecret: internal.NewClientSecret,
		IssuePair:       e.issuePair,
	}
	if e.rateLimiter != nil {
		deps.CheckRegisterRate = func(ctx context.Context, ip string) error {
			return limiterError(e.rateLimiter.CheckRegister(ctx, ip))
		}
	}
	if e.userProvider != nil {
		deps.UsernameExists = e.userProvider.UsernameExists
		deps.EmailExists = e.userProvider.EmailExists
		deps.CreateUser = func(ctx context.Context, in flows.NewSubject) (flows.Subject, error) {
			u, err := e.userProvider.CreateUser(ctx, CreateUserInput{
				Username:     in.Username,
				Email:        in.Email,
				Password:     in.Password,
				ClientSecret: in.ClientSecret,
				Role:         in.Role,
			})
			return toSubject(u), err
		}
	}
	return deps
}

func limiterError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	return err
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, subjectID int64, subjectName string, err error, meta func() map[string]string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		SubjectID:   subjectID,
		SubjectName: subjectName,
		IP:          ClientIPFromContext(ctx),
		Success:     success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if meta != nil {
		event.Metadata = meta()
	}
	e.audit.Emit(ctx, event)
}
