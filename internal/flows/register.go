package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// NewSubject is what the user provider persists on registration.
type NewSubject struct {
	Username     string
	Email        string
	Password     string
	ClientSecret string
	Role         string
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Common

	DefaultRole string

	CheckRegisterRate func(ctx context.Context, ip string) error
	UsernameExists    func(ctx context.Context, username string) (bool, error)
	EmailExists       func(ctx context.Context, email string) (bool, error)
	NewClientSecret   func() (string, error)
	CreateUser        func(ctx context.Context, in NewSubject) (Subject, error)
	IssuePair         func(ctx context.Context, record session.Record) (Tokens, error)
}

// RunRegister checks the password confirmation, then username and email
// availability, creates the user, and logs the new user in.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (LoginResult, error) {
	deps.fill()
	if deps.UsernameExists == nil || deps.EmailExists == nil || deps.CreateUser == nil || deps.IssuePair == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	fail := func(err error) (LoginResult, error) {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, 0, in.Username, err, func() map[string]string {
			return map[string]string{"email": in.Email}
		})
		return LoginResult{}, err
	}

	if deps.CheckRegisterRate != nil {
		if err := deps.CheckRegisterRate(ctx, ip); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				return LoginResult{}, deps.rateLimited(ctx, "register", ip, in.Username)
			}
			deps.Warn("goSession: register limiter unavailable", "error", err)
		}
	}

	if in.Password != in.ConfirmPassword {
		return fail(deps.Errors.PasswordMismatch)
	}

	taken, err := deps.UsernameExists(ctx, in.Username)
	if err != nil {
		return fail(err)
	}
	if taken {
		return fail(deps.Errors.UsernameTaken)
	}

	taken, err = deps.EmailExists(ctx, in.Email)
	if err != nil {
		return fail(err)
	}
	if taken {
		return fail(deps.Errors.EmailTaken)
	}

	secret := ""
	if deps.NewClientSecret != nil {
		secret, err = deps.NewClientSecret()
		if err != nil {
			return fail(err)
		}
	}

	subject, err := deps.CreateUser(ctx, NewSubject{
		Username:     in.Username,
		Email:        in.Email,
		Password:     in.Password,
		ClientSecret: secret,
		Role:         deps.DefaultRole,
	})
	if err != nil {
		return fail(err)
	}

	role := subject.Role
	if role == "" {
		role = deps.DefaultRole
	}
	record := subject.Record(role)

	tokens, err := deps.IssuePair(ctx, record)
	if err != nil {
		return fail(err)
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, subject.ID, subject.Username, nil, nil)

	return LoginResult{Tokens: tokens, Record: record}, nil
}
