package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	Common

	PreserveRole bool
	DefaultRole  string

	CheckRefreshRate func(ctx context.Context, ip string) error
	Consume          func(ctx context.Context, refreshToken string) (Consumed, error)
	GetUserByID      func(ctx context.Context, id int64) (Subject, error)
	IssuePair        func(ctx context.Context, record session.Record) (Tokens, error)
}

// RunRefresh consumes the refresh token atomically, re-checks the subject, and
// issues a new pair. If issuance fails the consumed token is restored so the
// caller can retry. A missing or disabled subject leaves the token consumed.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (LoginResult, error) {
	deps.fill()
	if deps.Consume == nil || deps.IssuePair == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, ip); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				return LoginResult{}, deps.rateLimited(ctx, "refresh", ip, "")
			}
			deps.Warn("goSession: refresh limiter unavailable", "error", err)
		}
	}

	// Token and subject rejections audit as refresh_invalid; infrastructure
	// failures audit as refresh_failure with a reason.
	invalid := func(err error, subjectID int64, name string) (LoginResult, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if errors.Is(err, deps.Errors.InvalidRefreshToken) || errors.Is(err, deps.Errors.UserNotFound) {
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, subjectID, name, err, nil)
			return LoginResult{}, err
		}
		reason := "internal"
		if deps.Errors.StoreUnavailable != nil && errors.Is(err, deps.Errors.StoreUnavailable) {
			reason = "store_unavailable"
		}
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, subjectID, name, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return LoginResult{}, err
	}

	if refreshToken == "" {
		return invalid(deps.Errors.InvalidRefreshToken, 0, "")
	}

	consumed, err := deps.Consume(ctx, refreshToken)
	if err != nil {
		return invalid(err, 0, "")
	}
	old := consumed.Record()

	restore := func() {
		if rErr := consumed.Restore(ctx); rErr != nil {
			deps.Warn("goSession: refresh token restore failed", "subject_id", old.SubjectID, "error", rErr)
			return
		}
		deps.MetricInc(deps.Metrics.RefreshRestored)
	}

	name := old.SubjectName
	if deps.GetUserByID != nil {
		subject, err := deps.GetUserByID(ctx, old.SubjectID)
		if err == nil && !subject.Enabled {
			err = deps.Errors.UserNotFound
		}
		if err != nil {
			if isCredentialError(err, deps.Errors) {
				return invalid(deps.Errors.UserNotFound, old.SubjectID, old.SubjectName)
			}
			restore()
			return invalid(err, old.SubjectID, old.SubjectName)
		}
		name = subject.Username
	}

	role := deps.DefaultRole
	if deps.PreserveRole && old.Role != "" {
		role = old.Role
	}
	record := session.Record{SubjectID: old.SubjectID, SubjectName: name, Role: role}

	tokens, err := deps.IssuePair(ctx, record)
	if err != nil {
		restore()
		return invalid(err, old.SubjectID, name)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, record.SubjectID, record.SubjectName, nil, nil)

	return LoginResult{Tokens: tokens, Record: record}, nil
}
