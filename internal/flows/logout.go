package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Common

	ResolveAccess func(ctx context.Context, token string) (session.Record, error)
	RevokeAccess  func(ctx context.Context, token string) error
	RevokeRefresh func(ctx context.Context, token string) error
}

// RunLogout revokes whichever of the two tokens is non-empty. Revoking an
// unknown token succeeds.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) error {
	deps.fill()
	if deps.RevokeAccess == nil || deps.RevokeRefresh == nil {
		return deps.Errors.EngineNotReady
	}

	var who session.Record
	if accessToken != "" && deps.ResolveAccess != nil {
		if r, err := deps.ResolveAccess(ctx, accessToken); err == nil {
			who = r
		}
	}

	var errs []error
	if accessToken != "" {
		if err := deps.RevokeAccess(ctx, accessToken); err != nil {
			errs = append(errs, err)
		}
	}
	if refreshToken != "" {
		if err := deps.RevokeRefresh(ctx, refreshToken); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, err == nil, who.SubjectID, who.SubjectName, err, nil)
	return err
}
