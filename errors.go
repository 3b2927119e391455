package goSession

import "errors"

var (
	// ErrInvalidCredentials is returned when a username and password do not match an enabled user.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidClientCredentials is returned when a client secret does not resolve to an enabled user.
	ErrInvalidClientCredentials = errors.New("invalid client credentials")
	// ErrInvalidRefreshToken is returned when a refresh token is absent, expired, corrupt, or already consumed.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrPasswordMismatch is returned by registration when the confirmation differs.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrUsernameTaken is returned by registration when the username is already in use.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken is returned by registration when the email is already in use.
	ErrEmailTaken = errors.New("email already taken")
	// ErrStoreUnavailable wraps transient failures of the token store.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrDecode is returned when a stored session record cannot be decoded.
	ErrDecode = errors.New("session record corrupt")
	// ErrTokenNotFound is returned when an opaque token is not in the store.
	ErrTokenNotFound = errors.New("token not found")
	// ErrUserNotFound is returned when a user no longer exists or is disabled.
	ErrUserNotFound = errors.New("user not found")
	// ErrRateLimited is returned when a login, refresh or registration exceeds its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthenticated is returned when no identity is attached to a request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrEngineNotReady is returned when a required dependency was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")

	errSignedTokenInvalid = errors.New("signed token invalid")
)
