package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	SubjectID   int64  `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	Role        string `json:"role"`
}

func identityFromRecord(r session.Record) Identity {
	return Identity{SubjectID: r.SubjectID, SubjectName: r.SubjectName, Role: r.Role}
}

func (i Identity) record() session.Record {
	return session.Record{SubjectID: i.SubjectID, SubjectName: i.SubjectName, Role: i.Role}
}

// TokenPair is an issued access and refresh token. ExpiresIn is the
// lifetime of the access token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// AuthResponse is the issuance response returned to API callers.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	SubjectID    int64  `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	Role         string `json:"role"`
}

// NewAuthResponse builds the response body for an issued pair.
func NewAuthResponse(pair TokenPair, id Identity) AuthResponse {
	return AuthResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
		SubjectID:    id.SubjectID,
		SubjectName:  id.SubjectName,
		Role:         id.Role,
	}
}

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// UserRecord is a user as seen by the Engine.
type UserRecord struct {
	ID       int64
	Username string
	Email    string
	Role     string
	Enabled  bool
}

// CreateUserInput is what a [UserProvider] persists on registration.
// Password is plaintext; hashing is the provider's concern.
type CreateUserInput struct {
	Username     string
	Email        string
	Password     string
	ClientSecret string
	Role         string
}

// UserUpdate is a partial change to a stored user. Nil fields are left as
// they are; Password is plaintext.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Role     *string
	Enabled  *bool
}

// UserProvider is the external user-record capability.
//
// Authenticate returns [ErrInvalidCredentials] or [ErrUserNotFound] for bad
// credentials; any other error is treated as infrastructure failure.
// CreateUser returns [ErrUsernameTaken] or [ErrEmailTaken] when a unique
// constraint rejects the row.
type UserProvider interface {
	Authenticate(ctx context.Context, username, password string) (UserRecord, error)
	GetUserByID(ctx context.Context, id int64) (UserRecord, error)
	GetUserByClientSecret(ctx context.Context, secret string) (UserRecord, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, in CreateUserInput) (UserRecord, error)
}

func toSubject(u UserRecord) flows.Subject {
	return flows.Subject{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Enabled:  u.Enabled,
	}
}
