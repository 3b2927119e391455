package httpapi

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 1024)),
	)
}

// ClientLoginRequest is the body of POST /api/auth/client/login.
// ClientID is optional; when present it must name the secret's owner.
type ClientLoginRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (r ClientLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClientID, validation.Length(0, 255)),
		validation.Field(&r.ClientSecret, validation.Required, validation.Length(1, 255)),
	)
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required, validation.Length(1, 512)),
	)
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks shape only. Password confirmation is compared by the
// engine so the mismatch surfaces as its own error.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50), is.PrintableASCII),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

// LogoutRequest is the optional body of POST /api/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50), is.PrintableASCII),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.Length(0, 32), is.UpperCase),
	)
}

// UpdateUserRequest is the body of PUT /api/users/{id}. Omitted fields are
// left unchanged; present fields must not be empty.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Enabled  *bool   `json:"enabled"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(3, 50), is.PrintableASCII),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.Length(1, 32), is.UpperCase),
	)
}
