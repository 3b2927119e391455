package middleware

import (
	"net/http"
	"strings"
)

// BearerToken returns the credential from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively; anything else reports
// false.
func BearerToken(r *http.Request) (string, bool) {
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
