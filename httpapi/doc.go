// Package httpapi exposes the engine over REST:
//
//	POST /api/auth/login          username + password
//	POST /api/auth/client/login   client secret
//	POST /api/auth/refresh        rotate a refresh token
//	POST /api/auth/register       create a user and sign in
//	POST /api/auth/logout         revoke bearer and refresh tokens
//	GET  /api/auth/check-username ?username=
//	GET  /api/auth/check-email    ?email=
//	GET  /api/me                  current identity (401 when anonymous)
//	GET  /healthz
//
// Errors are {"success":false,"error":"..."} with the status chosen from
// the engine's sentinel errors.
package httpapi
