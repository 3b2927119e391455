// Package userstore is a database/sql implementation of
// [goSession.UserProvider] for SQLite (modernc.org/sqlite) and Postgres
// (pgx). The schema is applied with goose from embedded migrations.
//
//	hasher, _ := password.NewArgon2(password.DefaultConfig())
//	users, err := userstore.Open(ctx, userstore.DialectSQLite, "file:users.db", hasher)
package userstore
