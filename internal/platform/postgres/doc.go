// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package, together with the
// embedded goose migrations that create their schema.
//
// Every store resolves its executor with store.Conn, so a call made inside
// store.RunInTransaction joins that transaction.
package postgres
