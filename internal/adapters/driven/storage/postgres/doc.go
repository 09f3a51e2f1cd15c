// Package postgres provides the server-backed relational catalog store.
//
// It implements driven.Catalog on a jackc/pgx/v5 connection pool for
// deployments where the donation platform's database is PostgreSQL. The
// schema is created on first connect and mirrors the SQLite store.
package postgres
