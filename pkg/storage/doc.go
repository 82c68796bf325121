// Package storage provides store adapters for the durajobs package.
//
// Two adapters implement core.Storage:
//   - GormStore works with any GORM dialect (SQLite, PostgreSQL) and is the
//     default choice.
//   - PgxStore speaks raw SQL over a pgx connection pool and uses
//     FOR UPDATE SKIP LOCKED claim batches; prefer it for multi-node
//     PostgreSQL deployments.
package storage
