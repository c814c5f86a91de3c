// Package stores provides the persistence layer for providers, instances,
// reconciliation runs, and the audit trail, backed by SQLite.
package stores
