package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateProvider creates a new provider record
func (s *SQLiteStore) CreateProvider(ctx context.Context, provider *Provider) error {
	query := `
		INSERT INTO providers (id, name, provider_type, credentials, regions, enabled, last_sync, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		provider.ID,
		provider.Name,
		provider.ProviderType,
		provider.Credentials,
		provider.Regions,
		provider.Enabled,
		provider.LastSync,
		provider.CreatedAt,
		provider.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	return nil
}

// GetProvider retrieves a provider by ID
func (s *SQLiteStore) GetProvider(ctx context.Context, id string) (*Provider, error) {
	query := `
		SELECT id, name, provider_type, credentials, regions, enabled, last_sync, created_at, updated_at
		FROM providers
		WHERE id = ?
	`

	provider := &Provider{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&provider.ID,
		&provider.Name,
		&provider.ProviderType,
		&provider.Credentials,
		&provider.Regions,
		&provider.Enabled,
		&provider.LastSync,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return provider, nil
}

// GetProviderByName retrieves a provider by its unique name
func (s *SQLiteStore) GetProviderByName(ctx context.Context, name string) (*Provider, error) {
	query := `
		SELECT id, name, provider_type, credentials, regions, enabled, last_sync, created_at, updated_at
		FROM providers
		WHERE name = ?
	`

	provider := &Provider{}
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&provider.ID,
		&provider.Name,
		&provider.ProviderType,
		&provider.Credentials,
		&provider.Regions,
		&provider.Enabled,
		&provider.LastSync,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return provider, nil
}

// ListProviders lists providers, optionally filtered to enabled ones
func (s *SQLiteStore) ListProviders(ctx context.Context, enabledOnly bool) ([]*Provider, error) {
	query := `
		SELECT id, name, provider_type, credentials, regions, enabled, last_sync, created_at, updated_at
		FROM providers
		WHERE (? = 0 OR enabled = 1)
		ORDER BY name ASC
	`

	filter := 0
	if enabledOnly {
		filter = 1
	}

	rows, err := s.db.QueryContext(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	providers := []*Provider{}
	for rows.Next() {
		provider := &Provider{}
		err := rows.Scan(
			&provider.ID,
			&provider.Name,
			&provider.ProviderType,
			&provider.Credentials,
			&provider.Regions,
			&provider.Enabled,
			&provider.LastSync,
			&provider.CreatedAt,
			&provider.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, provider)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating providers: %w", err)
	}

	return providers, nil
}

// UpdateProvider updates a provider's mutable fields
func (s *SQLiteStore) UpdateProvider(ctx context.Context, provider *Provider) error {
	query := `
		UPDATE providers
		SET name = ?, credentials = ?, regions = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		provider.Name,
		provider.Credentials,
		provider.Regions,
		provider.Enabled,
		time.Now().UTC(),
		provider.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("provider not found: %s", provider.ID)
	}

	return nil
}

// DeleteProvider deletes a provider by ID. Instances and sync runs
// cascade.
func (s *SQLiteStore) DeleteProvider(ctx context.Context, id string) error {
	query := `DELETE FROM providers WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("provider not found: %s", id)
	}

	return nil
}

// SetProviderLastSyncTx updates a provider's last_sync timestamp inside a
// transaction.
func (s *SQLiteStore) SetProviderLastSyncTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	query := `UPDATE providers SET last_sync = ?, updated_at = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to set provider last sync: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("provider not found: %s", id)
	}

	return nil
}

// UpsertInstanceTx inserts or updates an instance inside a transaction.
// The surrogate id and created_at are preserved on conflict so the record
// identity is stable across reconciliations.
func (s *SQLiteStore) UpsertInstanceTx(ctx context.Context, tx *sql.Tx, instance *InstanceRecord) error {
	query := `
		INSERT INTO instances (
			id, provider_id, provider_instance_id, name, status, instance_type,
			vcpus, ram_mb, disk_gb, region, availability_zone,
			private_ip, public_ip, launch_time, tags, monthly_cost,
			created_at, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, provider_instance_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			instance_type = excluded.instance_type,
			vcpus = excluded.vcpus,
			ram_mb = excluded.ram_mb,
			disk_gb = excluded.disk_gb,
			region = excluded.region,
			availability_zone = excluded.availability_zone,
			private_ip = excluded.private_ip,
			public_ip = excluded.public_ip,
			launch_time = excluded.launch_time,
			tags = excluded.tags,
			monthly_cost = excluded.monthly_cost,
			last_updated = excluded.last_updated
	`

	_, err := tx.ExecContext(ctx, query,
		instance.ID,
		instance.ProviderID,
		instance.ProviderInstanceID,
		instance.Name,
		instance.Status,
		instance.InstanceType,
		instance.VCPUs,
		instance.RAMMb,
		instance.DiskGb,
		instance.Region,
		instance.AvailabilityZone,
		instance.PrivateIP,
		instance.PublicIP,
		instance.LaunchTime,
		instance.Tags,
		instance.MonthlyCost,
		instance.CreatedAt,
		instance.LastUpdated,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert instance: %w", err)
	}

	return nil
}

// GetInstance retrieves an instance by surrogate ID
func (s *SQLiteStore) GetInstance(ctx context.Context, id string) (*InstanceRecord, error) {
	query := instanceSelectColumns + ` WHERE id = ?`

	instance := &InstanceRecord{}
	err := scanInstance(s.db.QueryRowContext(ctx, query, id), instance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// GetInstanceByProviderKey retrieves an instance by its natural key
func (s *SQLiteStore) GetInstanceByProviderKey(ctx context.Context, providerID, providerInstanceID string) (*InstanceRecord, error) {
	query := instanceSelectColumns + ` WHERE provider_id = ? AND provider_instance_id = ?`

	instance := &InstanceRecord{}
	err := scanInstance(s.db.QueryRowContext(ctx, query, providerID, providerInstanceID), instance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("instance not found: %s/%s", providerID, providerInstanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

const instanceSelectColumns = `
	SELECT id, provider_id, provider_instance_id, name, status, instance_type,
		   vcpus, ram_mb, disk_gb, region, availability_zone,
		   private_ip, public_ip, launch_time, tags, monthly_cost,
		   created_at, last_updated
	FROM instances`

// rowScanner abstracts *sql.Row and *sql.Rows for scanInstance
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner, instance *InstanceRecord) error {
	return row.Scan(
		&instance.ID,
		&instance.ProviderID,
		&instance.ProviderInstanceID,
		&instance.Name,
		&instance.Status,
		&instance.InstanceType,
		&instance.VCPUs,
		&instance.RAMMb,
		&instance.DiskGb,
		&instance.Region,
		&instance.AvailabilityZone,
		&instance.PrivateIP,
		&instance.PublicIP,
		&instance.LaunchTime,
		&instance.Tags,
		&instance.MonthlyCost,
		&instance.CreatedAt,
		&instance.LastUpdated,
	)
}

// ListInstances lists instances with optional filters and pagination
func (s *SQLiteStore) ListInstances(ctx context.Context, providerID *string, status *string, limit, offset int) ([]*InstanceRecord, error) {
	query := instanceSelectColumns + `
	WHERE (? IS NULL OR provider_id = ?)
	  AND (? IS NULL OR status = ?)
	ORDER BY last_updated DESC
	LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, providerID, providerID, status, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	instances := []*InstanceRecord{}
	for rows.Next() {
		instance := &InstanceRecord{}
		if err := scanInstance(rows, instance); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// UpdateInstanceStatus updates the cached status of an instance
func (s *SQLiteStore) UpdateInstanceStatus(ctx context.Context, id string, status string) error {
	query := `UPDATE instances SET status = ?, last_updated = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update instance status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("instance not found: %s", id)
	}

	return nil
}

// DeleteInstance deletes an instance by surrogate ID
func (s *SQLiteStore) DeleteInstance(ctx context.Context, id string) error {
	query := `DELETE FROM instances WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("instance not found: %s", id)
	}

	return nil
}

// CreateSyncRun creates a new sync run record
func (s *SQLiteStore) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, provider_id, status, started_at, completed_at, instances_synced, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.ProviderID,
		run.Status,
		run.StartedAt,
		run.CompletedAt,
		run.InstancesSynced,
		run.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	return nil
}

// CompleteSyncRunTx finalizes a sync run inside a transaction
func (s *SQLiteStore) CompleteSyncRunTx(ctx context.Context, tx *sql.Tx, id string, status SyncRunStatus, instances int, errMsg *string) error {
	return s.completeSyncRun(ctx, tx, id, status, instances, errMsg)
}

// CompleteSyncRun finalizes a sync run outside a transaction. Used when
// the run fails before any instance batch is written.
func (s *SQLiteStore) CompleteSyncRun(ctx context.Context, id string, status SyncRunStatus, instances int, errMsg *string) error {
	return s.completeSyncRun(ctx, s.db, id, status, instances, errMsg)
}

// execer abstracts *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) completeSyncRun(ctx context.Context, ex execer, id string, status SyncRunStatus, instances int, errMsg *string) error {
	query := `
		UPDATE sync_runs
		SET status = ?, completed_at = ?, instances_synced = ?, error = ?
		WHERE id = ?
	`

	result, err := ex.ExecContext(ctx, query, status, time.Now().UTC(), instances, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("sync run not found: %s", id)
	}

	return nil
}

// GetSyncRun retrieves a sync run by ID
func (s *SQLiteStore) GetSyncRun(ctx context.Context, id string) (*SyncRun, error) {
	query := `
		SELECT id, provider_id, status, started_at, completed_at, instances_synced, error
		FROM sync_runs
		WHERE id = ?
	`

	run := &SyncRun{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.ProviderID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.InstancesSynced,
		&run.Error,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	return run, nil
}

// ListSyncRuns lists sync runs with optional provider filter and pagination
func (s *SQLiteStore) ListSyncRuns(ctx context.Context, providerID *string, limit, offset int) ([]*SyncRun, error) {
	query := `
		SELECT id, provider_id, status, started_at, completed_at, instances_synced, error
		FROM sync_runs
		WHERE (? IS NULL OR provider_id = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, providerID, providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []*SyncRun{}
	for rows.Next() {
		run := &SyncRun{}
		err := rows.Scan(
			&run.ID,
			&run.ProviderID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.InstancesSynced,
			&run.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
