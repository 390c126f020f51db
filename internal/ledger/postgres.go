package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payguard/internal/config"
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS payment_records (
        id         BIGSERIAL PRIMARY KEY,
        tenant_id  TEXT,
        group_name TEXT NOT NULL,
        scope      TEXT NOT NULL,
        direction  TEXT NOT NULL,
        amount     NUMERIC(78,0) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS payment_records_window_idx
        ON payment_records (tenant_id, group_name, scope, direction, created_at);`

	insertRecordSQL = `INSERT INTO payment_records (
        tenant_id, group_name, scope, direction, amount, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6);`

	sumRecordsSQL = `SELECT COALESCE(SUM(amount), 0)::TEXT
    FROM payment_records
    WHERE tenant_id IS NOT DISTINCT FROM $1
      AND group_name = $2
      AND scope = $3
      AND direction = $4
      AND created_at >= $5;`

	listRecordsSQL = `SELECT group_name, scope, direction, amount::TEXT, created_at, COALESCE(tenant_id, '')
    FROM payment_records
    WHERE tenant_id IS NOT DISTINCT FROM $1
      AND ($2 = '' OR group_name = $2)
      AND ($3 = '' OR scope = $3)
      AND ($4 = '' OR direction = $4)
    ORDER BY created_at, id;`

	clearRecordsSQL = `DELETE FROM payment_records WHERE tenant_id IS NOT DISTINCT FROM $1;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore persists records in a single append-only table. A store
// constructed with a tenant identifier only ever sees that tenant's rows;
// a store without one operates on the disjoint no-tenant partition.
type PostgresStore struct {
	pool     *pgxpool.Pool
	tenantID *string
}

// PostgresOption tunes a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresTenant scopes the store to one tenant partition.
func WithPostgresTenant(id string) PostgresOption {
	return func(s *PostgresStore) { s.tenantID = &id }
}

// NewPostgresStore wires a pgx pool into a durable ledger store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table and window index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure ledger schema: %w", execErr)
	}
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// RecordPayment inserts one row. Single-row insert atomicity is the
// concurrency guarantee; failures propagate to the caller.
func (s *PostgresStore) RecordPayment(ctx context.Context, groupName, scope string, direction Direction, amount *big.Int) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	_, execErr := pool.Exec(ctx, insertRecordSQL,
		s.tenantID,
		groupName,
		scope,
		string(direction),
		amount.String(),
		time.Now().UTC(),
	)
	if execErr != nil {
		return fmt.Errorf("record payment: %w", execErr)
	}
	return nil
}

// GetTotal sums amounts within the window using the covering index.
func (s *PostgresStore) GetTotal(ctx context.Context, groupName, scope string, direction Direction, window time.Duration) (*big.Int, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	cutoff := time.Time{}
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}

	var sumStr string
	if scanErr := pool.QueryRow(ctx, sumRecordsSQL,
		s.tenantID, groupName, scope, string(direction), cutoff,
	).Scan(&sumStr); scanErr != nil {
		return nil, fmt.Errorf("sum payments: %w", scanErr)
	}

	total, ok := new(big.Int).SetString(sumStr, 10)
	if !ok {
		return nil, fmt.Errorf("parse payment total %q", sumStr)
	}
	return total, nil
}

// GetAllRecords lists this partition's records matching the filter.
func (s *PostgresStore) GetAllRecords(ctx context.Context, f Filter) ([]PaymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecordsSQL,
		s.tenantID, f.GroupName, f.Scope, string(f.Direction),
	)
	if queryErr != nil {
		return nil, fmt.Errorf("list payment records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]PaymentRecord, 0)
	for rows.Next() {
		record, scanErr := scanPaymentRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// Clear removes every row in this store's tenant partition.
func (s *PostgresStore) Clear(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, clearRecordsSQL, s.tenantID); execErr != nil {
		return fmt.Errorf("clear payment records: %w", execErr)
	}
	return nil
}

func scanPaymentRecord(rows pgx.Rows) (PaymentRecord, error) {
	var (
		groupName string
		scope     string
		direction string
		amountStr string
		createdAt time.Time
		tenantID  string
	)

	if err := rows.Scan(&groupName, &scope, &direction, &amountStr, &createdAt, &tenantID); err != nil {
		return PaymentRecord{}, err
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return PaymentRecord{}, fmt.Errorf("parse record amount %q", amountStr)
	}

	return PaymentRecord{
		GroupName: groupName,
		Scope:     scope,
		Direction: Direction(direction),
		Amount:    amount,
		Timestamp: createdAt,
		TenantID:  tenantID,
	}, nil
}
