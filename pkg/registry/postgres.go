package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"roxy-hq/roxy/pkg/config"
)

// PostgresStore implements Store on a long-lived pgx connection pool. It is
// the backend for shared deployments where the ingestion job runs as a
// separate process against the same database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a tuned pool to cfg.DSN and ensures the schema
// exists. The context bounds connection establishment and the initial ping.
func OpenPostgres(ctx context.Context, cfg *config.RegistryConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse registry dsn: %w", err)
	}

	// Keep a small, steady pool; every registry operation is a short
	// single-statement exchange.
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open registry pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping registry: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// ensureSchema creates the proxies table and its query indexes if missing.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS proxies (
  url     TEXT NOT NULL,
  ip      TEXT NOT NULL,
  isp     TEXT NOT NULL DEFAULT '',
  country TEXT NOT NULL DEFAULT '',
  code    TEXT NOT NULL DEFAULT '',
  latency BIGINT NOT NULL DEFAULT 0,
  PRIMARY KEY (url, ip)
);
CREATE INDEX IF NOT EXISTS idx_proxies_latency ON proxies (latency);
CREATE INDEX IF NOT EXISTS idx_proxies_code_latency ON proxies (code, latency);`

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create proxies table: %w", err)
	}
	return nil
}

// UpsertDiscovered inserts a record if its (url, ip) pair is unseen.
// Descriptive fields on an existing row are left untouched.
func (s *PostgresStore) UpsertDiscovered(ctx context.Context, rec ProxyRecord) error {
	const query = `
INSERT INTO proxies (url, ip, isp, country, code, latency)
VALUES ($1, $2, $3, $4, upper($5), $6)
ON CONFLICT (url, ip) DO NOTHING;`

	_, err := s.pool.Exec(ctx, query,
		rec.URL, rec.IP, rec.ISP, rec.Country, rec.Code, rec.LatencyMS)
	return storeErr("upsert discovered", err)
}

// ListIPs returns the probe target of every tracked record.
func (s *PostgresStore) ListIPs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT ip FROM proxies`)
	if err != nil {
		return nil, storeErr("list ips", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, storeErr("list ips", err)
		}
		ips = append(ips, ip)
	}
	return ips, storeErr("list ips", rows.Err())
}

// UpdateLatency records a measurement for ip. Unmatched rows are a no-op.
func (s *PostgresStore) UpdateLatency(ctx context.Context, ip string, latencyMS int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE proxies SET latency = $1 WHERE ip = $2`, latencyMS, ip)
	return storeErr("update latency", err)
}

// QueryCandidates returns records passing the filter, fastest first.
func (s *PostgresStore) QueryCandidates(ctx context.Context, f Filter) ([]ProxyRecord, error) {
	query, args := buildCandidateQuery(f, postgresPlaceholders)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query candidates", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return storeErr("ping", s.pool.Ping(ctx))
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
