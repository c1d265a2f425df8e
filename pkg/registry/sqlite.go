package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"roxy-hq/roxy/pkg/config"
)

// SQLiteStore implements Store using SQLite for persistence. It is suitable
// for single-instance deployments where the prober, selector, and gateway
// share one process.
//
// The store opens the database in WAL mode for better concurrent read
// performance and limits the pool to a single writer connection, which is
// all SQLite supports.
type SQLiteStore struct {
	db        *sql.DB
	closeOnce sync.Once

	// prepared statements for the hot paths
	upsertStmt  *sql.Stmt
	listStmt    *sql.Stmt
	latencyStmt *sql.Stmt
}

// OpenSQLite opens (creating if necessary) the SQLite-backed registry at
// cfg.Path and initializes the schema.
func OpenSQLite(cfg *config.RegistryConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite registry path cannot be empty")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}

	if err := s.applyPragmas(cfg.BusyTimeout.Milliseconds()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure registry database: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize registry schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare registry statements: %w", err)
	}

	return s, nil
}

// applyPragmas enables WAL mode and sets the write-contention timeout.
func (s *SQLiteStore) applyPragmas(busyTimeoutMS int64) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMS)); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return fmt.Errorf("set synchronous mode: %w", err)
	}
	return nil
}

// initSchema creates the proxies table and its query indexes if missing.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS proxies (
		url     TEXT NOT NULL,
		ip      TEXT NOT NULL,
		isp     TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		code    TEXT NOT NULL DEFAULT '',
		latency INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (url, ip)
	);

	CREATE INDEX IF NOT EXISTS idx_proxies_latency ON proxies(latency);
	CREATE INDEX IF NOT EXISTS idx_proxies_code_latency ON proxies(code, latency);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements pre-compiles the fixed-shape statements. Candidate
// queries are built dynamically because their filter clauses vary.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO proxies (url, ip, isp, country, code, latency)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (url, ip) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`SELECT ip FROM proxies`)
	if err != nil {
		return fmt.Errorf("prepare list: %w", err)
	}

	s.latencyStmt, err = s.db.Prepare(`UPDATE proxies SET latency = ? WHERE ip = ?`)
	if err != nil {
		return fmt.Errorf("prepare latency update: %w", err)
	}

	return nil
}

// UpsertDiscovered inserts a record if its (url, ip) pair is unseen.
func (s *SQLiteStore) UpsertDiscovered(ctx context.Context, rec ProxyRecord) error {
	_, err := s.upsertStmt.ExecContext(ctx,
		rec.URL, rec.IP, rec.ISP, rec.Country, strings.ToUpper(rec.Code), rec.LatencyMS)
	return storeErr("upsert discovered", err)
}

// ListIPs returns the probe target of every tracked record.
func (s *SQLiteStore) ListIPs(ctx context.Context) ([]string, error) {
	rows, err := s.listStmt.QueryContext(ctx)
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
func (s *SQLiteStore) UpdateLatency(ctx context.Context, ip string, latencyMS int64) error {
	_, err := s.latencyStmt.ExecContext(ctx, latencyMS, ip)
	return storeErr("update latency", err)
}

// QueryCandidates returns records passing the filter, fastest first.
func (s *SQLiteStore) QueryCandidates(ctx context.Context, f Filter) ([]ProxyRecord, error) {
	query, args := buildCandidateQuery(f, sqlitePlaceholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query candidates", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return storeErr("ping", s.db.PingContext(ctx))
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.upsertStmt, s.listStmt, s.latencyStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

// rowScanner abstracts *sql.Rows for candidate scanning.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanCandidates reads ProxyRecords from a candidate query result.
func scanCandidates(rows rowScanner) ([]ProxyRecord, error) {
	var records []ProxyRecord
	for rows.Next() {
		var rec ProxyRecord
		if err := rows.Scan(&rec.URL, &rec.IP, &rec.ISP, &rec.Country, &rec.Code, &rec.LatencyMS); err != nil {
			return nil, storeErr("query candidates", err)
		}
		records = append(records, rec)
	}
	return records, storeErr("query candidates", rows.Err())
}

// placeholderFunc renders the n-th (1-based) SQL placeholder for a dialect.
type placeholderFunc func(n int) string

func sqlitePlaceholders(int) string { return "?" }

func postgresPlaceholders(n int) string { return fmt.Sprintf("$%d", n) }

// buildCandidateQuery renders the candidate SELECT for a filter. The base
// invariant is enforced here for every caller: positive latency under the
// ceiling and non-empty url/ip.
func buildCandidateQuery(f Filter, ph placeholderFunc) (string, []any) {
	var sb strings.Builder
	var args []any

	next := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	sb.WriteString(`SELECT url, ip, isp, country, code, latency FROM proxies WHERE latency > 0`)
	sb.WriteString(` AND latency < ` + next(f.MaxLatencyMS))
	sb.WriteString(` AND url <> '' AND ip <> ''`)
	if f.RequireCode != "" {
		sb.WriteString(` AND code = ` + next(f.RequireCode))
	}
	if f.ExcludeCode != "" {
		sb.WriteString(` AND code <> ` + next(f.ExcludeCode))
	}
	sb.WriteString(` ORDER BY latency ASC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ` + next(f.Limit))
	}

	return sb.String(), args
}
