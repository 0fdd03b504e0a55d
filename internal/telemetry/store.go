package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

// HistoryFile is the query history database inside the data directory.
const HistoryFile = "telemetry.db"

// zeroResultKeep bounds the persisted zero-result queries.
const zeroResultKeep = 100

// History is a daily query summary read back from the store.
type History struct {
	Days            int                     `json:"days"`
	TotalQueries    int64                   `json:"total_queries"`
	FailedQueries   int64                   `json:"failed_queries"`
	ZeroResultCount int64                   `json:"zero_result_count"`
	CategoryIntents map[string]int64        `json:"category_intents"`
	PriceIntents    map[string]int64        `json:"price_intents"`
	Latency         map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms        []TermCount             `json:"top_terms"`
	ZeroResults     []string                `json:"zero_result_queries"`
}

// SQLiteStore persists QueryStats snapshots across server restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the history database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	// One writer; modernc ignores most DSN pragmas so set them directly.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	-- Daily counters: kind is total, failed, zero, category, price or latency
	CREATE TABLE IF NOT EXISTS query_counts (
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, kind, label)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// Save adds snap to the counters for date (YYYY-MM-DD). Counts accumulate,
// so each snapshot must be saved once.
func (s *SQLiteStore) Save(date string, snap *QueryStatsSnapshot) error {
	if snap == nil || snap.TotalQueries == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	counts, err := tx.Prepare(`
		INSERT INTO query_counts (date, kind, label, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, kind, label) DO UPDATE SET count = count + excluded.count
	`)
	if err != nil {
		return fmt.Errorf("prepare counts: %w", err)
	}
	defer counts.Close()

	add := func(kind, label string, n int64) error {
		if n == 0 {
			return nil
		}
		if _, err := counts.Exec(date, kind, label, n); err != nil {
			return fmt.Errorf("insert %s count: %w", kind, err)
		}
		return nil
	}

	if err := add("total", "", snap.TotalQueries); err != nil {
		return err
	}
	if err := add("failed", "", snap.FailedQueries); err != nil {
		return err
	}
	if err := add("zero", "", snap.ZeroResultCount); err != nil {
		return err
	}
	for label, n := range snap.CategoryIntents {
		if err := add("category", label, n); err != nil {
			return err
		}
	}
	for label, n := range snap.PriceIntents {
		if err := add("price", label, n); err != nil {
			return err
		}
	}
	for bucket, n := range snap.LatencyDistribution {
		if err := add("latency", string(bucket), n); err != nil {
			return err
		}
	}

	terms, err := tx.Prepare(`
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare terms: %w", err)
	}
	defer terms.Close()
	for _, tc := range snap.TopTerms {
		if _, err := terms.Exec(tc.Term, tc.Count); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	now := time.Now()
	for _, q := range snap.ZeroResultQueries {
		if _, err := tx.Exec(`INSERT INTO zero_result_queries (query, timestamp) VALUES (?, ?)`, q, now); err != nil {
			return fmt.Errorf("insert zero-result query: %w", err)
		}
	}
	if _, err := tx.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, zeroResultKeep); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// History sums the counters between from and to inclusive and returns the
// top terms and most recent zero-result queries, each capped at limit.
func (s *SQLiteStore) History(from, to string, limit int) (*History, error) {
	h := &History{
		CategoryIntents: make(map[string]int64),
		PriceIntents:    make(map[string]int64),
		Latency:         make(map[LatencyBucket]int64),
	}

	rows, err := s.db.Query(`
		SELECT kind, label, SUM(count), COUNT(DISTINCT date)
		FROM query_counts
		WHERE date >= ? AND date <= ?
		GROUP BY kind, label
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, label string
		var total int64
		var days int
		if err := rows.Scan(&kind, &label, &total, &days); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		switch kind {
		case "total":
			h.TotalQueries = total
			h.Days = days
		case "failed":
			h.FailedQueries = total
		case "zero":
			h.ZeroResultCount = total
		case "category":
			h.CategoryIntents[label] = total
		case "price":
			h.PriceIntents[label] = total
		case "latency":
			h.Latency[LatencyBucket(label)] = total
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if h.TopTerms, err = s.topTerms(limit); err != nil {
		return nil, err
	}
	if h.ZeroResults, err = s.zeroResults(limit); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *SQLiteStore) topTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

func (s *SQLiteStore) zeroResults(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
