// Package store provides the SQLite-backed dataset store the agent
// reads and mutates. Tables come from the schema catalog; rows travel
// as generic maps so tools and layouts stay source-agnostic.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"viewsmith/internal/logging"
	"viewsmith/internal/schema"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding the queryable datasets.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path, creating the
// schema and seeding demo data when the catalog is empty and seed is
// true.
func Open(path string, seed bool) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable sqlite foreign_keys: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(seed); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized")

	return s, nil
}

// initialize creates the required tables and seeds them when empty.
func (s *Store) initialize(seed bool) error {
	for _, table := range schema.DDL {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if !seed {
		return nil
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	logging.Store("Seeding demo datasets")
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	for _, table := range schema.Datasets {
		meta, _ := schema.Lookup(table)
		for _, row := range schema.SeedRows(table) {
			if err := insertInto(tx, meta, row); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to seed %s: %w", table, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return nil
}

// execer lets insertInto run inside or outside a transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertInto(e execer, meta *schema.Table, row schema.Row) error {
	columns := make([]string, 0, len(meta.Columns))
	args := make([]any, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		if v, ok := row[col]; ok {
			columns = append(columns, col)
			args = append(args, v)
		}
	}
	if len(columns) == 0 {
		return fmt.Errorf("no columns for %s", meta.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		meta.Name, strings.Join(columns, ", "), placeholders)
	_, err := e.Exec(query, args...)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Sources returns every queryable dataset name in catalog order.
func (s *Store) Sources() []string {
	out := make([]string, len(schema.Datasets))
	copy(out, schema.Datasets)
	return out
}

// Rows returns the rows of a dataset with its default ordering. For the
// sales table a positive days window returns only the most recent N
// days, oldest first. Unknown sources return an empty slice.
func (s *Store) Rows(source string, days int) ([]schema.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowsLocked(source, days)
}

func (s *Store) rowsLocked(source string, days int) ([]schema.Row, error) {
	meta, ok := schema.Lookup(source)
	if !ok {
		return []schema.Row{}, nil
	}

	query := "SELECT * FROM " + meta.Name
	var args []any
	windowed := meta.Name == "sales" && days > 0
	if windowed {
		query += " ORDER BY date DESC LIMIT ?"
		args = append(args, days)
	} else if meta.OrderBy != "" {
		query += " ORDER BY " + meta.OrderBy
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", meta.Name, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	// The window selects newest-first; present it oldest-first.
	if windowed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// scanRows reads all rows into generic maps keyed by column name.
func scanRows(rows *sql.Rows) ([]schema.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := make([]schema.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(schema.Row, len(columns))
		for i, col := range columns {
			v := values[i]
			// TEXT can surface as []byte depending on the column affinity
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SourceSummary describes one dataset for the describe_sources tool.
type SourceSummary struct {
	Rows   int      `json:"rows"`
	Fields []string `json:"fields"`
}

// Describe returns row counts and column names for every dataset.
func (s *Store) Describe() (map[string]SourceSummary, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Describe")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := make(map[string]SourceSummary, len(schema.Datasets))
	for _, table := range schema.Datasets {
		fields, err := s.tableColumns(table)
		if err != nil {
			return nil, err
		}
		var count int
		if err := s.db.QueryRow("SELECT COUNT(1) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		summary[table] = SourceSummary{Rows: count, Fields: fields}
	}
	return summary, nil
}

// tableColumns reads column names from sqlite's table_info pragma so the
// description reflects the live schema, not just the catalog.
func (s *Store) tableColumns(table string) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table_info for %s: %w", table, err)
		}
		fields = append(fields, name)
	}
	return fields, rows.Err()
}

// Counts returns per-table row counts, mostly for diagnostics.
func (s *Store) Counts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64, len(schema.Datasets))
	for _, table := range schema.Datasets {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

// sortedKeys is a small helper for deterministic logging of row maps.
func sortedKeys(row schema.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
