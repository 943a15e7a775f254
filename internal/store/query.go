package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"viewsmith/internal/logging"
	"viewsmith/internal/schema"
)

// QueryResult holds the columns and rows returned by a read-only query.
type QueryResult struct {
	Columns []string     `json:"columns"`
	Rows    []schema.Row `json:"rows"`
}

// StatementResult reports a free-form mutation statement. Table is the
// first table token after INSERT INTO, UPDATE or DELETE FROM when one
// could be inferred, so callers can refresh the affected listing.
type StatementResult struct {
	Command      string `json:"command"`
	Table        string `json:"table,omitempty"`
	RowsAffected int64  `json:"rows_affected"`
}

// NamedParams converts a map of parameter names to driver named args so
// statements using :name placeholders can bind from tool-supplied JSON
// objects. Keys are sorted for deterministic binding order.
func NamedParams(values map[string]any) []any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]any, 0, len(keys))
	for _, k := range keys {
		params = append(params, sql.Named(k, values[k]))
	}
	return params
}

// stripComments removes -- line comments and /* */ block comments while
// leaving string literals intact, so a commented-out terminator cannot
// smuggle a second statement past the classifier.
func stripComments(query string) string {
	var out strings.Builder
	out.Grow(len(query))

	const (
		code = iota
		singleQuote
		doubleQuote
		lineComment
		blockComment
	)
	state := code

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case code:
			switch {
			case c == '-' && next == '-':
				state = lineComment
				i++
			case c == '/' && next == '*':
				state = blockComment
				i++
			case c == '\'':
				state = singleQuote
				out.WriteRune(c)
			case c == '"':
				state = doubleQuote
				out.WriteRune(c)
			default:
				out.WriteRune(c)
			}
		case singleQuote:
			if c == '\'' {
				state = code
			}
			out.WriteRune(c)
		case doubleQuote:
			if c == '"' {
				state = code
			}
			out.WriteRune(c)
		case lineComment:
			if c == '\n' {
				state = code
				out.WriteRune(c)
			}
		case blockComment:
			if c == '*' && next == '/' {
				state = code
				i++
			}
		}
	}
	return out.String()
}

// cleanStatement strips comments and whitespace and tolerates a single
// trailing terminator, returning the runnable text and its first keyword.
func cleanStatement(query string) (cleaned, keyword string) {
	cleaned = strings.TrimSpace(stripComments(query))
	cleaned = strings.TrimSuffix(cleaned, ";")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", ""
	}
	return cleaned, strings.ToLower(strings.Fields(cleaned)[0])
}

// classifyReadOnly validates that query is a single SELECT statement.
// WITH-prefixed common table expressions are allowed as long as they
// resolve to a SELECT.
func classifyReadOnly(query string) (string, error) {
	cleaned, keyword := cleanStatement(query)

	switch keyword {
	case "select":
	case "with":
		if !strings.Contains(strings.ToLower(cleaned), "select") {
			return "", newError(ErrInvalidStatement, "Only SELECT statements are allowed via this tool.")
		}
	default:
		return "", newError(ErrInvalidStatement, "Only SELECT statements are allowed via this tool.")
	}

	if strings.Contains(cleaned, ";") {
		return "", newError(ErrInvalidStatement, "Multiple SQL statements are not permitted.")
	}
	return cleaned, nil
}

// classifyMutation validates that statement is a single INSERT, UPDATE
// or DELETE and returns the runnable text plus the command name.
func classifyMutation(statement string) (string, string, error) {
	cleaned, keyword := cleanStatement(statement)

	switch keyword {
	case "insert", "update", "delete":
	default:
		return "", "", newError(ErrInvalidStatement,
			"Only INSERT, UPDATE or DELETE statements are allowed via this tool.")
	}

	if strings.Contains(cleaned, ";") {
		return "", "", newError(ErrInvalidStatement, "Multiple SQL statements are not permitted.")
	}
	return cleaned, strings.ToUpper(keyword), nil
}

// RunQuery executes a caller-supplied read-only statement with bound
// parameters and returns its columns and rows. Anything other than a
// single SELECT (optionally behind a WITH clause) is rejected before
// touching the database.
func (s *Store) RunQuery(query string, params ...any) (*QueryResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RunQuery")
	defer timer.Stop()

	cleaned, err := classifyReadOnly(query)
	if err != nil {
		logging.StoreWarn("Rejected statement: %v", err)
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(cleaned, params...)
	if err != nil {
		return nil, newError(ErrQueryFailed, fmt.Sprintf("Query failed: %v", err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, newError(ErrQueryFailed, fmt.Sprintf("Query failed: %v", err))
	}
	scanned, err := scanRows(rows)
	if err != nil {
		return nil, newError(ErrQueryFailed, fmt.Sprintf("Query failed: %v", err))
	}

	logging.StoreDebug("RunQuery returned %d rows, %d columns", len(scanned), len(columns))
	return &QueryResult{Columns: columns, Rows: scanned}, nil
}

// RunStatement executes a caller-supplied INSERT, UPDATE or DELETE with
// bound parameters. The typed mutation operations are preferred; this
// path exists for free-form writes that they cannot express.
func (s *Store) RunStatement(statement string, params ...any) (*StatementResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RunStatement")
	defer timer.Stop()

	cleaned, command, err := classifyMutation(statement)
	if err != nil {
		logging.StoreWarn("Rejected statement: %v", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(cleaned, params...)
	if err != nil {
		return nil, newError(ErrQueryFailed, fmt.Sprintf("Statement failed: %v", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, newError(ErrQueryFailed, fmt.Sprintf("Statement failed: %v", err))
	}

	logging.Store("RunStatement %s affected %d rows", command, affected)
	return &StatementResult{
		Command:      command,
		Table:        statementTable(cleaned),
		RowsAffected: affected,
	}, nil
}

// statementTable extracts the target table from a cleaned mutation
// statement: the token after INTO for inserts, after the verb for
// updates, after FROM for deletes. Empty when the shape is unexpected.
func statementTable(cleaned string) string {
	fields := strings.Fields(strings.ToLower(cleaned))
	if len(fields) < 2 {
		return ""
	}

	var table string
	switch fields[0] {
	case "insert":
		for i := 1; i < len(fields)-1; i++ {
			if fields[i] == "into" {
				table = fields[i+1]
				break
			}
		}
	case "update":
		table = fields[1]
	case "delete":
		for i := 1; i < len(fields)-1; i++ {
			if fields[i] == "from" {
				table = fields[i+1]
				break
			}
		}
	}

	// INSERT INTO products(sku, ...) arrives as one token.
	if i := strings.IndexAny(table, "(,"); i >= 0 {
		table = table[:i]
	}
	return strings.Trim(table, "\"'`")
}
