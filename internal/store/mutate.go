package store

import (
	"fmt"
	"strings"

	"viewsmith/internal/logging"
	"viewsmith/internal/schema"
)

// MutationResult reports a successful insert, update or delete along
// with the refreshed dataset so the caller can render it immediately.
type MutationResult struct {
	Message string
	Dataset []schema.Row
	Row     schema.Row
}

// valueMissing treats absent, nil and empty-string values as not
// provided. Zero numbers are valid values.
func valueMissing(row schema.Row, field string) bool {
	v, ok := row[field]
	if !ok || v == nil {
		return true
	}
	if s, isStr := v.(string); isStr && s == "" {
		return true
	}
	return false
}

func missingRequired(meta *schema.Table, values schema.Row) []string {
	var missing []string
	for _, field := range meta.Required {
		if valueMissing(values, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// presentColumns returns the table columns present in values, in
// catalog order so generated SQL is deterministic.
func presentColumns(meta *schema.Table, values schema.Row) []string {
	var columns []string
	for _, col := range meta.Columns {
		if _, ok := values[col]; ok {
			columns = append(columns, col)
		}
	}
	return columns
}

func (s *Store) fetchByPK(meta *schema.Table, values schema.Row) (schema.Row, error) {
	for _, field := range meta.PrimaryKey {
		if _, ok := values[field]; !ok {
			return nil, nil
		}
	}
	conditions := make([]string, 0, len(meta.PrimaryKey))
	args := make([]any, 0, len(meta.PrimaryKey))
	for _, field := range meta.PrimaryKey {
		conditions = append(conditions, field+" = ?")
		args = append(args, values[field])
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1",
		meta.Name, strings.Join(conditions, " AND "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch row: %w", err)
	}
	defer rows.Close()

	scanned, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		return nil, nil
	}
	return scanned[0], nil
}

// Insert adds a row to a dataset. All required fields must be present
// and non-empty; auto-keyed tables fill their key from the insert id.
func (s *Store) Insert(source string, values schema.Row) (result *MutationResult, err error) {
	timer := logging.StartTimer(logging.CategoryStore, "Insert")
	defer timer.Stop()
	defer func() { logging.Audit().StoreMutation("insert", source, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := schema.Lookup(source)
	if !ok {
		return nil, newError(ErrUnknownSource, fmt.Sprintf("Unknown source '%s'", source))
	}

	if missing := missingRequired(meta, values); len(missing) > 0 {
		return nil, newError(ErrMissingFields,
			fmt.Sprintf("Missing required fields for '%s'", meta.Name), missing...)
	}

	columns := presentColumns(meta, values)
	if len(columns) == 0 {
		return nil, newError(ErrMissingFields,
			fmt.Sprintf("No valid columns provided for '%s'", meta.Name), meta.Required...)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		args = append(args, values[col])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		meta.Name, strings.Join(columns, ", "), placeholders)

	logging.StoreDebug("Insert into %s columns=%v", meta.Name, sortedKeys(values))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s failed: %w", meta.Name, err)
	}

	pkValues := make(schema.Row, len(meta.PrimaryKey))
	for _, field := range meta.PrimaryKey {
		if v, ok := values[field]; ok {
			pkValues[field] = v
		}
	}
	for _, field := range meta.Auto {
		if valueMissing(pkValues, field) {
			if id, err := res.LastInsertId(); err == nil {
				pkValues[field] = id
			}
		}
	}

	row, err := s.fetchByPK(meta, pkValues)
	if err != nil {
		return nil, err
	}
	dataset, err := s.rowsLocked(meta.Name, 0)
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Message: fmt.Sprintf("Inserted row into '%s'", meta.Name),
		Dataset: dataset,
		Row:     row,
	}, nil
}

// Update modifies the row identified by the primary key fields in
// values; every other known column present in values is written.
func (s *Store) Update(source string, values schema.Row) (result *MutationResult, err error) {
	timer := logging.StartTimer(logging.CategoryStore, "Update")
	defer timer.Stop()
	defer func() { logging.Audit().StoreMutation("update", source, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := schema.Lookup(source)
	if !ok {
		return nil, newError(ErrUnknownSource, fmt.Sprintf("Unknown source '%s'", source))
	}
	if len(meta.PrimaryKey) == 0 {
		return nil, newError(ErrNoPrimaryKey, fmt.Sprintf("No primary key defined for '%s'", meta.Name))
	}

	var missingKeys []string
	for _, field := range meta.PrimaryKey {
		if valueMissing(values, field) {
			missingKeys = append(missingKeys, field)
		}
	}
	if len(missingKeys) > 0 {
		return nil, newError(ErrMissingKey,
			fmt.Sprintf("Missing primary key fields for '%s'", meta.Name), missingKeys...)
	}

	isKey := make(map[string]bool, len(meta.PrimaryKey))
	for _, field := range meta.PrimaryKey {
		isKey[field] = true
	}
	var updates []string
	var args []any
	for _, col := range meta.Columns {
		if isKey[col] {
			continue
		}
		if v, ok := values[col]; ok {
			updates = append(updates, col+" = ?")
			args = append(args, v)
		}
	}
	if len(updates) == 0 {
		return nil, newError(ErrNoUpdatableFields,
			fmt.Sprintf("No updatable fields provided for '%s'", meta.Name))
	}

	conditions := make([]string, 0, len(meta.PrimaryKey))
	for _, field := range meta.PrimaryKey {
		conditions = append(conditions, field+" = ?")
		args = append(args, values[field])
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		meta.Name, strings.Join(updates, ", "), strings.Join(conditions, " AND "))

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("update of %s failed: %w", meta.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update of %s failed: %w", meta.Name, err)
	}
	if affected == 0 {
		return nil, newError(ErrNotFound,
			fmt.Sprintf("No matching row found in '%s' for provided key.", meta.Name))
	}

	row, err := s.fetchByPK(meta, values)
	if err != nil {
		return nil, err
	}
	dataset, err := s.rowsLocked(meta.Name, 0)
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Message: fmt.Sprintf("Updated row in '%s'", meta.Name),
		Dataset: dataset,
		Row:     row,
	}, nil
}

// Delete removes the row identified by the primary key fields in keys.
func (s *Store) Delete(source string, keys schema.Row) (result *MutationResult, err error) {
	timer := logging.StartTimer(logging.CategoryStore, "Delete")
	defer timer.Stop()
	defer func() { logging.Audit().StoreMutation("delete", source, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := schema.Lookup(source)
	if !ok {
		return nil, newError(ErrUnknownSource, fmt.Sprintf("Unknown source '%s'", source))
	}
	if len(meta.PrimaryKey) == 0 {
		return nil, newError(ErrNoPrimaryKey, fmt.Sprintf("No primary key defined for '%s'", meta.Name))
	}

	var missingKeys []string
	for _, field := range meta.PrimaryKey {
		if valueMissing(keys, field) {
			missingKeys = append(missingKeys, field)
		}
	}
	if len(missingKeys) > 0 {
		return nil, newError(ErrMissingKey,
			fmt.Sprintf("Missing primary key fields for '%s'", meta.Name), missingKeys...)
	}

	conditions := make([]string, 0, len(meta.PrimaryKey))
	args := make([]any, 0, len(meta.PrimaryKey))
	for _, field := range meta.PrimaryKey {
		conditions = append(conditions, field+" = ?")
		args = append(args, keys[field])
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s",
		meta.Name, strings.Join(conditions, " AND "))

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete from %s failed: %w", meta.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete from %s failed: %w", meta.Name, err)
	}
	if affected == 0 {
		return nil, newError(ErrNotFound,
			fmt.Sprintf("No matching row found in '%s' for provided key.", meta.Name))
	}

	dataset, err := s.rowsLocked(meta.Name, 0)
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Message: fmt.Sprintf("Deleted row from '%s'", meta.Name),
		Dataset: dataset,
	}, nil
}
