// Package schema defines the relational catalog for viewsmith: the
// tables the agent can read and mutate, their keys, and the demo seed
// data. The store package consumes this catalog; nothing here touches
// the database directly.
package schema

import "strings"

// Row is a generic table row keyed by column name.
type Row = map[string]any

// Table describes one queryable dataset.
type Table struct {
	Name       string
	PrimaryKey []string
	Required   []string // Fields that must be present and non-empty on insert
	Columns    []string
	Auto       []string // Auto-populated primary key columns (rowid alias)
	OrderBy    string   // Default ORDER BY clause for listings
}

// HasAutoKey reports whether the column is auto-populated on insert.
func (t *Table) HasAutoKey(column string) bool {
	for _, c := range t.Auto {
		if c == column {
			return true
		}
	}
	return false
}

// Datasets lists every queryable source in catalog order.
var Datasets = []string{"products", "sales", "customers", "orders", "order_items"}

var tables = map[string]*Table{
	"products": {
		Name:       "products",
		PrimaryKey: []string{"sku"},
		Required:   []string{"sku", "name", "category", "unit_price", "inventory", "status"},
		Columns:    []string{"sku", "name", "category", "unit_price", "inventory", "status"},
		OrderBy:    "name",
	},
	"sales": {
		Name:       "sales",
		PrimaryKey: []string{"date"},
		Required:   []string{"date", "total", "orders", "avg_order_value", "new_customers"},
		Columns:    []string{"date", "total", "orders", "avg_order_value", "new_customers"},
		OrderBy:    "date",
	},
	"customers": {
		Name:       "customers",
		PrimaryKey: []string{"id"},
		Required:   []string{"id", "name", "email", "segment", "city", "country", "lifetime_value", "joined_date"},
		Columns:    []string{"id", "name", "email", "segment", "city", "country", "lifetime_value", "joined_date"},
		OrderBy:    "joined_date DESC",
	},
	"orders": {
		Name:       "orders",
		PrimaryKey: []string{"id"},
		Required:   []string{"id", "customer_id", "order_date", "status", "channel", "total"},
		Columns:    []string{"id", "customer_id", "order_date", "status", "channel", "total"},
		OrderBy:    "order_date DESC",
	},
	"order_items": {
		Name:       "order_items",
		PrimaryKey: []string{"id"},
		Required:   []string{"order_id", "product_sku", "quantity", "unit_price"},
		Columns:    []string{"id", "order_id", "product_sku", "quantity", "unit_price"},
		Auto:       []string{"id"},
		OrderBy:    "order_id",
	},
}

// Lookup returns the table metadata for a source name. Matching is
// case-insensitive so model-supplied names like "Products" resolve.
func Lookup(source string) (*Table, bool) {
	t, ok := tables[strings.ToLower(source)]
	return t, ok
}

// IsDataset reports whether source names a known table.
func IsDataset(source string) bool {
	_, ok := Lookup(source)
	return ok
}

// DDL holds the CREATE TABLE statements executed at store open.
var DDL = []string{
	`CREATE TABLE IF NOT EXISTS products (
		sku TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit_price REAL NOT NULL,
		inventory INTEGER NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		date TEXT PRIMARY KEY,
		total REAL NOT NULL,
		orders INTEGER NOT NULL,
		avg_order_value REAL NOT NULL,
		new_customers INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		segment TEXT NOT NULL,
		city TEXT NOT NULL,
		country TEXT NOT NULL,
		lifetime_value REAL NOT NULL,
		joined_date TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		order_date TEXT NOT NULL,
		status TEXT NOT NULL,
		channel TEXT NOT NULL,
		total REAL NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		product_sku TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id),
		FOREIGN KEY (product_sku) REFERENCES products(sku)
	)`,
}
