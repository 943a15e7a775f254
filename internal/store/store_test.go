package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewsmith/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsCatalog(t *testing.T) {
	s := newTestStore(t)

	counts, err := s.Counts()
	require.NoError(t, err)

	assert.EqualValues(t, 10, counts["products"])
	assert.EqualValues(t, 6, counts["customers"])
	assert.EqualValues(t, 31, counts["sales"])
	assert.EqualValues(t, 12, counts["orders"])
	assert.EqualValues(t, 23, counts["order_items"])
}

func TestOpenWithoutSeed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "empty.db"), false)
	require.NoError(t, err)
	defer s.Close()

	counts, err := s.Counts()
	require.NoError(t, err)
	for _, table := range schema.Datasets {
		assert.EqualValues(t, 0, counts[table], "table %s should be empty", table)
	}
}

func TestReopenDoesNotReseed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path, true)
	require.NoError(t, err)
	_, err = s.Delete("sales", schema.Row{"date": "2025-10-01"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, true)
	require.NoError(t, err)
	defer s.Close()

	counts, err := s.Counts()
	require.NoError(t, err)
	assert.EqualValues(t, 30, counts["sales"], "reopen must keep mutations, not reseed")
}

func TestRowsDefaultOrdering(t *testing.T) {
	s := newTestStore(t)

	products, err := s.Rows("products", 0)
	require.NoError(t, err)
	require.Len(t, products, 10)
	assert.Equal(t, "Aurora Clock", products[0]["name"])
	assert.Equal(t, "Starlight Charger", products[9]["name"])

	customers, err := s.Rows("customers", 0)
	require.NoError(t, err)
	require.Len(t, customers, 6)
	assert.Equal(t, "Harper Chen", customers[0]["name"], "newest join first")
}

func TestRowsSalesWindow(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Rows("sales", 7)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "2025-10-25", rows[0]["date"], "window is presented oldest first")
	assert.Equal(t, "2025-10-31", rows[6]["date"])

	all, err := s.Rows("sales", 0)
	require.NoError(t, err)
	assert.Len(t, all, 31)
	assert.Equal(t, "2025-10-01", all[0]["date"])
}

func TestRowsUnknownSource(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Rows("widgets", 0)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRowsCaseInsensitiveSource(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Rows("Products", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestInsert(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Insert("products", schema.Row{
		"sku":        "ZEN-011",
		"name":       "Zenith Tripod",
		"category":   "Accessories",
		"unit_price": 99.0,
		"inventory":  40,
		"status":     "active",
	})
	require.NoError(t, err)
	assert.Equal(t, "Inserted row into 'products'", res.Message)
	assert.Len(t, res.Dataset, 11)
	require.NotNil(t, res.Row)
	assert.Equal(t, "ZEN-011", res.Row["sku"])
	assert.Equal(t, "Zenith Tripod", res.Dataset[10]["name"], "sorted by name, Zenith lands last")
}

func TestInsertZeroIsValid(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Insert("products", schema.Row{
		"sku":        "OOS-012",
		"name":       "Backordered Gadget",
		"category":   "Accessories",
		"unit_price": 0.0,
		"inventory":  0,
		"status":     "backorder",
	})
	require.NoError(t, err, "numeric zero must not count as missing")
	assert.EqualValues(t, 0, res.Row["inventory"])
}

func TestInsertMissingRequired(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name    string
		values  schema.Row
		missing []string
	}{
		{"absent fields", schema.Row{"sku": "ZZZ-900"}, []string{"name", "category", "unit_price", "inventory", "status"}},
		{"empty string", schema.Row{"sku": "", "name": "Thing", "category": "Misc", "unit_price": 1.0, "inventory": 1, "status": "active"}, []string{"sku"}},
		{"explicit nil", schema.Row{"sku": "ZZZ-901", "name": nil, "category": "Misc", "unit_price": 1.0, "inventory": 1, "status": "active"}, []string{"name"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Insert("products", tc.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingFields))

			se := AsError(err)
			assert.Equal(t, "Missing required fields for 'products'", se.Message)
			assert.Equal(t, tc.missing, se.Missing)
		})
	}
}

func TestInsertUnknownSource(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Insert("widgets", schema.Row{"sku": "X"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSource))
	assert.Equal(t, "Unknown source 'widgets'", AsError(err).Message)
}

func TestInsertAutoKey(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Insert("order_items", schema.Row{
		"order_id":    "SO-1001",
		"product_sku": "MET-007",
		"quantity":    2,
		"unit_price":  19.0,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Row)
	id, ok := res.Row["id"].(int64)
	require.True(t, ok, "auto key should come back as an integer, got %T", res.Row["id"])
	assert.Greater(t, id, int64(23))
	assert.Len(t, res.Dataset, 24)
}

func TestInsertDuplicateKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Insert("products", schema.Row{
		"sku":        "LNR-001",
		"name":       "Duplicate Lamp",
		"category":   "Lighting",
		"unit_price": 10.0,
		"inventory":  1,
		"status":     "active",
	})
	require.Error(t, err, "duplicate primary key must surface the driver error")
	assert.False(t, errors.Is(err, ErrMissingFields))
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Update("products", schema.Row{"sku": "LNR-001", "inventory": 99})
	require.NoError(t, err)
	assert.Equal(t, "Updated row in 'products'", res.Message)
	require.NotNil(t, res.Row)
	assert.EqualValues(t, 99, res.Row["inventory"])
	assert.Equal(t, "Lunar Lamp", res.Row["name"], "untouched fields survive")
	assert.Len(t, res.Dataset, 10)
}

func TestUpdateMissingKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("products", schema.Row{"inventory": 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))

	se := AsError(err)
	assert.Equal(t, "Missing primary key fields for 'products'", se.Message)
	assert.Equal(t, []string{"sku"}, se.Missing)
}

func TestUpdateNoUpdatableFields(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("products", schema.Row{"sku": "LNR-001"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUpdatableFields))
	assert.Equal(t, "No updatable fields provided for 'products'", AsError(err).Message)
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("products", schema.Row{"sku": "NOPE-999", "inventory": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "No matching row found in 'products' for provided key.", AsError(err).Message)
}

func TestUpdateIgnoresUnknownColumns(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Update("products", schema.Row{"sku": "LNR-001", "inventory": 50, "bogus": "x"})
	require.NoError(t, err, "unknown columns are dropped, not errors")
	assert.EqualValues(t, 50, res.Row["inventory"])
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Delete("order_items", schema.Row{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "Deleted row from 'order_items'", res.Message)
	assert.Nil(t, res.Row)
	assert.Len(t, res.Dataset, 22)
}

func TestDeleteNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Delete("customers", schema.Row{"id": 404})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "No matching row found in 'customers' for provided key.", AsError(err).Message)
}

func TestDeleteMissingKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Delete("orders", schema.Row{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))
	assert.Equal(t, []string{"id"}, AsError(err).Missing)
}

func TestDescribe(t *testing.T) {
	s := newTestStore(t)

	summary, err := s.Describe()
	require.NoError(t, err)
	require.Len(t, summary, 5)

	products := summary["products"]
	assert.Equal(t, 10, products.Rows)
	assert.Equal(t, []string{"sku", "name", "category", "unit_price", "inventory", "status"}, products.Fields)

	items := summary["order_items"]
	assert.Equal(t, 23, items.Rows)
	assert.Contains(t, items.Fields, "order_id")
}

func TestSources(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, []string{"products", "sales", "customers", "orders", "order_items"}, s.Sources())
}
