package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewsmith/internal/layout"
	"viewsmith/internal/store"
)

func newBuiltinRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "tools.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := NewRegistry()
	for _, tool := range Builtin(db) {
		reg.MustRegister(tool)
	}
	return reg, db
}

func TestBuiltinRegistration(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	assert.Equal(t, 8, reg.Count())
	assert.Equal(t, []string{
		"add_record",
		"build_chart_layout",
		"build_table_layout",
		"describe_sources",
		"fetch_dataset",
		"remove_record",
		"run_statement",
		"update_record",
	}, reg.Names())

	data := reg.ByCategory(CategoryData)
	require.Len(t, data, 2)
	assert.Equal(t, "describe_sources", data[0].Name)
	assert.Equal(t, "fetch_dataset", data[1].Name)

	assert.Len(t, reg.ByCategory(CategoryLayout), 2)
	assert.Len(t, reg.ByCategory(CategoryMutation), 4)
}

func TestFetchDatasetSource(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "fetch_dataset", map[string]any{"source": "Products"})
	require.NoError(t, err)

	require.Len(t, out.Datasets["products"], 10)
	assert.Equal(t, "products", out.Meta["source"])
	assert.Equal(t, 10, out.Meta["rows"])
	assert.Equal(t, "Fetched 10 rows from 'products'", out.Content)
	assert.Nil(t, out.Layout)
}

func TestFetchDatasetSalesWindow(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "fetch_dataset", map[string]any{
		"source": "sales",
		"days":   float64(7),
	})
	require.NoError(t, err)

	rows := out.Datasets["sales"]
	require.Len(t, rows, 7)
	assert.Equal(t, "2025-10-25", rows[0]["date"])
	assert.Equal(t, "2025-10-31", rows[6]["date"])
}

func TestFetchDatasetQuery(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "fetch_dataset", map[string]any{
		"query":  "SELECT sku, name FROM products WHERE category = :cat ORDER BY sku",
		"params": map[string]any{"cat": "Audio"},
	})
	require.NoError(t, err)

	rows := out.Datasets[layout.GenericKey]
	require.Len(t, rows, 2)
	assert.Equal(t, "ORB-009", rows[0]["sku"])
	assert.Equal(t, "SLR-002", rows[1]["sku"])
	assert.Equal(t, []string{"sku", "name"}, out.Meta["columns"])
}

func TestFetchDatasetQueryAlias(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "fetch_dataset", map[string]any{
		"query": "SELECT COUNT(*) AS n FROM sales",
		"alias": "sales_count",
	})
	require.NoError(t, err)

	require.Len(t, out.Datasets["sales_count"], 1)
	assert.EqualValues(t, 31, out.Datasets["sales_count"][0]["n"])
}

func TestFetchDatasetQueryRejected(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "fetch_dataset", map[string]any{
		"query": "DELETE FROM products",
	})
	require.NoError(t, err)

	require.NotNil(t, out.Layout)
	assert.Equal(t, layout.KindText, out.Layout.Kind)
	assert.Equal(t, "Only SELECT statements are allowed via this tool.", out.Layout.Content)
	assert.Empty(t, out.Datasets)
}

func TestFetchDatasetWithoutArgs(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "fetch_dataset", map[string]any{})
	require.NoError(t, err)

	require.NotNil(t, out.Layout)
	assert.Equal(t, layout.KindText, out.Layout.Kind)
	assert.Contains(t, out.Content, "either a source or a query")
}

func TestDescribeSources(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "describe_sources", nil)
	require.NoError(t, err)

	summaries, ok := out.Meta["sources"].(map[string]store.SourceSummary)
	require.True(t, ok)
	assert.Len(t, summaries, 5)
	assert.EqualValues(t, 10, summaries["products"].Rows)

	assert.Contains(t, out.Content, "products: 10 rows")
	assert.Contains(t, out.Content, "sku, name")
	assert.Contains(t, out.Content, "customers: 6 rows")
}

func TestBuildTableLayout(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "build_table_layout", map[string]any{"source": "Products"})
	require.NoError(t, err)

	page := out.Layout
	require.NotNil(t, page)
	assert.Equal(t, layout.KindPage, page.Kind)
	assert.Equal(t, "Products Table", page.Title)
	require.Len(t, page.Children, 1)

	table := page.Children[0]
	assert.Equal(t, layout.KindTable, table.Kind)
	assert.Equal(t, "products", table.Source)
	assert.Empty(t, table.Columns)

	assert.Len(t, out.Datasets["products"], 10)
}

func TestBuildTableLayoutOptions(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "build_table_layout", map[string]any{
		"source":  "customers",
		"title":   "Top Customers",
		"columns": []any{"name", "lifetime_value"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Top Customers", out.Layout.Title)
	assert.Equal(t, []string{"name", "lifetime_value"}, out.Layout.Children[0].Columns)
	assert.Len(t, out.Datasets["customers"], 6)
}

func TestBuildChartLayout(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "build_chart_layout", map[string]any{
		"source": "sales",
		"days":   float64(7),
	})
	require.NoError(t, err)

	page := out.Layout
	assert.Equal(t, "Sales Chart", page.Title)
	chart := page.Children[0]
	assert.Equal(t, layout.KindChart, chart.Kind)
	assert.Equal(t, "bar", chart.ChartType)
	assert.Equal(t, "sales", chart.Source)
	assert.Empty(t, chart.Metric)

	assert.Len(t, out.Datasets["sales"], 7)
	assert.Equal(t, "bar", out.Meta["chart_type"])
}

func TestBuildChartLayoutOptions(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "build_chart_layout", map[string]any{
		"source":     "sales",
		"chart_type": "line",
		"metric":     "total",
		"title":      "Revenue Trend",
	})
	require.NoError(t, err)

	assert.Equal(t, "Revenue Trend", out.Layout.Title)
	chart := out.Layout.Children[0]
	assert.Equal(t, "line", chart.ChartType)
	assert.Equal(t, "total", chart.Metric)
	assert.Len(t, out.Datasets["sales"], 31)
}

func TestAddRecord(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "add_record", map[string]any{
		"source": "products",
		"values": map[string]any{
			"sku":        "ZEN-011",
			"name":       "Zenith Tripod",
			"category":   "Photo",
			"unit_price": 89.0,
			"inventory":  12,
			"status":     "active",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "insert", out.Meta["action"])
	assert.Equal(t, "products", out.Meta["source"])
	require.NotNil(t, out.Meta["row"])
	assert.Len(t, out.Datasets["products"], 11)
	assert.Equal(t, "Inserted row into 'products'", out.Content)
	assert.Nil(t, out.Layout)
}

func TestAddRecordMissingFields(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "add_record", map[string]any{
		"source": "products",
		"values": map[string]any{"sku": "HALF-001"},
	})
	require.NoError(t, err)

	require.NotNil(t, out.Layout)
	assert.Equal(t, layout.KindText, out.Layout.Kind)
	assert.Contains(t, out.Content, "Missing required fields for 'products'")
	assert.Contains(t, out.Content, "name")
	assert.Contains(t, out.Content, "category")
	assert.Empty(t, out.Datasets)
}

func TestAddRecordUnknownSource(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "add_record", map[string]any{
		"source": "widgets",
		"values": map[string]any{"id": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "Unknown source 'widgets'", out.Content)
	assert.Equal(t, layout.KindText, out.Layout.Kind)
}

func TestUpdateRecord(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "update_record", map[string]any{
		"source": "products",
		"values": map[string]any{"sku": "LNR-001", "inventory": 99},
	})
	require.NoError(t, err)

	assert.Equal(t, "update", out.Meta["action"])
	assert.Equal(t, "Updated row in 'products'", out.Content)

	row, ok := out.Meta["row"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 99, row["inventory"])
	assert.Equal(t, "Lunar Lamp", row["name"])
}

func TestUpdateRecordNotFound(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "update_record", map[string]any{
		"source": "products",
		"values": map[string]any{"sku": "NOPE-999", "inventory": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "No matching row found in 'products' for provided key.", out.Content)
	assert.Equal(t, layout.KindText, out.Layout.Kind)
}

func TestRemoveRecord(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "remove_record", map[string]any{
		"source": "order_items",
		"keys":   map[string]any{"id": float64(1)},
	})
	require.NoError(t, err)

	assert.Equal(t, "delete", out.Meta["action"])
	assert.Equal(t, "Deleted row from 'order_items'", out.Content)
	assert.Len(t, out.Datasets["order_items"], 22)
	_, hasRow := out.Meta["row"]
	assert.False(t, hasRow)
}

func TestRemoveRecordMissingKey(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "remove_record", map[string]any{
		"source": "orders",
		"keys":   map[string]any{},
	})
	require.NoError(t, err)

	assert.Contains(t, out.Content, "Missing primary key fields for 'orders'")
	assert.Contains(t, out.Content, "id")
}

func TestRunStatement(t *testing.T) {
	reg, db := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "run_statement", map[string]any{
		"statement": "UPDATE products SET inventory = :inv WHERE sku = :sku",
		"params":    map[string]any{"inv": 5, "sku": "LNR-001"},
	})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE", out.Meta["command"])
	assert.EqualValues(t, 1, out.Meta["rows_affected"])

	// Refreshed listing for the inferred target table.
	rows := out.Datasets["products"]
	require.Len(t, rows, 10)

	check, err := db.RunQuery("SELECT inventory FROM products WHERE sku = ?", "LNR-001")
	require.NoError(t, err)
	assert.EqualValues(t, 5, check.Rows[0]["inventory"])
}

func TestRunStatementRejectsSelect(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "run_statement", map[string]any{
		"statement": "SELECT * FROM products",
	})
	require.NoError(t, err)

	assert.Equal(t, layout.KindText, out.Layout.Kind)
	assert.Equal(t, "Only INSERT, UPDATE or DELETE statements are allowed via this tool.", out.Content)
}

func TestRunStatementFailure(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	out, err := reg.Dispatch(context.Background(), "run_statement", map[string]any{
		"statement": "DELETE FROM audit_log WHERE id = 1",
	})
	require.NoError(t, err)

	assert.Equal(t, layout.KindText, out.Layout.Kind)
	assert.Contains(t, out.Content, "Statement failed")
}

func TestBuiltinSchemasRejectUnknownArgs(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	_, err := reg.Dispatch(context.Background(), "build_table_layout", map[string]any{
		"source": "products",
		"flavor": "spicy",
	})
	require.ErrorIs(t, err, ErrUnknownArg)
}
