package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"viewsmith/internal/layout"
	"viewsmith/internal/schema"
	"viewsmith/internal/store"
)

// Builtin returns the standard tool set wired to the store: dataset
// fetching, schema inspection, layout builders and record mutations.
func Builtin(db *store.Store) []*Tool {
	return []*Tool{
		fetchDatasetTool(db),
		describeSourcesTool(db),
		buildTableLayoutTool(db),
		buildChartLayoutTool(db),
		addRecordTool(db),
		updateRecordTool(db),
		removeRecordTool(db),
		runStatementTool(db),
	}
}

// textOutcome wraps a message in a Text layout node. Used when a tool
// cannot produce what was asked for but the model should read why.
func textOutcome(content string) *Outcome {
	return &Outcome{
		Layout:  &layout.Node{Kind: layout.KindText, Content: content},
		Content: content,
	}
}

// storeErrorText renders a typed store error for the model, naming the
// missing fields when the store reported any.
func storeErrorText(e *store.Error) string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Missing, ", "))
	}
	return e.Message
}

// canonicalSource normalizes a model-supplied source name so dataset keys
// and layout sources always agree.
func canonicalSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func stringOr(args map[string]any, key, fallback string) string {
	if s := stringArg(args, key); s != "" {
		return s
	}
	return fallback
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func objectArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fetchDatasetTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "fetch_dataset",
		Description: "Fetch rows from a data source, or run a read-only SELECT query. Provide either source or query.",
		Category:    CategoryData,
		Schema: ToolSchema{
			Required: []string{},
			Properties: map[string]Property{
				"source": {Type: "string", Description: "Data source to list: products, sales, customers, orders or order_items."},
				"days":   {Type: "integer", Description: "Limit sales to the trailing N days. 0 returns everything."},
				"query":  {Type: "string", Description: "A single SELECT statement. Use :name placeholders for parameters."},
				"params": {Type: "object", Description: "Named parameters bound to :name placeholders in the query."},
				"alias":  {Type: "string", Description: "Dataset key for query results. Defaults to \"results\"."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			query := stringArg(args, "query")
			source := canonicalSource(stringArg(args, "source"))

			if query != "" {
				res, err := db.RunQuery(query, store.NamedParams(objectArg(args, "params"))...)
				if err != nil {
					if se := store.AsError(err); se != nil {
						return textOutcome(se.Message), nil
					}
					return nil, err
				}
				alias := stringOr(args, "alias", layout.GenericKey)
				return &Outcome{
					Datasets: layout.DatasetSet{alias: res.Rows},
					Meta:     map[string]any{"query": query, "columns": res.Columns},
					Content:  fmt.Sprintf("Query returned %d rows", len(res.Rows)),
				}, nil
			}

			if source == "" {
				return textOutcome("fetch_dataset needs either a source or a query."), nil
			}

			rows, err := db.Rows(source, intArg(args, "days"))
			if err != nil {
				return nil, err
			}
			return &Outcome{
				Datasets: layout.DatasetSet{source: rows},
				Meta:     map[string]any{"source": source, "rows": len(rows)},
				Content:  fmt.Sprintf("Fetched %d rows from '%s'", len(rows), source),
			}, nil
		},
	}
}

func describeSourcesTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "describe_sources",
		Description: "List the available data sources with their row counts and fields.",
		Category:    CategoryData,
		Schema: ToolSchema{
			Required:   []string{},
			Properties: map[string]Property{},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			summaries, err := db.Describe()
			if err != nil {
				return nil, err
			}

			names := make([]string, 0, len(summaries))
			for name := range summaries {
				names = append(names, name)
			}
			sort.Strings(names)

			lines := make([]string, 0, len(names))
			for _, name := range names {
				s := summaries[name]
				lines = append(lines, fmt.Sprintf("%s: %d rows (%s)", name, s.Rows, strings.Join(s.Fields, ", ")))
			}

			return &Outcome{
				Meta:    map[string]any{"sources": summaries},
				Content: strings.Join(lines, "\n"),
			}, nil
		},
	}
}

func buildTableLayoutTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "build_table_layout",
		Description: "Build a Page layout containing a Table bound to a data source, with its current rows.",
		Category:    CategoryLayout,
		Schema: ToolSchema{
			Required: []string{"source"},
			Properties: map[string]Property{
				"source":  {Type: "string", Description: "Data source backing the table."},
				"title":   {Type: "string", Description: "Page title. Defaults to \"<Source> Table\"."},
				"columns": {Type: "array", Description: "Columns to show, in order. Omit for all columns.", Items: &Property{Type: "string"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			source := canonicalSource(stringArg(args, "source"))
			if source == "" {
				return textOutcome("build_table_layout needs a source."), nil
			}

			rows, err := db.Rows(source, 0)
			if err != nil {
				return nil, err
			}

			table := &layout.Node{Kind: layout.KindTable, Source: source}
			if cols := stringSlice(args["columns"]); len(cols) > 0 {
				table.Columns = cols
			}
			page := &layout.Node{
				Kind:     layout.KindPage,
				Title:    stringOr(args, "title", capitalizeFirst(source)+" Table"),
				Children: []*layout.Node{table},
			}

			return &Outcome{
				Layout:   page,
				Datasets: layout.DatasetSet{source: rows},
				Meta:     map[string]any{"source": source, "rows": len(rows)},
				Content:  fmt.Sprintf("Built table layout for '%s'", source),
			}, nil
		},
	}
}

func buildChartLayoutTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "build_chart_layout",
		Description: "Build a Page layout containing a Chart bound to a data source, with its current rows.",
		Category:    CategoryLayout,
		Schema: ToolSchema{
			Required: []string{"source"},
			Properties: map[string]Property{
				"source":     {Type: "string", Description: "Data source backing the chart."},
				"chart_type": {Type: "string", Description: "Chart style.", Enum: []any{"bar", "line", "pie"}},
				"metric":     {Type: "string", Description: "Column to plot, for sources with several numeric columns."},
				"title":      {Type: "string", Description: "Page title. Defaults to \"<Source> Chart\"."},
				"days":       {Type: "integer", Description: "Limit sales to the trailing N days. 0 returns everything."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			source := canonicalSource(stringArg(args, "source"))
			if source == "" {
				return textOutcome("build_chart_layout needs a source."), nil
			}

			rows, err := db.Rows(source, intArg(args, "days"))
			if err != nil {
				return nil, err
			}

			chartType := stringOr(args, "chart_type", "bar")
			chart := &layout.Node{Kind: layout.KindChart, Source: source, ChartType: chartType}
			if metric := stringArg(args, "metric"); metric != "" {
				chart.Metric = metric
			}
			page := &layout.Node{
				Kind:     layout.KindPage,
				Title:    stringOr(args, "title", capitalizeFirst(source)+" Chart"),
				Children: []*layout.Node{chart},
			}

			return &Outcome{
				Layout:   page,
				Datasets: layout.DatasetSet{source: rows},
				Meta:     map[string]any{"source": source, "rows": len(rows), "chart_type": chartType},
				Content:  fmt.Sprintf("Built %s chart layout for '%s'", chartType, source),
			}, nil
		},
	}
}

func addRecordTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "add_record",
		Description: "Insert a new record into a data source. Values must cover the source's required fields.",
		Category:    CategoryMutation,
		Schema: ToolSchema{
			Required: []string{"source", "values"},
			Properties: map[string]Property{
				"source": {Type: "string", Description: "Data source to insert into."},
				"values": {Type: "object", Description: "Column values for the new record."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			source := stringArg(args, "source")
			res, err := db.Insert(source, objectArg(args, "values"))
			if err != nil {
				if se := store.AsError(err); se != nil {
					return textOutcome(storeErrorText(se)), nil
				}
				return nil, err
			}

			src := canonicalSource(source)
			return &Outcome{
				Datasets: layout.DatasetSet{src: res.Dataset},
				Meta:     map[string]any{"action": "insert", "source": src, "row": res.Row},
				Content:  res.Message,
			}, nil
		},
	}
}

func updateRecordTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "update_record",
		Description: "Update an existing record identified by its primary key. Unchanged columns may be omitted.",
		Category:    CategoryMutation,
		Schema: ToolSchema{
			Required: []string{"source", "values"},
			Properties: map[string]Property{
				"source": {Type: "string", Description: "Data source holding the record."},
				"values": {Type: "object", Description: "Primary key fields plus the columns to change."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			source := stringArg(args, "source")
			res, err := db.Update(source, objectArg(args, "values"))
			if err != nil {
				if se := store.AsError(err); se != nil {
					return textOutcome(storeErrorText(se)), nil
				}
				return nil, err
			}

			src := canonicalSource(source)
			return &Outcome{
				Datasets: layout.DatasetSet{src: res.Dataset},
				Meta:     map[string]any{"action": "update", "source": src, "row": res.Row},
				Content:  res.Message,
			}, nil
		},
	}
}

func removeRecordTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "remove_record",
		Description: "Delete a record identified by its primary key.",
		Category:    CategoryMutation,
		Schema: ToolSchema{
			Required: []string{"source", "keys"},
			Properties: map[string]Property{
				"source": {Type: "string", Description: "Data source holding the record."},
				"keys":   {Type: "object", Description: "Primary key fields identifying the record."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			source := stringArg(args, "source")
			res, err := db.Delete(source, objectArg(args, "keys"))
			if err != nil {
				if se := store.AsError(err); se != nil {
					return textOutcome(storeErrorText(se)), nil
				}
				return nil, err
			}

			src := canonicalSource(source)
			return &Outcome{
				Datasets: layout.DatasetSet{src: res.Dataset},
				Meta:     map[string]any{"action": "delete", "source": src},
				Content:  res.Message,
			}, nil
		},
	}
}

func runStatementTool(db *store.Store) *Tool {
	return &Tool{
		Name:        "run_statement",
		Description: "Run a single INSERT, UPDATE or DELETE statement with optional named parameters. Prefer the record tools for simple changes.",
		Category:    CategoryMutation,
		Schema: ToolSchema{
			Required: []string{"statement"},
			Properties: map[string]Property{
				"statement": {Type: "string", Description: "The mutation statement. Use :name placeholders for parameters."},
				"params":    {Type: "object", Description: "Named parameters bound to :name placeholders."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Outcome, error) {
			res, err := db.RunStatement(stringArg(args, "statement"), store.NamedParams(objectArg(args, "params"))...)
			if err != nil {
				if se := store.AsError(err); se != nil {
					return textOutcome(se.Message), nil
				}
				return nil, err
			}

			out := &Outcome{
				Meta:    map[string]any{"command": res.Command, "rows_affected": res.RowsAffected},
				Content: fmt.Sprintf("%s affected %d rows", res.Command, res.RowsAffected),
			}
			if res.Table != "" {
				if _, known := schema.Lookup(res.Table); known {
					if rows, err := db.Rows(res.Table, 0); err == nil {
						out.Datasets = layout.DatasetSet{res.Table: rows}
					}
				}
			}
			return out, nil
		},
	}
}
