package session

import (
	"fmt"

	"viewsmith/internal/layout"
	"viewsmith/internal/logging"
	"viewsmith/internal/store"
)

// Note is one resolver observation, emitted into the run transcript.
type Note struct {
	Type EventType
	Text string
	Rows int
}

// Resolve guarantees the returned set carries rows for every source the
// layout references. Tool-chain candidates win, gaps are filled from the
// store, and a layout with no sources at all yields the generic empty
// set. The candidates map is never mutated.
func Resolve(db *store.Store, node *layout.Node, candidates layout.DatasetSet) (layout.DatasetSet, []Note) {
	datasets := layout.Merge(layout.DatasetSet{}, candidates)
	sources := node.Sources()

	// A lone source paired with only the generic key means the rows were
	// meant for that source.
	if len(sources) == 1 && len(datasets) == 1 {
		if rows, ok := datasets[layout.GenericKey]; ok {
			delete(datasets, layout.GenericKey)
			datasets[sources[0]] = rows
		}
	}

	var notes []Note
	for _, src := range sources {
		if _, ok := datasets[src]; ok {
			continue
		}
		rows, err := db.Rows(src, 0)
		if err != nil {
			logging.SessionDebug("Resolve: no rows for source %q: %v", src, err)
			rows = []layout.Row{}
		}
		datasets[src] = rows
		notes = append(notes, Note{
			Type: EventData,
			Text: fmt.Sprintf("Prepared dataset for source '%s' (%d rows)", src, len(rows)),
			Rows: len(rows),
		})
	}

	if len(datasets) == 0 {
		datasets[layout.GenericKey] = []layout.Row{}
		notes = append(notes, Note{
			Type: EventThinking,
			Text: "No data source detected in layout; returning empty dataset",
		})
	} else if len(candidates) > 0 {
		notes = append(notes, Note{
			Type: EventData,
			Text: fmt.Sprintf("Using %d dataset(s) from tool chain", len(candidates)),
			Rows: len(candidates),
		})
	}

	return datasets, notes
}
