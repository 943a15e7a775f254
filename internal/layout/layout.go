// Package layout defines the declarative UI tree the agent produces
// and the dataset envelope that travels with it. Nodes are typed by
// kind; fields the core does not understand round-trip through Extra,
// so the tree stays opaque except for its source references.
package layout

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates layout node variants.
type Kind string

const (
	KindPage  Kind = "Page"
	KindTable Kind = "Table"
	KindChart Kind = "Chart"
	KindText  Kind = "Text"
)

// ParseKind normalizes a type tag to its canonical kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "page":
		return KindPage, nil
	case "table":
		return KindTable, nil
	case "chart":
		return KindChart, nil
	case "text":
		return KindText, nil
	}
	return "", fmt.Errorf("unknown layout node type %q", raw)
}

// Row is a generic data row keyed by column name.
type Row = map[string]any

// DatasetSet maps dataset keys to their row listings.
type DatasetSet map[string][]Row

// GenericKey names the catch-all dataset used when a tool or model
// supplies rows without naming a source.
const GenericKey = "results"

// Node is one element of the layout tree.
type Node struct {
	Kind      Kind
	Title     string
	Source    string
	ChartType string
	Metric    string
	Content   string
	Columns   []string
	Children  []*Node
	Extra     map[string]any
}

// nodeKeys are the JSON keys consumed by the typed fields; everything
// else lands in Extra.
var nodeKeys = map[string]bool{
	"type": true, "title": true, "source": true, "chartType": true,
	"chart_type": true, "metric": true, "content": true, "columns": true,
	"children": true,
}

// MarshalJSON renders the node with its canonical keys plus any Extra
// fields. Typed fields win over Extra on key collisions.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Extra)+8)
	for k, v := range n.Extra {
		out[k] = v
	}
	out["type"] = string(n.Kind)
	if n.Title != "" {
		out["title"] = n.Title
	}
	if n.Source != "" {
		out["source"] = n.Source
	}
	if n.ChartType != "" {
		out["chartType"] = n.ChartType
	}
	if n.Metric != "" {
		out["metric"] = n.Metric
	}
	if n.Content != "" {
		out["content"] = n.Content
	}
	if len(n.Columns) > 0 {
		out["columns"] = n.Columns
	}
	if len(n.Children) > 0 {
		out["children"] = n.Children
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses a node object, rejecting unknown type tags and
// collecting unrecognized keys into Extra.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("layout node must be an object: %w", err)
	}

	typeRaw, ok := raw["type"]
	if !ok {
		return fmt.Errorf("layout node missing type")
	}
	var typeTag string
	if err := json.Unmarshal(typeRaw, &typeTag); err != nil {
		return fmt.Errorf("layout node type must be a string: %w", err)
	}
	kind, err := ParseKind(typeTag)
	if err != nil {
		return err
	}
	n.Kind = kind

	stringField := func(key string, dst *string) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("layout node %s must be a string: %w", key, err)
		}
		return nil
	}
	if err := stringField("title", &n.Title); err != nil {
		return err
	}
	if err := stringField("source", &n.Source); err != nil {
		return err
	}
	if err := stringField("chartType", &n.ChartType); err != nil {
		return err
	}
	if n.ChartType == "" {
		if err := stringField("chart_type", &n.ChartType); err != nil {
			return err
		}
	}
	if err := stringField("metric", &n.Metric); err != nil {
		return err
	}
	if err := stringField("content", &n.Content); err != nil {
		return err
	}

	if v, ok := raw["columns"]; ok {
		if err := json.Unmarshal(v, &n.Columns); err != nil {
			return fmt.Errorf("layout node columns must be a string list: %w", err)
		}
	}
	if v, ok := raw["children"]; ok {
		if err := json.Unmarshal(v, &n.Children); err != nil {
			return fmt.Errorf("layout node children invalid: %w", err)
		}
	}

	for key, value := range raw {
		if nodeKeys[key] {
			continue
		}
		var generic any
		if err := json.Unmarshal(value, &generic); err != nil {
			return fmt.Errorf("layout node field %s invalid: %w", key, err)
		}
		if n.Extra == nil {
			n.Extra = make(map[string]any)
		}
		n.Extra[key] = generic
	}
	return nil
}

// Parse decodes a layout node tree from JSON.
func Parse(data []byte) (*Node, error) {
	node := &Node{}
	if err := json.Unmarshal(data, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Sources returns the distinct source references in the tree, in
// depth-first first-seen order.
func (n *Node) Sources() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(*Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		if node.Source != "" && !seen[node.Source] {
			seen[node.Source] = true
			out = append(out, node.Source)
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(n)
	return out
}

// Title returns the node's title, falling back to its kind. Used for
// trace lines and assistant summaries.
func Title(n *Node) string {
	if n == nil {
		return ""
	}
	if n.Title != "" {
		return n.Title
	}
	return string(n.Kind)
}

// Fallback is the placeholder layout returned when a run produces
// nothing renderable.
func Fallback() *Node {
	return &Node{Kind: KindText, Content: "No layout generated"}
}

// Merge folds src into dst key by key, later writers winning. A nil
// dst is allocated.
func Merge(dst, src DatasetSet) DatasetSet {
	if dst == nil {
		dst = make(DatasetSet, len(src))
	}
	for key, rows := range src {
		dst[key] = rows
	}
	return dst
}

// Payload is a layout plus the datasets that accompanied it.
type Payload struct {
	Layout   *Node
	Datasets DatasetSet
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// ParsePayload decodes a tool result or final model message. Three
// shapes are accepted: `{"layout": ..., "datasets": {...}}`,
// `{"layout": ..., "data": [...]}` (rows land under GenericKey), and a
// bare layout node object. A malformed layout fails the parse; odd
// dataset values degrade to an empty set so a usable layout is never
// discarded over its data.
func ParsePayload(data []byte) (*Payload, error) {
	var probe struct {
		Layout   json.RawMessage `json:"layout"`
		Datasets json.RawMessage `json:"datasets"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}

	payload := &Payload{Datasets: DatasetSet{}}

	if probe.Layout == nil {
		node, err := Parse(data)
		if err != nil {
			return nil, err
		}
		payload.Layout = node
		return payload, nil
	}

	// An explicit null layout still folds its datasets.
	if !isJSONNull(probe.Layout) {
		node, err := Parse(probe.Layout)
		if err != nil {
			return nil, err
		}
		payload.Layout = node
	}

	if probe.Datasets != nil {
		var datasets DatasetSet
		if err := json.Unmarshal(probe.Datasets, &datasets); err == nil {
			payload.Datasets = Merge(payload.Datasets, datasets)
		}
	} else if probe.Data != nil {
		var rows []Row
		if err := json.Unmarshal(probe.Data, &rows); err == nil {
			payload.Datasets[GenericKey] = rows
		}
	}
	return payload, nil
}
