// Package session runs the request loop at the center of viewsmith.
//
// One Run carries a user message through the model, dispatches the tool
// calls the model asks for, folds tool outcomes into a layout candidate,
// and resolves the datasets the final layout references. The loop never
// fails a request: model errors, tool errors and step exhaustion all
// degrade to the last known layout, with the fallback node as the floor.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"viewsmith/internal/history"
	"viewsmith/internal/layout"
	"viewsmith/internal/logging"
	"viewsmith/internal/model"
	"viewsmith/internal/store"
	"viewsmith/internal/tools"
)

// State names where a run currently is, or how it ended.
type State string

const (
	StateAwaitingModel State = "awaiting_model"
	StateDispatching   State = "dispatching"
	StateConverged     State = "converged"
	StateExhausted     State = "exhausted"
)

// EventType classifies observer events and transcript log entries.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventTool       EventType = "tool"
	EventToolResult EventType = "tool_result"
	EventData       EventType = "data"
	EventModel      EventType = "model"
	EventFinal      EventType = "final"
)

// Event is one observer notification from a run. Text carries the trace
// line; the remaining fields are populated per type: Name and Args for
// tool events, Title for tool_result, Rows for data, Layout and Datasets
// for the terminal final event.
type Event struct {
	Type     EventType
	Text     string
	Name     string
	Args     map[string]any
	Title    string
	Rows     int
	Layout   *layout.Node
	Datasets layout.DatasetSet
}

// Observer receives run events as they happen. Streaming transports pass
// one to Run; nil is fine.
type Observer func(Event)

// LogEntry is one typed line of the run transcript.
type LogEntry struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
}

// Result is everything a run produced. Run always returns a renderable
// result; there is no error path.
type Result struct {
	Layout   *layout.Node      `json:"layout"`
	Datasets layout.DatasetSet `json:"datasets"`
	Trace    []string          `json:"trace"`
	Logs     []LogEntry        `json:"logs"`
	State    State             `json:"state"`
	Steps    int               `json:"steps"`
}

// Config tunes the executor. Zero fields take the package defaults.
type Config struct {
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string

	// MaxToolSteps caps model round trips per run.
	MaxToolSteps int

	// MaxTurns caps the history turns replayed to the model.
	MaxTurns int

	// PreviewLimit caps model content echoed into logs, in runes.
	PreviewLimit int
}

const (
	defaultMaxToolSteps = 8
	defaultMaxTurns     = 20
	defaultPreviewLimit = 400
)

// Executor drives the model and tool loop against the store and the
// session history.
type Executor struct {
	client   model.Client
	registry *tools.Registry
	db       *store.Store
	history  *history.Store
	cfg      Config
}

// NewExecutor wires an executor from its dependencies.
func NewExecutor(client model.Client, registry *tools.Registry, db *store.Store, hist *history.Store, cfg Config) *Executor {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxToolSteps < 1 {
		cfg.MaxToolSteps = defaultMaxToolSteps
	}
	if cfg.MaxTurns < 1 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.PreviewLimit < 1 {
		cfg.PreviewLimit = defaultPreviewLimit
	}
	return &Executor{client: client, registry: registry, db: db, history: hist, cfg: cfg}
}

// emitter fans each event out to the trace, the typed log and the
// observer so the three transcripts never drift apart.
type emitter struct {
	trace    []string
	logs     []LogEntry
	observer Observer
}

func (em *emitter) emit(ev Event) {
	em.trace = append(em.trace, ev.Text)
	em.logs = append(em.logs, LogEntry{Type: ev.Type, Text: ev.Text})
	if em.observer != nil {
		em.observer(ev)
	}
}

func (em *emitter) thinking(format string, args ...any) {
	em.emit(Event{Type: EventThinking, Text: fmt.Sprintf(format, args...)})
}

// Run processes one user message for a session.
//
// The loop:
//  1. Append the message to history and rebuild the conversation.
//  2. Call the model with the tool catalog.
//  3. Dispatch requested tool calls, folding layouts and datasets.
//  4. On a final text message, parse it as the layout payload.
//
// Tool rounds repeat until the model stops asking or the step budget
// runs out. The result always carries a layout, and the resolver
// guarantees a dataset for every source that layout references.
func (e *Executor) Run(ctx context.Context, sessionID, message string, observer Observer) *Result {
	start := time.Now()
	logging.Session("Run: session=%s message=%d chars", sessionID, len(message))

	em := &emitter{observer: observer}
	em.thinking("Received query: %s", message)

	audit := logging.AuditWithSession(sessionID)
	audit.TurnStart(len(message))

	if _, err := e.history.Append(sessionID, history.RoleUser, message, nil, nil); err != nil {
		logging.SessionWarn("Run: failed to record user turn for session %s: %v", sessionID, err)
	}

	messages := BuildMessages(e.history, sessionID, e.cfg.SystemPrompt, e.cfg.MaxTurns)
	defs := e.registry.Definitions()

	var (
		candidate *layout.Node
		collected = layout.DatasetSet{}
		state     = StateAwaitingModel
		steps     int
		settled   bool
	)

	for step := 1; step <= e.cfg.MaxToolSteps; step++ {
		steps = step
		state = StateAwaitingModel
		em.thinking("Calling model: %s with tool specs (step %d)", e.client.Model(), step)

		modelStart := time.Now()
		resp, err := e.client.CompleteWithTools(ctx, messages, defs)
		audit.ModelCall(e.client.Model(), time.Since(modelStart).Milliseconds(), err)
		if err != nil {
			em.thinking("Model invocation failed: %v; retaining last known layout", err)
			state = StateConverged
			settled = true
			break
		}

		if len(resp.ToolCalls) > 0 {
			state = StateDispatching
			messages = append(messages, model.ChatMessage{
				Role:      model.RoleAssistant,
				Content:   resp.Text,
				ToolCalls: resp.ToolCalls,
			})
			for _, call := range resp.ToolCalls {
				var toolMsg model.ChatMessage
				candidate, toolMsg = e.runTool(ctx, call, candidate, collected, em, audit)
				messages = append(messages, toolMsg)
			}
			continue
		}

		// No tool calls: the content, if any, is the final payload.
		if content := strings.TrimSpace(resp.Text); content != "" {
			em.emit(Event{Type: EventModel, Text: preview(content, e.cfg.PreviewLimit)})
			payload, perr := layout.ParsePayload([]byte(content))
			if perr != nil {
				em.thinking("Model returned non-JSON content; retaining last tool layout")
			} else {
				if payload.Layout != nil {
					candidate = payload.Layout
					em.thinking("Parsed final layout: %s", layout.Title(candidate))
				}
				collected = layout.Merge(collected, payload.Datasets)
			}
		}
		state = StateConverged
		settled = true
		break
	}

	if !settled {
		em.thinking("Reached tool step limit; using last known layout")
		state = StateExhausted
	}

	if candidate == nil {
		candidate = layout.Fallback()
	}

	datasets, notes := Resolve(e.db, candidate, collected)
	for _, note := range notes {
		em.emit(Event{Type: note.Type, Text: note.Text, Rows: note.Rows})
	}

	e.persist(sessionID, candidate, datasets, em)
	audit.LayoutFinal(string(candidate.Kind), len(datasets))
	audit.TurnEnd(steps, time.Since(start).Milliseconds(), state == StateConverged)

	if observer != nil {
		observer(Event{Type: EventFinal, Layout: candidate, Datasets: datasets})
	}

	logging.Session("Run: session=%s state=%s steps=%d in %v", sessionID, state, steps, time.Since(start))

	return &Result{
		Layout:   candidate,
		Datasets: datasets,
		Trace:    em.trace,
		Logs:     em.logs,
		State:    state,
		Steps:    steps,
	}
}

// runTool dispatches one requested call and folds its outcome into the
// running candidate and dataset set. A dispatch error becomes a Text
// placeholder the model can read; a tool never fails the run.
func (e *Executor) runTool(ctx context.Context, call model.ToolCall, candidate *layout.Node, collected layout.DatasetSet, em *emitter, audit *logging.AuditLogger) (*layout.Node, model.ChatMessage) {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	argsText, err := json.Marshal(args)
	if err != nil {
		argsText = []byte(fmt.Sprint(args))
	}
	em.emit(Event{
		Type: EventTool,
		Text: fmt.Sprintf("Model requested tool: %s with args: %s", call.Name, argsText),
		Name: call.Name,
		Args: args,
	})

	toolStart := time.Now()
	outcome, err := e.registry.Dispatch(ctx, call.Name, args)
	audit.ToolExec(call.Name, time.Since(toolStart).Milliseconds(), err)
	placeholder := err != nil
	if placeholder {
		text := fmt.Sprintf("Tool %s error: %v", call.Name, err)
		outcome = &tools.Outcome{
			Layout:  &layout.Node{Kind: layout.KindText, Content: text},
			Content: text,
		}
	}

	if outcome.Layout != nil {
		candidate = outcome.Layout
		title := layout.Title(candidate)
		em.emit(Event{
			Type:  EventToolResult,
			Text:  fmt.Sprintf("Executed tool → layout: %s", title),
			Title: title,
		})
	}

	for _, key := range sortedKeys(outcome.Datasets) {
		rows := outcome.Datasets[key]
		collected[key] = rows
		em.emit(Event{
			Type: EventData,
			Text: fmt.Sprintf("Tool dataset '%s' has %d rows", key, len(rows)),
			Rows: len(rows),
		})
	}

	return candidate, model.ChatMessage{
		Role:       model.RoleTool,
		Content:    toolMessageContent(outcome, placeholder),
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

// persist records the assistant summary and the view snapshot for the
// session. History failures are logged, not fatal.
func (e *Executor) persist(sessionID string, node *layout.Node, datasets layout.DatasetSet, em *emitter) {
	summary := "Updated the view."
	if title := layout.Title(node); title != "" {
		summary = "Showing: " + title
	}
	meta := map[string]any{"logs": em.logs, "datasets": datasets}
	if _, err := e.history.Append(sessionID, history.RoleAssistant, summary, em.trace, meta); err != nil {
		logging.SessionWarn("Run: failed to record assistant turn for session %s: %v", sessionID, err)
	}
	snapshot := map[string]any{"layout": node, "datasets": datasets}
	if _, err := e.history.Append(sessionID, history.RoleView, "layout", nil, snapshot); err != nil {
		logging.SessionWarn("Run: failed to record view snapshot for session %s: %v", sessionID, err)
	}
}

// toolMessageContent serializes an outcome for the tool role message.
// Placeholders collapse to their bare layout node.
func toolMessageContent(o *tools.Outcome, placeholder bool) string {
	var (
		raw []byte
		err error
	)
	if placeholder {
		raw, err = json.Marshal(o.Layout)
	} else {
		raw, err = json.Marshal(o)
	}
	if err != nil {
		return fmt.Sprintf(`{"content":%q}`, o.Content)
	}
	return string(raw)
}

// preview clips model content for logs, appending an ellipsis past
// limit runes.
func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

func sortedKeys(set layout.DatasetSet) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
