package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"viewsmith/internal/history"
	"viewsmith/internal/model"
	"viewsmith/internal/store"
	"viewsmith/internal/tools"
)

// --- scriptedClient ---

// scriptStep is one canned model response.
type scriptStep struct {
	resp *model.ToolResponse
	err  error
}

// scriptedClient implements model.Client by replaying a fixed sequence
// of responses while recording every request it receives.
type scriptedClient struct {
	mu    sync.Mutex
	steps []scriptStep
	calls [][]model.ChatMessage
}

func (c *scriptedClient) CompleteWithTools(_ context.Context, messages []model.ChatMessage, _ []model.ToolDefinition) (*model.ToolResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]model.ChatMessage, len(messages))
	copy(copied, messages)
	c.calls = append(c.calls, copied)
	if len(c.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := c.steps[0]
	c.steps = c.steps[1:]
	return next.resp, next.err
}

func (c *scriptedClient) Model() string { return "qwen3:8b" }

func (c *scriptedClient) SetModel(string) {}

func textStep(content string) scriptStep {
	return scriptStep{resp: &model.ToolResponse{Text: content, StopReason: model.StopEndTurn}}
}

func toolStep(calls ...model.ToolCall) scriptStep {
	return scriptStep{resp: &model.ToolResponse{ToolCalls: calls, StopReason: model.StopToolUse}}
}

func errorStep(err error) scriptStep {
	return scriptStep{err: err}
}

// --- fixtures ---

// newTestStore opens a seeded store in a temp directory.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "app.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestExecutor wires an executor over a seeded store, a fresh history
// log and the builtin tool registry.
func newTestExecutor(t *testing.T, client model.Client, cfg Config) (*Executor, *history.Store, *store.Store) {
	t.Helper()
	db := newTestStore(t)

	hist, err := history.New(filepath.Join(t.TempDir(), "history.jsonl"), history.DefaultMirrorLimit)
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	registry := tools.NewRegistry()
	for _, tool := range tools.Builtin(db) {
		registry.MustRegister(tool)
	}

	return NewExecutor(client, registry, db, hist, cfg), hist, db
}
