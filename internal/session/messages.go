package session

import (
	"strings"

	"viewsmith/internal/history"
	"viewsmith/internal/logging"
	"viewsmith/internal/model"
)

// DefaultSystemPrompt anchors the model in its role when no prompt is
// configured.
const DefaultSystemPrompt = "You are a UI agent. Your job is to help user and call tools to return layout JSON.\n"

// BuildMessages assembles the conversation sent to the model: the system
// prompt followed by the most recent maxTurns user and assistant turns of
// the session, in order. View snapshots and empty turns carry no
// conversational signal and are skipped. Callers append the current user
// message to history first, so it arrives as the last turn.
func BuildMessages(hist *history.Store, sessionID, systemPrompt string, maxTurns int) []model.ChatMessage {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	messages := []model.ChatMessage{{Role: model.RoleSystem, Content: systemPrompt}}
	if hist == nil || maxTurns < 1 {
		return messages
	}

	// Each exchange appends a user, an assistant and a view event, so a
	// 3x window always holds maxTurns conversational turns.
	events, err := hist.Recent(sessionID, maxTurns*3)
	if err != nil {
		logging.SessionWarn("BuildMessages: history read failed for session %s: %v", sessionID, err)
		return messages
	}

	turns := make([]model.ChatMessage, 0, len(events))
	for _, ev := range events {
		if ev.Role != history.RoleUser && ev.Role != history.RoleAssistant {
			continue
		}
		if strings.TrimSpace(ev.Content) == "" {
			continue
		}
		turns = append(turns, model.ChatMessage{Role: ev.Role, Content: ev.Content})
	}
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return append(messages, turns...)
}
