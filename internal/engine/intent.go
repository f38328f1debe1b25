package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
)

// Action is the three-way intent of an utterance.
type Action string

const (
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
	ActionAsk    Action = "ask"
)

// Intent is the classified purpose of an utterance. Query carries the
// search text for ask and delete actions.
type Intent struct {
	Action Action
	Query  string
}

type intentResponse struct {
	Action string `json:"action"`
	Query  string `json:"query"`
}

// detectIntent decides add/delete/ask for a transcript. Keyword heuristics
// run first; the model is only consulted when they stay silent, and its
// answer is post-filtered so that ambiguity always lands on add. Any model
// failure also resolves to add: recording data beats dropping it.
func (e *Engine) detectIntent(ctx context.Context, transcript, modelName string) Intent {
	lowered := strings.ToLower(transcript)
	if containsAny(lowered, e.lex.DeleteVerbs) {
		return Intent{Action: ActionDelete, Query: transcript}
	}
	if containsAny(lowered, e.lex.Interrogatives) {
		return Intent{Action: ActionAsk, Query: transcript}
	}

	userPrompt := expandTemplate(defaultIntentUser, map[string]string{"text": transcript})
	raw, err := e.chat.ChatJSON(ctx, defaultIntentSystem, userPrompt, modelName)
	if err != nil {
		common.LogDebug("intent model call failed, defaulting to add", common.Fields{"error": err.Error()})
		return Intent{Action: ActionAdd, Query: transcript}
	}

	var resp intentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Intent{Action: ActionAdd, Query: transcript}
	}

	action := Action(strings.ToLower(strings.TrimSpace(resp.Action)))
	switch action {
	case ActionAdd, ActionDelete, ActionAsk:
	default:
		action = ActionAdd
	}
	// The model over-triggers ask on plain statements; without an actual
	// interrogative signal the utterance is recorded, not queried.
	if action == ActionAsk && !containsAny(lowered, e.lex.Interrogatives) {
		action = ActionAdd
	}

	query := strings.TrimSpace(resp.Query)
	if query == "" {
		query = transcript
	}
	return Intent{Action: action, Query: query}
}
