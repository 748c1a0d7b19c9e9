package editor

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
)

// Action types the model may emit inside :::action fences.
const (
	ActionUpdatePage     = "update_page"
	ActionUpdateSettings = "update_settings"
	ActionCreatePage     = "create_page"
)

const (
	openFence  = ":::action"
	closeFence = ":::"
)

// SiteSettings are the mutable site-level fields an action can touch.
type SiteSettings struct {
	Title   string `json:"title,omitempty"`
	Tagline string `json:"tagline,omitempty"`
}

// Action is one structured operation parsed from an assistant reply. Which
// payload field is set depends on Type.
type Action struct {
	Type     string             `json:"type"`
	PageID   int                `json:"pageId,omitempty"`
	Updates  *deploy.PageParams `json:"updates,omitempty"`
	Settings *SiteSettings      `json:"settings,omitempty"`
	Page     *deploy.PageParams `json:"page,omitempty"`
}

// ParseActions splits an assistant reply into its conversational text and
// the fenced action blocks. Blocks look like:
//
//	:::action
//	{"type":"update_page","pageId":10,"updates":{"title":"New"}}
//	:::
//
// Text outside blocks is concatenated verbatim and trimmed. Each block body
// must be a single JSON object; a block that fails to decode, or that hits
// end of input before its closing fence, is dropped with a warning and
// never reaches the display text.
func ParseActions(reply string) (string, []Action) {
	var (
		textLines []string
		bodyLines []string
		actions   []Action
		inBlock   bool
	)

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)

		if !inBlock {
			if trimmed == openFence {
				inBlock = true
				bodyLines = bodyLines[:0]
				continue
			}
			textLines = append(textLines, line)
			continue
		}

		if trimmed == closeFence {
			inBlock = false
			if action, ok := decodeAction(strings.Join(bodyLines, "\n")); ok {
				actions = append(actions, action)
			}
			continue
		}
		bodyLines = append(bodyLines, line)
	}

	if inBlock {
		slog.Warn("Dropping unterminated action block in assistant reply",
			"body_lines", len(bodyLines))
	}

	return strings.TrimSpace(strings.Join(textLines, "\n")), actions
}

func decodeAction(body string) (Action, bool) {
	var action Action
	if err := json.Unmarshal([]byte(body), &action); err != nil {
		slog.Warn("Dropping malformed action block in assistant reply", "error", err)
		return Action{}, false
	}
	if action.Type == "" {
		slog.Warn("Dropping action block without a type")
		return Action{}, false
	}
	return action, true
}
