package models

import "time"

// Editor message roles. The first message of every session is a system
// message holding the site context prompt.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// EditSession is one persisted chat-editing session bound to a site.
type EditSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SiteID    string    `json:"site_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditMessage is one persisted transcript entry. Messages are read back in
// strict created_at ascending order.
type EditMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AppliedChange is the per-action execution result attached to assistant
// messages and returned to the caller.
type AppliedChange struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}
