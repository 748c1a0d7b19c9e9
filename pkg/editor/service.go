// Package editor runs conversational site-editing sessions: a persisted
// transcript, a text model, and structured actions the model emits to
// mutate the live site.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
)

const chatTemperature = 0.7

// Store is the slice of persistence the editor needs.
type Store interface {
	CreateEditSession(ctx context.Context, userID, siteID, title string) (*models.EditSession, error)
	GetEditSession(ctx context.Context, id string) (*models.EditSession, error)
	AppendEditMessage(ctx context.Context, msg models.EditMessage) (*models.EditMessage, error)
	ListEditMessages(ctx context.Context, sessionID string) ([]models.EditMessage, error)
}

// SiteClient is the slice of the site REST surface actions dispatch to.
// *deploy.Client satisfies it.
type SiteClient interface {
	ListPages(ctx context.Context) ([]deploy.Page, error)
	CreatePage(ctx context.Context, params deploy.PageParams) (*deploy.Page, error)
	UpdatePage(ctx context.Context, id int, params deploy.PageParams) (*deploy.Page, error)
	UpdateSettings(ctx context.Context, updates map[string]any) error
}

// SiteDirectory turns a caller-supplied site id into a ready client plus
// the site's public URL. Site records live with the hosting provider, not
// here.
type SiteDirectory interface {
	Resolve(ctx context.Context, siteID string) (SiteClient, string, error)
}

// Reply is what SendMessage hands back to the caller: the conversational
// text with action blocks removed, plus the per-action results.
type Reply struct {
	Message string                 `json:"message"`
	Changes []models.AppliedChange `json:"changes,omitempty"`
}

// Service executes edit sessions. One instance serves many concurrent
// sessions; per-session state lives in the store.
type Service struct {
	store     Store
	sites     SiteDirectory
	completer ai.Completer
	model     string
}

// NewService wires the edit session executor. model may be empty; the
// completer's configured default is used.
func NewService(st Store, sites SiteDirectory, completer ai.Completer, model string) *Service {
	return &Service{
		store:     st,
		sites:     sites,
		completer: completer,
		model:     model,
	}
}

// CreateSession opens a new session for the user against one site and
// seeds it with the site-context system prompt. The prompt degrades
// gracefully: an unreachable site yields the bare grammar-only prompt.
func (s *Service) CreateSession(ctx context.Context, userID, siteID string) (*models.EditSession, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(siteID) == "" {
		return nil, fmt.Errorf("%w: user id and site id are required", store.ErrInvalidInput)
	}

	session, err := s.store.CreateEditSession(ctx, userID, siteID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create edit session: %w", err)
	}

	if _, err := s.store.AppendEditMessage(ctx, models.EditMessage{
		SessionID: session.ID,
		Role:      models.RoleSystem,
		Content:   s.siteContextPrompt(ctx, siteID),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist system prompt: %w", err)
	}

	slog.Info("Edit session created",
		"session_id", session.ID,
		"user_id", userID,
		"site_id", siteID)
	return session, nil
}

// Messages returns the session transcript in creation order, after
// checking the caller owns the session.
func (s *Service) Messages(ctx context.Context, sessionID, userID string) ([]models.EditMessage, error) {
	if _, err := s.ownedSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListEditMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session transcript: %w", err)
	}
	return msgs, nil
}

// SendMessage appends the user's turn, asks the model for a reply, applies
// whatever actions the reply carries, and persists the assistant turn with
// the applied changes attached.
func (s *Service) SendMessage(ctx context.Context, sessionID, userID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", store.ErrInvalidInput)
	}

	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListEditMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session transcript: %w", err)
	}

	if _, err := s.store.AppendEditMessage(ctx, models.EditMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   text,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	transcript := make([]ai.Message, 0, len(history)+1)
	for _, msg := range history {
		transcript = append(transcript, ai.Message{Role: msg.Role, Content: msg.Content})
	}
	transcript = append(transcript, ai.Message{Role: ai.RoleUser, Content: text})

	resp, err := s.completer.Complete(ctx, ai.Request{
		Model:       s.model,
		Messages:    transcript,
		Temperature: ai.Float(chatTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate assistant reply: %w", err)
	}

	displayText, actions := ParseActions(resp.Content)
	changes := s.applyActions(ctx, session.SiteID, actions)

	assistant := models.EditMessage{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   displayText,
	}
	if len(changes) > 0 {
		assistant.Metadata = map[string]any{"changes": changes}
	}
	if _, err := s.store.AppendEditMessage(ctx, assistant); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	return &Reply{Message: displayText, Changes: changes}, nil
}

// ownedSession loads a session and hides sessions owned by other users
// behind the same not-found error.
func (s *Service) ownedSession(ctx context.Context, sessionID, userID string) (*models.EditSession, error) {
	session, err := s.store.GetEditSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, store.ErrNotFound
	}
	return session, nil
}

func (s *Service) siteContextPrompt(ctx context.Context, siteID string) string {
	client, siteURL, err := s.sites.Resolve(ctx, siteID)
	if err != nil {
		slog.Warn("Edit session starting with bare prompt, site unresolved",
			"site_id", siteID, "error", err)
		return BuildSystemPrompt("", nil)
	}
	pages, err := client.ListPages(ctx)
	if err != nil {
		slog.Warn("Edit session starting with bare prompt, page fetch failed",
			"site_id", siteID, "error", err)
		return BuildSystemPrompt(siteURL, nil)
	}
	return BuildSystemPrompt(siteURL, pages)
}

// applyActions dispatches the parsed actions in source order. A failed
// action records its error and the batch keeps going.
func (s *Service) applyActions(ctx context.Context, siteID string, actions []Action) []models.AppliedChange {
	if len(actions) == 0 {
		return nil
	}

	changes := make([]models.AppliedChange, 0, len(actions))

	client, _, err := s.sites.Resolve(ctx, siteID)
	if err != nil {
		slog.Error("Edit actions skipped, site unresolved", "site_id", siteID, "error", err)
		for _, action := range actions {
			changes = append(changes, models.AppliedChange{
				Type:  action.Type,
				Error: fmt.Sprintf("site unavailable: %v", err),
			})
		}
		return changes
	}

	for _, action := range actions {
		change := s.applyAction(ctx, client, action)
		if !change.Success {
			slog.Warn("Edit action failed",
				"site_id", siteID,
				"type", action.Type,
				"error", change.Error)
		}
		changes = append(changes, change)
	}
	return changes
}

func (s *Service) applyAction(ctx context.Context, client SiteClient, action Action) models.AppliedChange {
	change := models.AppliedChange{Type: action.Type}

	switch action.Type {
	case ActionUpdatePage:
		if action.PageID <= 0 || action.Updates == nil {
			change.Error = "update_page requires pageId and updates"
			return change
		}
		page, err := client.UpdatePage(ctx, action.PageID, *action.Updates)
		if err != nil {
			change.Error = err.Error()
			return change
		}
		change.Success = true
		change.Result = page

	case ActionUpdateSettings:
		if action.Settings == nil {
			change.Error = "update_settings requires settings"
			return change
		}
		updates := map[string]any{}
		if action.Settings.Title != "" {
			updates["title"] = action.Settings.Title
		}
		if action.Settings.Tagline != "" {
			// WordPress stores the tagline under "description".
			updates["description"] = action.Settings.Tagline
		}
		if len(updates) == 0 {
			change.Error = "update_settings requires settings"
			return change
		}
		if err := client.UpdateSettings(ctx, updates); err != nil {
			change.Error = err.Error()
			return change
		}
		change.Success = true
		change.Result = updates

	case ActionCreatePage:
		if action.Page == nil || action.Page.Title == "" {
			change.Error = "create_page requires a page with a title"
			return change
		}
		params := *action.Page
		if params.Status == "" {
			params.Status = "publish"
		}
		page, err := client.CreatePage(ctx, params)
		if err != nil {
			change.Error = err.Error()
			return change
		}
		change.Success = true
		change.Result = page

	default:
		change.Error = "unknown action type"
	}
	return change
}
