package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

// CreateEditSession opens a new chat-editing session for a user and site.
func (s *Store) CreateEditSession(ctx context.Context, userID, siteID, title string) (*models.EditSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if siteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if title == "" {
		title = "New chat"
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var session models.EditSession
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO editor_sessions (user_id, site_id, title)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, site_id, title, created_at, updated_at`,
		userID, siteID, title).
		Scan(&session.ID, &session.UserID, &session.SiteID, &session.Title,
			&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create edit session: %w", err)
	}
	return &session, nil
}

// GetEditSession loads one session by id.
func (s *Store) GetEditSession(ctx context.Context, id string) (*models.EditSession, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var session models.EditSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, site_id, title, created_at, updated_at
		FROM editor_sessions WHERE id = $1`, id).
		Scan(&session.ID, &session.UserID, &session.SiteID, &session.Title,
			&session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edit session: %w", err)
	}
	return &session, nil
}

// AppendEditMessage persists one transcript entry and bumps the session's
// updated_at in the same transaction.
func (s *Store) AppendEditMessage(ctx context.Context, msg models.EditMessage) (*models.EditMessage, error) {
	if msg.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	switch msg.Role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, msg.Role)
	}

	var metadata []byte
	if len(msg.Metadata) > 0 {
		encoded, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode message metadata: %w", err)
		}
		metadata = encoded
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	saved := msg
	err = tx.QueryRowContext(ctx, `
		INSERT INTO editor_messages (session_id, role, content, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		msg.SessionID, msg.Role, msg.Content, metadata).
		Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, msg.SessionID)
		}
		return nil, fmt.Errorf("failed to append edit message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE editor_sessions SET updated_at = now() WHERE id = $1", msg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch edit session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &saved, nil
}

// ListEditMessages returns the session transcript in strict creation
// order, oldest first.
func (s *Store) ListEditMessages(ctx context.Context, sessionID string) ([]models.EditMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at
		FROM editor_messages
		WHERE session_id = $1
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edit messages: %w", err)
	}
	defer rows.Close()

	var messages []models.EditMessage
	for rows.Next() {
		var msg models.EditMessage
		var metadata []byte
		err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metadata, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edit message: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode message metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list edit messages: %w", err)
	}
	return messages, nil
}
