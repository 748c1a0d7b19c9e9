package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

const proxySiteColumns = "id, domain, api_key, label, status, subscription_tier, monthly_token_limit, created_at, revoked_at"

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProxySite(row scanner) (*models.ProxySite, error) {
	var site models.ProxySite
	var revokedAt sql.NullTime
	err := row.Scan(
		&site.ID,
		&site.Domain,
		&site.APIKey,
		&site.Label,
		&site.Status,
		&site.SubscriptionTier,
		&site.MonthlyTokenLimit,
		&site.CreatedAt,
		&revokedAt,
	)
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		site.RevokedAt = &t
	}
	return &site, nil
}

// CreateProxySite registers a new proxy tenant. The caller supplies the
// generated API key; the monthly token limit is copied from the tier so
// later tier edits don't silently reprice existing sites.
func (s *Store) CreateProxySite(ctx context.Context, domain, apiKey, label, tier string) (*models.ProxySite, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidInput)
	}
	if tier == "" {
		tier = "free"
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tierRow, err := s.GetTier(ctx, tier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
		}
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO proxy_sites (domain, api_key, label, subscription_tier, monthly_token_limit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+proxySiteColumns,
		domain, apiKey, label, tierRow.Tier, tierRow.MonthlyTokenLimit)

	site, err := scanProxySite(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, domain)
		}
		return nil, fmt.Errorf("failed to create proxy site: %w", err)
	}
	return site, nil
}

// GetProxySiteByKey looks a site up by its API key. Callers decide what a
// non-active status means for them.
func (s *Store) GetProxySiteByKey(ctx context.Context, apiKey string) (*models.ProxySite, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+proxySiteColumns+" FROM proxy_sites WHERE api_key = $1", apiKey)
	site, err := scanProxySite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proxy site by key: %w", err)
	}
	return site, nil
}

// GetProxySite looks a site up by id.
func (s *Store) GetProxySite(ctx context.Context, id string) (*models.ProxySite, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+proxySiteColumns+" FROM proxy_sites WHERE id = $1", id)
	site, err := scanProxySite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proxy site: %w", err)
	}
	return site, nil
}

// ListProxySites returns all tenants, newest first.
func (s *Store) ListProxySites(ctx context.Context) ([]models.ProxySite, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+proxySiteColumns+" FROM proxy_sites ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list proxy sites: %w", err)
	}
	defer rows.Close()

	var sites []models.ProxySite
	for rows.Next() {
		site, err := scanProxySite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy site: %w", err)
		}
		sites = append(sites, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list proxy sites: %w", err)
	}
	return sites, nil
}

// UpdateProxySiteTier moves a site onto another tier, copying that tier's
// monthly token limit. An unknown tier returns ErrUnknownTier and writes
// nothing. The site row is locked for the duration so concurrent admin
// edits to the same site serialize.
func (s *Store) UpdateProxySiteTier(ctx context.Context, id, tier string) (*models.ProxySite, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if tier == "" {
		return nil, fmt.Errorf("%w: tier is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.withSiteLock(ctx, id, func(tx *sql.Tx) (*models.ProxySite, error) {
		var limit int64
		err := tx.QueryRowContext(ctx,
			"SELECT monthly_token_limit FROM proxy_subscription_tiers WHERE tier = $1", tier).
			Scan(&limit)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up tier: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE proxy_sites
			SET subscription_tier = $2, monthly_token_limit = $3
			WHERE id = $1
			RETURNING `+proxySiteColumns,
			id, tier, limit)
		return scanProxySite(row)
	})
}

// UpdateProxySiteStatus flips a site between active and revoked.
// Revoking stamps revoked_at; re-activating clears it.
func (s *Store) UpdateProxySiteStatus(ctx context.Context, id, status string) (*models.ProxySite, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if status != models.SiteStatusActive && status != models.SiteStatusRevoked {
		return nil, fmt.Errorf("%w: status must be %q or %q", ErrInvalidInput,
			models.SiteStatusActive, models.SiteStatusRevoked)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.withSiteLock(ctx, id, func(tx *sql.Tx) (*models.ProxySite, error) {
		var revokedAt *time.Time
		if status == models.SiteStatusRevoked {
			now := time.Now().UTC()
			revokedAt = &now
		}
		row := tx.QueryRowContext(ctx, `
			UPDATE proxy_sites
			SET status = $2, revoked_at = $3
			WHERE id = $1
			RETURNING `+proxySiteColumns,
			id, status, revokedAt)
		return scanProxySite(row)
	})
}

// RotateProxySiteKey overwrites the site's API key. The old key stops
// working the moment the transaction commits.
func (s *Store) RotateProxySiteKey(ctx context.Context, id, newKey string) (*models.ProxySite, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if newKey == "" {
		return nil, fmt.Errorf("%w: new key is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.withSiteLock(ctx, id, func(tx *sql.Tx) (*models.ProxySite, error) {
		row := tx.QueryRowContext(ctx, `
			UPDATE proxy_sites
			SET api_key = $2
			WHERE id = $1
			RETURNING `+proxySiteColumns,
			id, newKey)
		return scanProxySite(row)
	})
}

// withSiteLock runs fn inside a transaction holding a FOR UPDATE lock on
// the site row, so mutations to one site serialize.
func (s *Store) withSiteLock(ctx context.Context, id string, fn func(tx *sql.Tx) (*models.ProxySite, error)) (*models.ProxySite, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx, "SELECT id FROM proxy_sites WHERE id = $1 FOR UPDATE", id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock proxy site: %w", err)
	}

	site, err := fn(tx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return site, nil
}

// GetTier returns one subscription tier.
func (s *Store) GetTier(ctx context.Context, tier string) (*models.SubscriptionTier, error) {
	if tier == "" {
		return nil, fmt.Errorf("%w: tier is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT tier, display_name, monthly_token_limit, array_to_json(allowed_models), rate_limit_rpm
		FROM proxy_subscription_tiers WHERE tier = $1`, tier)
	t, err := scanTier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	return t, nil
}

// ListTiers returns every subscription tier, cheapest first.
func (s *Store) ListTiers(ctx context.Context) ([]models.SubscriptionTier, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, display_name, monthly_token_limit, array_to_json(allowed_models), rate_limit_rpm
		FROM proxy_subscription_tiers ORDER BY monthly_token_limit ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []models.SubscriptionTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	return tiers, nil
}

func scanTier(row scanner) (*models.SubscriptionTier, error) {
	var t models.SubscriptionTier
	var modelsJSON []byte
	err := row.Scan(&t.Tier, &t.DisplayName, &t.MonthlyTokenLimit, &modelsJSON, &t.RateLimitRPM)
	if err != nil {
		return nil, err
	}
	if len(modelsJSON) > 0 {
		if err := json.Unmarshal(modelsJSON, &t.AllowedModels); err != nil {
			return nil, fmt.Errorf("failed to decode allowed models: %w", err)
		}
	}
	return &t, nil
}

// InsertRequestLog appends one accounting row.
func (s *Store) InsertRequestLog(ctx context.Context, entry models.RequestLogEntry) error {
	if entry.SiteID == "" {
		return fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if entry.RequestedAt.IsZero() {
		entry.RequestedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proxy_request_log
			(site_id, domain, provider, model, endpoint, method,
			 prompt_tokens, completion_tokens, total_tokens,
			 response_status, latency_ms, error_message, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.SiteID, entry.Domain, entry.Provider, entry.Model, entry.Endpoint, entry.Method,
		entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens,
		entry.ResponseStatus, entry.LatencyMS, entry.ErrorMessage, entry.RequestedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: site %s", ErrNotFound, entry.SiteID)
		}
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}

// MonthTokenUsage sums total_tokens for the site since the start of the
// current calendar month, UTC.
func (s *Store) MonthTokenUsage(ctx context.Context, siteID string, now time.Time) (int64, error) {
	if siteID == "" {
		return 0, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var used int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_tokens), 0)
		FROM proxy_request_log
		WHERE site_id = $1 AND requested_at >= $2`,
		siteID, monthStart(now)).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to sum token usage: %w", err)
	}
	return used, nil
}

// monthStart returns midnight on the first of now's month, UTC.
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ListRequestLog returns the site's most recent traffic, newest first.
// limit caps the result; non-positive means the default of 100.
func (s *Store) ListRequestLog(ctx context.Context, siteID string, limit int) ([]models.RequestLogEntry, error) {
	if siteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, domain, provider, model, endpoint, method,
		       prompt_tokens, completion_tokens, total_tokens,
		       response_status, latency_ms, error_message, requested_at
		FROM proxy_request_log
		WHERE site_id = $1
		ORDER BY requested_at DESC
		LIMIT $2`, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list request log: %w", err)
	}
	defer rows.Close()

	var entries []models.RequestLogEntry
	for rows.Next() {
		var e models.RequestLogEntry
		err := rows.Scan(
			&e.ID, &e.SiteID, &e.Domain, &e.Provider, &e.Model, &e.Endpoint, &e.Method,
			&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens,
			&e.ResponseStatus, &e.LatencyMS, &e.ErrorMessage, &e.RequestedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list request log: %w", err)
	}
	return entries, nil
}

// PruneRequestLog deletes accounting rows older than the cutoff and
// reports how many went.
func (s *Store) PruneRequestLog(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM proxy_request_log WHERE requested_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune request log: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	return pruned, nil
}
