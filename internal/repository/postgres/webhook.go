package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quillboard/quillboard/internal/domain"
	"github.com/quillboard/quillboard/internal/service/webhook"
)

// WebhookRepo implements webhook.Repository against PostgreSQL.
//
// Terminal-state immutability lives in the SQL: every state-changing UPDATE
// is guarded by status = 'pending', so delivered/failed rows can never be
// touched again no matter what the caller does.
type WebhookRepo struct{ db *sql.DB }

// NewWebhookRepo creates a Postgres-backed webhook event repository.
func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{db: db} }

const eventColumns = `id, site_id, event_type, payload, status, attempts,
	last_attempt_at, next_retry_at, claimed_at, response_status, response_body,
	delivered_at, created_at`

func (r *WebhookRepo) Endpoint(ctx context.Context, siteID string) (domain.WebhookEndpoint, error) {
	var (
		ep     domain.WebhookEndpoint
		url    sql.NullString
		secret sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT webhook_url, webhook_secret
		FROM notification_settings
		WHERE site_id = $1
	`, siteID).Scan(&url, &secret)
	if errors.Is(err, sql.ErrNoRows) {
		return ep, webhook.ErrNoEndpoint
	}
	if err != nil {
		return ep, fmt.Errorf("endpoint lookup: %w", err)
	}
	if !url.Valid || url.String == "" {
		return ep, webhook.ErrNoEndpoint
	}
	ep.SiteID = siteID
	ep.URL = url.String
	ep.Secret = secret.String
	return ep, nil
}

func (r *WebhookRepo) CreateEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, site_id, event_type, payload, status, attempts, next_retry_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.SiteID, ev.EventType, payload, ev.Status, ev.Attempts, ev.NextRetryAt, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *WebhookRepo) GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM webhook_events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webhook.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ClaimEvent is the compare-and-set gate in front of every delivery attempt.
// A stale claim (holder crashed mid-attempt) is reclaimed after 30s.
func (r *WebhookRepo) ClaimEvent(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET claimed_at = $2
		WHERE id = $1
		  AND status = 'pending'
		  AND (claimed_at IS NULL OR claimed_at < $3)
	`, id, now, now.Add(-webhook.ClaimStaleAfter))
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return n > 0, nil
}

func (r *WebhookRepo) MarkDelivered(ctx context.Context, id string, attempt, respStatus int, respBody string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = 'delivered',
		    attempts = $2,
		    last_attempt_at = $3,
		    delivered_at = $3,
		    response_status = $4,
		    response_body = $5,
		    next_retry_at = NULL,
		    claimed_at = NULL
		WHERE id = $1 AND status = 'pending'
	`, id, attempt, now, respStatus, respBody)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

func (r *WebhookRepo) MarkRetry(ctx context.Context, id string, attempt int, respStatus *int, respBody string, nextRetry, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET attempts = $2,
		    last_attempt_at = $3,
		    response_status = $4,
		    response_body = $5,
		    next_retry_at = $6,
		    claimed_at = NULL
		WHERE id = $1 AND status = 'pending'
	`, id, attempt, now, nullableInt(respStatus), respBody, nextRetry)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	return nil
}

func (r *WebhookRepo) MarkFailed(ctx context.Context, id string, attempt int, respStatus *int, respBody string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = 'failed',
		    attempts = $2,
		    last_attempt_at = $3,
		    response_status = $4,
		    response_body = $5,
		    next_retry_at = NULL,
		    claimed_at = NULL
		WHERE id = $1 AND status = 'pending'
	`, id, attempt, now, nullableInt(respStatus), respBody)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *WebhookRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE status = 'pending'
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= $1
		  AND (claimed_at IS NULL OR claimed_at < $2)
		ORDER BY next_retry_at ASC
		LIMIT $3
	`, now, now.Add(-webhook.ClaimStaleAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("find due events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *WebhookRepo) ListEvents(ctx context.Context, siteID string, limit, offset int) ([]domain.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE site_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, siteID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

func scanEvent(row rowScanner) (*domain.WebhookEvent, error) {
	var (
		ev         domain.WebhookEvent
		payload    []byte
		lastAt     sql.NullTime
		nextAt     sql.NullTime
		claimedAt  sql.NullTime
		respStatus sql.NullInt64
		respBody   sql.NullString
		delivAt    sql.NullTime
	)
	if err := row.Scan(&ev.ID, &ev.SiteID, &ev.EventType, &payload, &ev.Status, &ev.Attempts,
		&lastAt, &nextAt, &claimedAt, &respStatus, &respBody, &delivAt, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if lastAt.Valid {
		ev.LastAttemptAt = &lastAt.Time
	}
	if nextAt.Valid {
		ev.NextRetryAt = &nextAt.Time
	}
	if claimedAt.Valid {
		ev.ClaimedAt = &claimedAt.Time
	}
	if respStatus.Valid {
		s := int(respStatus.Int64)
		ev.ResponseStatus = &s
	}
	ev.ResponseBody = respBody.String
	if delivAt.Valid {
		ev.DeliveredAt = &delivAt.Time
	}
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]domain.WebhookEvent, error) {
	var out []domain.WebhookEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
