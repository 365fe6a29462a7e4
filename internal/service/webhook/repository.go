package webhook

import (
	"context"
	"time"

	"github.com/quillboard/quillboard/internal/domain"
)

// Repository defines the data access contract for the delivery engine.
//
// Event rows are append-then-mutate: created once, updated exactly once per
// delivery attempt, never deleted. Implementations must make every Mark*
// method a single atomic update guarded by status = 'pending' so terminal
// states stay immutable.
type Repository interface {
	// Endpoint returns the webhook endpoint configured for a site.
	// Returns ErrNoEndpoint if the site has no webhook URL.
	Endpoint(ctx context.Context, siteID string) (domain.WebhookEndpoint, error)

	// CreateEvent persists a new pending event. Assigns an id if empty.
	CreateEvent(ctx context.Context, ev *domain.WebhookEvent) error

	// GetEvent returns an event by id, or ErrEventNotFound.
	GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error)

	// ClaimEvent atomically marks a pending event as having an attempt in
	// progress (compare-and-set, not read-then-write). Returns false when
	// the event is terminal or a non-stale claim is already held.
	ClaimEvent(ctx context.Context, id string, now time.Time) (bool, error)

	// MarkDelivered commits a successful attempt: terminal delivered state,
	// attempt count, response details, delivered_at.
	MarkDelivered(ctx context.Context, id string, attempt, respStatus int, respBody string, now time.Time) error

	// MarkRetry commits a failed attempt that still has retry budget:
	// attempt count, response details, and the next retry time.
	MarkRetry(ctx context.Context, id string, attempt int, respStatus *int, respBody string, nextRetry, now time.Time) error

	// MarkFailed commits the terminal failed state after the retry budget
	// is exhausted (or delivery has become impossible).
	MarkFailed(ctx context.Context, id string, attempt int, respStatus *int, respBody string, now time.Time) error

	// FindDue returns pending events whose next_retry_at is at or before
	// now and that are not currently claimed, oldest first. This is the
	// reconciler's poll: it is what resumes retries whose in-process timers
	// died with the process.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error)

	// ListEvents returns a site's events, newest first.
	ListEvents(ctx context.Context, siteID string, limit, offset int) ([]domain.WebhookEvent, error)
}
