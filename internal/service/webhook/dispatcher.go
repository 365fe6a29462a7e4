// Package webhook implements the outbound notification delivery engine.
//
// Dispatcher.Fire records an event and schedules its first delivery attempt
// without blocking the caller. Each attempt POSTs a signed JSON body to the
// site's configured endpoint with a fixed per-attempt timeout; failures are
// retried on a fixed backoff schedule until the budget is exhausted. All
// delivery state is durable, so a separate reconciler (internal/worker) can
// resume retries whose in-process timers were lost to a restart.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quillboard/quillboard/internal/domain"
)

const (
	// MaxAttempts is the per-event delivery budget.
	MaxAttempts = 5

	// AttemptTimeout bounds each HTTP attempt.
	AttemptTimeout = 10 * time.Second

	// ClaimStaleAfter is how long a claim can be held before another
	// attempt may take over (covers a crash mid-attempt).
	ClaimStaleAfter = 30 * time.Second

	// ResponseBodyLimit caps how much of the endpoint's response is stored.
	ResponseBodyLimit = 1000
)

// RetryDelays is the fixed backoff schedule: the wait after the Nth failed
// attempt. Exact values are part of the published delivery contract; they
// are not computed.
var RetryDelays = [MaxAttempts]time.Duration{
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
}

// wireBody is the exact request body shape. Field order is fixed: customers
// parse this, and the signature covers the serialized bytes.
type wireBody struct {
	Event     domain.EventType `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      map[string]any   `json:"data"`
}

// Dispatcher delivers webhook events. It is safe for concurrent use; every
// attempt re-reads event and endpoint state, so many sites with different
// secrets can be in flight at once.
type Dispatcher struct {
	repo   Repository
	client *http.Client
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a delivery engine backed by the given repository.
func NewDispatcher(repo Repository) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		repo:   repo,
		client: &http.Client{Timeout: AttemptTimeout},
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels scheduled attempts and waits for in-flight ones to finish.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// Fire records a new event and schedules its first delivery attempt. It
// returns before any network I/O happens. If the site has no webhook URL
// configured it does nothing and returns (nil, nil).
//
// next_retry_at is set to now at creation so that an event whose first
// attempt never runs (process death between commit and goroutine start) is
// still visible to the reconciler.
func (d *Dispatcher) Fire(ctx context.Context, eventType domain.EventType, siteID string, payload map[string]any) (*domain.WebhookEvent, error) {
	_, err := d.repo.Endpoint(ctx, siteID)
	if errors.Is(err, ErrNoEndpoint) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("endpoint lookup: %w", err)
	}

	now := d.now().UTC()
	ev := &domain.WebhookEvent{
		ID:          uuid.New().String(),
		SiteID:      siteID,
		EventType:   eventType,
		Payload:     payload,
		Status:      domain.EventPending,
		Attempts:    0,
		NextRetryAt: &now,
		CreatedAt:   now,
	}
	if err := d.repo.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	d.schedule(ev.ID, 0)
	return ev, nil
}

// Deliver performs one delivery attempt for an event right now. It is the
// entry point for the reconciler and for manual redelivery; scheduled
// attempts go through the same path. Returns ErrNotClaimable when the event
// is terminal or already being attempted.
func (d *Dispatcher) Deliver(ctx context.Context, eventID string) error {
	return d.attempt(ctx, eventID)
}

// schedule queues a delivery attempt after the given delay. The goroutine
// honors dispatcher shutdown, so a pending timer never outlives Close.
func (d *Dispatcher) schedule(eventID string, delay time.Duration) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-d.ctx.Done():
				return
			}
		}
		if err := d.attempt(d.ctx, eventID); err != nil && !errors.Is(err, ErrNotClaimable) {
			log.Printf("[WebhookDispatcher] Scheduled attempt for %s: %v", eventID, err)
		}
	}()
}

// attempt makes exactly one HTTP delivery attempt and commits the outcome as
// a single update. The claim CAS up front is what keeps a near-simultaneous
// in-process timer and reconciler poll from double-sending.
func (d *Dispatcher) attempt(ctx context.Context, eventID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	claimed, err := d.repo.ClaimEvent(ctx, eventID, d.now().UTC())
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		return ErrNotClaimable
	}

	ev, err := d.repo.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	// Endpoint config is read per attempt so URL/secret changes apply to
	// in-flight retries.
	ep, err := d.repo.Endpoint(ctx, ev.SiteID)
	if errors.Is(err, ErrNoEndpoint) {
		// The site unconfigured its webhook mid-retry. No call is made and
		// attempts stays put, so the count still matches HTTP calls made.
		now := d.now().UTC()
		if err := d.repo.MarkFailed(ctx, eventID, ev.Attempts, nil, "webhook endpoint no longer configured", now); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		log.Printf("[WebhookDispatcher] %s %s: endpoint removed, marked failed", ev.EventType, eventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("endpoint lookup: %w", err)
	}

	attempt := ev.Attempts + 1
	sendTime := d.now().UTC()

	body, err := json.Marshal(wireBody{
		Event:     ev.EventType,
		Timestamp: sendTime.Format(time.RFC3339),
		Data:      ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	respStatus, respBody := d.post(ctx, ep, ev.EventType, attempt, body)
	success := respStatus != nil && *respStatus >= 200 && *respStatus < 300
	now := d.now().UTC()

	switch {
	case success:
		if err := d.repo.MarkDelivered(ctx, eventID, attempt, *respStatus, respBody, now); err != nil {
			return fmt.Errorf("mark delivered: %w", err)
		}
		log.Printf("[WebhookDispatcher] Delivered %s -> %s (%d, attempt %d)", ev.EventType, ep.URL, *respStatus, attempt)

	case attempt < MaxAttempts:
		delay := RetryDelays[attempt-1]
		if err := d.repo.MarkRetry(ctx, eventID, attempt, respStatus, respBody, now.Add(delay), now); err != nil {
			return fmt.Errorf("mark retry: %w", err)
		}
		log.Printf("[WebhookDispatcher] Failed %s -> %s (attempt %d/%d), retry in %s", ev.EventType, ep.URL, attempt, MaxAttempts, delay)
		d.schedule(eventID, delay)

	default:
		if err := d.repo.MarkFailed(ctx, eventID, attempt, respStatus, respBody, now); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		log.Printf("[WebhookDispatcher] Permanently failed %s -> %s after %d attempts", ev.EventType, ep.URL, attempt)
	}
	return nil
}

// post performs the HTTP POST. A nil status means a transport-level failure;
// respBody then carries the error text (truncated like a real body).
func (d *Dispatcher) post(ctx context.Context, ep domain.WebhookEndpoint, eventType domain.EventType, attempt int, body []byte) (*int, string) {
	reqCtx, cancel := context.WithTimeout(ctx, AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, truncate(err.Error(), ResponseBodyLimit)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(eventType))
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(attempt))
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(ep.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, truncate(err.Error(), ResponseBodyLimit)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, ResponseBodyLimit+1))
	status := resp.StatusCode
	return &status, truncate(string(b), ResponseBodyLimit)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
