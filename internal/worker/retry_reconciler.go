package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/quillboard/quillboard/internal/pkg/distlock"
	"github.com/quillboard/quillboard/internal/service/webhook"
)

// =============================================================================
// RETRY RECONCILER — Resumes Orphaned Webhook Deliveries
// =============================================================================
// The dispatcher schedules retries with in-process timers. If the process
// restarts, those timers are gone while the events sit in the database with
// a due next_retry_at. This worker periodically polls for such events and
// hands them back to the dispatcher. It is a required collaborator, not an
// optimization: without it, a redeploy silently drops every in-flight retry.
//
// The claim CAS inside the dispatcher makes the reconciler safe to run
// alongside live timers — at most one of them wins each attempt.

const (
	// DefaultReconcileInterval is how often we poll for due events.
	DefaultReconcileInterval = 30 * time.Second

	// DefaultReconcileBatch is the maximum events drained per tick.
	DefaultReconcileBatch = 100
)

// Deliverer performs one delivery attempt for an event.
// *webhook.Dispatcher satisfies this.
type Deliverer interface {
	Deliver(ctx context.Context, eventID string) error
}

// RetryReconciler periodically re-drives pending webhook events whose retry
// time has passed.
type RetryReconciler struct {
	repo      webhook.Repository
	deliverer Deliverer
	lock      distlock.DistLock // nil disables cross-replica exclusion
	interval  time.Duration
	batch     int
	now       func() time.Time
}

// NewRetryReconciler creates a reconciler with default settings.
// lock may be nil for single-replica deployments.
func NewRetryReconciler(repo webhook.Repository, deliverer Deliverer, lock distlock.DistLock) *RetryReconciler {
	return &RetryReconciler{
		repo:      repo,
		deliverer: deliverer,
		lock:      lock,
		interval:  DefaultReconcileInterval,
		batch:     DefaultReconcileBatch,
		now:       time.Now,
	}
}

// NewRetryReconcilerWithConfig creates a reconciler with custom timing.
func NewRetryReconcilerWithConfig(repo webhook.Repository, deliverer Deliverer, lock distlock.DistLock, interval time.Duration, batch int) *RetryReconciler {
	r := NewRetryReconciler(repo, deliverer, lock)
	if interval > 0 {
		r.interval = interval
	}
	if batch > 0 {
		r.batch = batch
	}
	return r
}

// Start begins the reconcile loop. It blocks until ctx is cancelled.
func (r *RetryReconciler) Start(ctx context.Context) {
	log.Printf("[RetryReconciler] Starting (interval=%s, batch=%d)", r.interval, r.batch)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RetryReconciler] Stopping")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile drains one batch of due events. With a lock configured, only one
// replica drains per tick; the others skip and try again next interval.
func (r *RetryReconciler) reconcile(ctx context.Context) {
	if r.lock != nil {
		acquired, err := r.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[RetryReconciler] Lock acquire: %v", err)
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := r.lock.Release(ctx); err != nil {
				log.Printf("[RetryReconciler] Lock release: %v", err)
			}
		}()
	}

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	due, err := r.repo.FindDue(queryCtx, r.now().UTC(), r.batch)
	cancel()
	if err != nil {
		log.Printf("[RetryReconciler] Find due events: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("[RetryReconciler] Resuming %d due webhook event(s)", len(due))
	for i := range due {
		if ctx.Err() != nil {
			return
		}
		ev := &due[i]
		err := r.deliverer.Deliver(ctx, ev.ID)
		switch {
		case err == nil:
		case errors.Is(err, webhook.ErrNotClaimable):
			// An in-process timer beat us to it. Expected, not a problem.
		default:
			log.Printf("[RetryReconciler] Deliver %s: %v", ev.ID, err)
		}
	}
}
