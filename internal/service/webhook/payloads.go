package webhook

import (
	"context"
	"time"

	"github.com/quillboard/quillboard/internal/domain"
)

// payloadContentLimit caps comment content embedded in event payloads.
const payloadContentLimit = 500

// Typed event helpers. The field set of each payload is published to
// customers and frozen; add new event types rather than new fields.

// CommentCreated fires a comment.created event for a new submission.
func (d *Dispatcher) CommentCreated(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
	return d.Fire(ctx, domain.EventCommentCreated, c.SiteID, map[string]any{
		"comment_id":        c.ID,
		"thread_id":         c.ThreadID,
		"thread_identifier": c.ThreadIdentifier,
		"author_name":       c.AuthorName,
		"content":           truncateRunes(c.Content, payloadContentLimit),
		"status":            string(c.Status),
		"created_at":        c.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// CommentApproved fires a comment.approved event after moderation.
func (d *Dispatcher) CommentApproved(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
	return d.Fire(ctx, domain.EventCommentApproved, c.SiteID, map[string]any{
		"comment_id":  c.ID,
		"author_name": c.AuthorName,
		"content":     truncateRunes(c.Content, payloadContentLimit),
	})
}

// CommentSpam fires a comment.spam event when a comment is marked spam.
func (d *Dispatcher) CommentSpam(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
	return d.Fire(ctx, domain.EventCommentSpam, c.SiteID, map[string]any{
		"comment_id":  c.ID,
		"author_name": c.AuthorName,
		"spam_score":  c.SpamScore,
	})
}

// CommentDeleted fires a comment.deleted event.
func (d *Dispatcher) CommentDeleted(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
	return d.Fire(ctx, domain.EventCommentDeleted, c.SiteID, map[string]any{
		"comment_id": c.ID,
		"deleted_by": c.DeletedBy,
	})
}

// ReportCreated fires a report.created event for a new visitor report.
func (d *Dispatcher) ReportCreated(ctx context.Context, r *domain.Report, c *domain.Comment) (*domain.WebhookEvent, error) {
	return d.Fire(ctx, domain.EventReportCreated, r.SiteID, map[string]any{
		"report_id":   r.ID,
		"comment_id":  r.CommentID,
		"reason":      r.Reason,
		"author_name": c.AuthorName,
	})
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
