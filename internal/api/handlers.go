package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quillboard/quillboard/internal/domain"
	"github.com/quillboard/quillboard/internal/pkg/httputil"
	"github.com/quillboard/quillboard/internal/repository/postgres"
	"github.com/quillboard/quillboard/internal/service/spam"
	"github.com/quillboard/quillboard/internal/service/webhook"
)

// CommentStore is the persistence the ingestion flow needs. Implemented by
// postgres.CommentRepo.
type CommentStore interface {
	Create(ctx context.Context, c *domain.Comment) error
	Get(ctx context.Context, id string) (*domain.Comment, error)
	UpdateStatus(ctx context.Context, id string, status domain.CommentStatus, deletedBy string) error
	CreateReport(ctx context.Context, r *domain.Report) error
}

// Handlers carries the dependencies for all HTTP endpoints.
type Handlers struct {
	spam       *spam.Service
	dispatcher *webhook.Dispatcher
	events     webhook.Repository
	comments   CommentStore
}

// NewHandlers wires the endpoint dependencies.
func NewHandlers(spamSvc *spam.Service, dispatcher *webhook.Dispatcher, events webhook.Repository, comments CommentStore) *Handlers {
	return &Handlers{spam: spamSvc, dispatcher: dispatcher, events: events, comments: comments}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "healthy"})
}

// createCommentRequest is the ingestion payload.
type createCommentRequest struct {
	SiteID           string `json:"site_id"`
	ThreadID         string `json:"thread_id"`
	ThreadIdentifier string `json:"thread_identifier"`
	AuthorName       string `json:"author_name"`
	AuthorEmail      string `json:"author_email"`
	Content          string `json:"content"`
}

// createCommentResponse returns the stored comment plus the scoring decision.
type createCommentResponse struct {
	Comment *domain.Comment `json:"comment"`
	Spam    spam.Result     `json:"spam"`
}

// CreateComment ingests a comment submission: score it, persist it with the
// suggested status, then fire comment.created. Scoring and webhook failures
// degrade, they never fail the submission.
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if req.SiteID == "" || req.ThreadID == "" || req.Content == "" || req.AuthorName == "" {
		httputil.BadRequest(w, "site_id, thread_id, author_name and content are required")
		return
	}

	ip := clientIP(r)
	result, err := h.spam.Check(r.Context(), spam.CheckInput{
		SiteID:      req.SiteID,
		Content:     req.Content,
		AuthorName:  req.AuthorName,
		AuthorEmail: req.AuthorEmail,
		AuthorIP:    ip,
	})
	status := result.SuggestedStatus()
	if err != nil {
		// Scoring is best-effort enrichment: hold the comment for moderation
		// rather than failing the submission.
		log.Printf("[API] Spam check failed, defaulting to pending: %v", err)
		result = spam.Result{Reasons: []string{"Spam check unavailable"}}
		status = domain.StatusPending
	}

	comment := &domain.Comment{
		SiteID:           req.SiteID,
		ThreadID:         req.ThreadID,
		ThreadIdentifier: req.ThreadIdentifier,
		AuthorName:       req.AuthorName,
		AuthorEmail:      req.AuthorEmail,
		AuthorIP:         ip,
		Content:          req.Content,
		Status:           status,
		SpamScore:        result.Score,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.comments.Create(r.Context(), comment); err != nil {
		log.Printf("[API] Create comment: %v", err)
		httputil.Internal(w)
		return
	}

	h.fire(r.Context(), func(ctx context.Context) (*domain.WebhookEvent, error) {
		return h.dispatcher.CommentCreated(ctx, comment)
	})

	httputil.Created(w, createCommentResponse{Comment: comment, Spam: result})
}

// ApproveComment publishes a held comment and fires comment.approved.
func (h *Handlers) ApproveComment(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, domain.StatusPublished, "", func(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
		return h.dispatcher.CommentApproved(ctx, c)
	})
}

// MarkSpam marks a comment as spam and fires comment.spam.
func (h *Handlers) MarkSpam(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, domain.StatusSpam, "", func(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
		return h.dispatcher.CommentSpam(ctx, c)
	})
}

// DeleteComment soft-deletes a comment and fires comment.deleted.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeletedBy string `json:"deleted_by"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.DeletedBy == "" {
		req.DeletedBy = "moderator"
	}
	h.moderate(w, r, domain.StatusDeleted, req.DeletedBy, func(ctx context.Context, c *domain.Comment) (*domain.WebhookEvent, error) {
		return h.dispatcher.CommentDeleted(ctx, c)
	})
}

// moderate applies a status change and fires the matching event.
func (h *Handlers) moderate(w http.ResponseWriter, r *http.Request, status domain.CommentStatus, deletedBy string,
	fire func(context.Context, *domain.Comment) (*domain.WebhookEvent, error)) {

	id := chi.URLParam(r, "id")
	if err := h.comments.UpdateStatus(r.Context(), id, status, deletedBy); err != nil {
		if errors.Is(err, postgres.ErrCommentNotFound) {
			httputil.NotFound(w, "comment not found")
			return
		}
		log.Printf("[API] Update comment %s: %v", id, err)
		httputil.Internal(w)
		return
	}

	comment, err := h.comments.Get(r.Context(), id)
	if err != nil {
		log.Printf("[API] Reload comment %s: %v", id, err)
		httputil.Internal(w)
		return
	}

	h.fire(r.Context(), func(ctx context.Context) (*domain.WebhookEvent, error) {
		return fire(ctx, comment)
	})
	httputil.OK(w, comment)
}

// createReportRequest is a visitor flag against a comment.
type createReportRequest struct {
	CommentID string `json:"comment_id"`
	Reason    string `json:"reason"`
}

// CreateReport records a report and fires report.created.
func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if req.CommentID == "" || req.Reason == "" {
		httputil.BadRequest(w, "comment_id and reason are required")
		return
	}

	comment, err := h.comments.Get(r.Context(), req.CommentID)
	if err != nil {
		if errors.Is(err, postgres.ErrCommentNotFound) {
			httputil.NotFound(w, "comment not found")
			return
		}
		log.Printf("[API] Load comment %s: %v", req.CommentID, err)
		httputil.Internal(w)
		return
	}

	report := &domain.Report{
		SiteID:    comment.SiteID,
		CommentID: comment.ID,
		Reason:    req.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.comments.CreateReport(r.Context(), report); err != nil {
		log.Printf("[API] Create report: %v", err)
		httputil.Internal(w)
		return
	}

	h.fire(r.Context(), func(ctx context.Context) (*domain.WebhookEvent, error) {
		return h.dispatcher.ReportCreated(ctx, report, comment)
	})
	httputil.Created(w, report)
}

// ListWebhookEvents returns a site's delivery log, newest first.
func (h *Handlers) ListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		httputil.BadRequest(w, "site_id is required")
		return
	}
	limit, offset := pagination(r)

	events, err := h.events.ListEvents(r.Context(), siteID, limit, offset)
	if err != nil {
		log.Printf("[API] List webhook events: %v", err)
		httputil.Internal(w)
		return
	}
	httputil.OK(w, map[string]any{"events": events, "count": len(events)})
}

// RedeliverWebhookEvent forces an immediate delivery attempt for a pending
// event. Terminal events are immutable; redelivering one is a conflict.
func (h *Handlers) RedeliverWebhookEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.dispatcher.Deliver(r.Context(), id)
	switch {
	case err == nil:
		httputil.Accepted(w, map[string]string{"event_id": id, "status": "attempted"})
	case errors.Is(err, webhook.ErrNotClaimable):
		httputil.Conflict(w, "event is terminal or already being attempted")
	case errors.Is(err, webhook.ErrEventNotFound):
		httputil.NotFound(w, "webhook event not found")
	default:
		log.Printf("[API] Redeliver %s: %v", id, err)
		httputil.Internal(w)
	}
}

// fire runs a webhook fire call and logs failures. Webhook problems must
// never surface on the request that triggered them.
func (h *Handlers) fire(ctx context.Context, f func(context.Context) (*domain.WebhookEvent, error)) {
	if _, err := f(ctx); err != nil {
		log.Printf("[API] Fire webhook event: %v", err)
	}
}

// clientIP extracts the remote IP. middleware.RealIP has already folded
// X-Forwarded-For / X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
