package domain

import "time"

// EventType enumerates the webhook events published to customer endpoints.
// These values are part of the public integration surface and must not change.
type EventType string

const (
	EventCommentCreated  EventType = "comment.created"
	EventCommentApproved EventType = "comment.approved"
	EventCommentSpam     EventType = "comment.spam"
	EventCommentDeleted  EventType = "comment.deleted"
	EventReportCreated   EventType = "report.created"
)

// EventStatus is the delivery state of a webhook event.
// Transitions: pending -> pending (retry), pending -> delivered,
// pending -> failed. Delivered and failed are terminal.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventDelivered EventStatus = "delivered"
	EventFailed    EventStatus = "failed"
)

// WebhookEvent is the durable record of one notification to a site's
// configured endpoint. Rows are never deleted; they are the audit trail
// of what was sent, when, and how the endpoint responded.
type WebhookEvent struct {
	ID             string         `json:"id" db:"id"`
	SiteID         string         `json:"site_id" db:"site_id"`
	EventType      EventType      `json:"event_type" db:"event_type"`
	Payload        map[string]any `json:"payload" db:"payload"`
	Status         EventStatus    `json:"status" db:"status"`
	Attempts       int            `json:"attempts" db:"attempts"`
	LastAttemptAt  *time.Time     `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextRetryAt    *time.Time     `json:"next_retry_at,omitempty" db:"next_retry_at"`
	ClaimedAt      *time.Time     `json:"-" db:"claimed_at"`
	ResponseStatus *int           `json:"response_status,omitempty" db:"response_status"`
	ResponseBody   string         `json:"response_body,omitempty" db:"response_body"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Terminal reports whether the event has reached a final delivery state.
func (e *WebhookEvent) Terminal() bool {
	return e.Status == EventDelivered || e.Status == EventFailed
}

// WebhookEndpoint is a site's outbound notification target. The secret, when
// set, keys the HMAC signature on every delivery to that site. Endpoints are
// read fresh on every fire/delivery so secret rotation takes effect
// immediately.
type WebhookEndpoint struct {
	SiteID string `json:"site_id" db:"site_id"`
	URL    string `json:"url" db:"webhook_url"`
	Secret string `json:"-" db:"webhook_secret"`
}
