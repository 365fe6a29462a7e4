package domain

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	StatusPublished CommentStatus = "published"
	StatusPending   CommentStatus = "pending"
	StatusSpam      CommentStatus = "spam"
	StatusDeleted   CommentStatus = "deleted"
)

// Comment is a visitor-submitted comment on a site thread.
type Comment struct {
	ID               string        `json:"id" db:"id"`
	SiteID           string        `json:"site_id" db:"site_id"`
	ThreadID         string        `json:"thread_id" db:"thread_id"`
	ThreadIdentifier string        `json:"thread_identifier,omitempty" db:"thread_identifier"`
	AuthorName       string        `json:"author_name" db:"author_name"`
	AuthorEmail      string        `json:"author_email,omitempty" db:"author_email"`
	AuthorIP         string        `json:"-" db:"author_ip"`
	Content          string        `json:"content" db:"content"`
	Status           CommentStatus `json:"status" db:"status"`
	SpamScore        float64       `json:"spam_score" db:"spam_score"`
	DeletedBy        string        `json:"deleted_by,omitempty" db:"deleted_by"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
}

// Report is a visitor flag against a published comment.
type Report struct {
	ID        string    `json:"id" db:"id"`
	SiteID    string    `json:"site_id" db:"site_id"`
	CommentID string    `json:"comment_id" db:"comment_id"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
