package spam

import "github.com/quillboard/quillboard/internal/domain"

const (
	// DefaultThreshold is the score at or above which a comment is spam,
	// absent a per-deployment override.
	DefaultThreshold = 0.7

	// BorderlineThreshold is the score at or above which a non-spam comment
	// is held for moderation instead of being published.
	BorderlineThreshold = 0.4
)

// CheckInput is one comment submission to score. It is built per request and
// never persisted by this package.
type CheckInput struct {
	SiteID      string
	Content     string
	AuthorName  string
	AuthorEmail string // optional
	AuthorIP    string // optional
}

// Result is the scoring decision for a single submission. Reasons are in
// detection order and suitable for display in a moderation queue.
type Result struct {
	Score    float64  `json:"score"`
	IsSpam   bool     `json:"is_spam"`
	IsBanned bool     `json:"is_banned"`
	Reasons  []string `json:"reasons"`
}

// SuggestedStatus maps the decision to the comment status the caller should
// persist: banned or spam-scored content goes to "spam", borderline scores
// go to the moderation queue, everything else publishes immediately.
func (r Result) SuggestedStatus() domain.CommentStatus {
	switch {
	case r.IsBanned:
		return domain.StatusSpam
	case r.IsSpam:
		return domain.StatusSpam
	case r.Score >= BorderlineThreshold:
		return domain.StatusPending
	default:
		return domain.StatusPublished
	}
}
