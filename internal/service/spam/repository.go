package spam

import (
	"context"
	"time"

	"github.com/quillboard/quillboard/internal/domain"
)

// Repository defines the data access contract for the scoring engine.
// Implementations read current rule and ban state per call; no snapshot is
// cached between checks.
type Repository interface {
	// ActiveRules returns the active moderation rules for a site, ordered
	// by priority descending.
	ActiveRules(ctx context.Context, siteID string) ([]domain.ModerationRule, error)

	// FindActiveBan reports whether the email (exact or by domain) or the IP
	// is covered by an active, unexpired ban scoped to the site or global.
	// Either identifier may be empty.
	FindActiveBan(ctx context.Context, siteID, email, ip string, now time.Time) (bool, error)
}
