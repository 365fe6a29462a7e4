package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/quillboard/quillboard/internal/domain"
)

// ModerationRepo implements spam.Repository against PostgreSQL.
type ModerationRepo struct{ db *sql.DB }

// NewModerationRepo creates a Postgres-backed rule/ban repository.
func NewModerationRepo(db *sql.DB) *ModerationRepo { return &ModerationRepo{db: db} }

func (r *ModerationRepo) ActiveRules(ctx context.Context, siteID string) ([]domain.ModerationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, site_id, pattern, rule_type, action, priority, is_active, created_at
		FROM moderation_rules
		WHERE site_id = $1
		  AND is_active = true
		  AND rule_type IN ('banned_word', 'banned_email')
		ORDER BY priority DESC
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.ModerationRule
	for rows.Next() {
		var rule domain.ModerationRule
		if err := rows.Scan(&rule.ID, &rule.SiteID, &rule.Pattern, &rule.RuleType,
			&rule.Action, &rule.Priority, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// FindActiveBan checks the ban list for the email (exact or by domain) or
// the IP. Entries scoped to the site or global (NULL site_id) are eligible;
// inactive and expired entries are ignored. Conditions are built only for
// the identifiers present, matching the index-friendly EXISTS shape.
func (r *ModerationRepo) FindActiveBan(ctx context.Context, siteID, email, ip string, now time.Time) (bool, error) {
	var conds []string
	args := []any{siteID, now}

	if email != "" {
		args = append(args, email)
		conds = append(conds, fmt.Sprintf("(entity_type = 'email' AND entity_value = $%d)", len(args)))
		if d := domain.EmailDomain(email); d != "" {
			args = append(args, d)
			conds = append(conds, fmt.Sprintf("(entity_type = 'domain' AND entity_value = $%d)", len(args)))
		}
	}
	if ip != "" {
		args = append(args, ip)
		conds = append(conds, fmt.Sprintf("(entity_type = 'ip' AND entity_value = $%d)", len(args)))
	}
	if len(conds) == 0 {
		return false, nil
	}

	query := `
		SELECT EXISTS(
			SELECT 1 FROM banned_entities
			WHERE is_active = true
			  AND (site_id = $1 OR site_id IS NULL)
			  AND (expires_at IS NULL OR expires_at > $2)
			  AND (` + strings.Join(conds, " OR ") + `)
		)`

	var banned bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&banned); err != nil {
		return false, fmt.Errorf("ban lookup: %w", err)
	}
	return banned, nil
}
