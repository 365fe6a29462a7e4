package domain

import (
	"strings"
	"time"
)

// RuleType identifies what part of a submission a moderation rule inspects.
type RuleType string

const (
	RuleBannedWord  RuleType = "banned_word"
	RuleBannedEmail RuleType = "banned_email"
)

// RuleAction is the moderation outcome a matching rule asks for.
type RuleAction string

const (
	ActionBlock      RuleAction = "block"
	ActionFlag       RuleAction = "flag"
	ActionQuarantine RuleAction = "quarantine"
)

// ModerationRule is an admin-configured content rule. The pattern is an
// arbitrary regular expression supplied by a site administrator; callers
// must treat compilation failures as a per-rule condition, never a fatal one.
type ModerationRule struct {
	ID        string     `json:"id" db:"id"`
	SiteID    string     `json:"site_id" db:"site_id"`
	Pattern   string     `json:"pattern" db:"pattern"`
	RuleType  RuleType   `json:"rule_type" db:"rule_type"`
	Action    RuleAction `json:"action" db:"action"`
	Priority  int        `json:"priority" db:"priority"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// BanEntityType identifies what a ban entry matches against.
type BanEntityType string

const (
	BanEmail  BanEntityType = "email"
	BanDomain BanEntityType = "domain"
	BanIP     BanEntityType = "ip"
)

// BannedEntity is one entry on a site's (or the global) ban list.
// An empty SiteID means the ban applies to every site.
type BannedEntity struct {
	ID          string        `json:"id" db:"id"`
	SiteID      string        `json:"site_id,omitempty" db:"site_id"`
	EntityType  BanEntityType `json:"entity_type" db:"entity_type"`
	EntityValue string        `json:"entity_value" db:"entity_value"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty" db:"expires_at"`
	IsActive    bool          `json:"is_active" db:"is_active"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// EmailDomain returns the domain part of an email address, or "" if the
// address has no "@".
func EmailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return ""
}
