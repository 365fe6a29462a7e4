package spam

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/quillboard/quillboard/internal/domain"
)

// Score contribution per rule action. Multiple matching rules add up; the
// subtotal is clamped to 1.0 by the caller.
const (
	scoreBlock      = 0.8
	scoreFlag       = 0.4
	scoreQuarantine = 0.6
)

// reasonPatternLen caps how much of an admin pattern is echoed in a reason.
const reasonPatternLen = 30

// ruleScore evaluates admin-configured rules against a submission and returns
// the rule subtotal (clamped to 1.0) with one reason per matching rule.
//
// Rules are expected in descending priority order. A rule whose pattern does
// not compile is logged and skipped; one broken rule never blocks the rest
// of the list from evaluating.
func ruleScore(rules []domain.ModerationRule, content, authorEmail string) (float64, []string) {
	var reasons []string
	score := 0.0
	contentLower := strings.ToLower(content)

	for _, rule := range rules {
		re, err := regexp.Compile(`(?i)` + rule.Pattern)
		if err != nil {
			log.Printf("[SpamEngine] Invalid regex in rule %s: %q (%v)", rule.ID, rule.Pattern, err)
			continue
		}

		matched := false
		switch rule.RuleType {
		case domain.RuleBannedWord:
			matched = re.MatchString(contentLower)
		case domain.RuleBannedEmail:
			if authorEmail != "" {
				matched = re.MatchString(authorEmail)
			}
		}
		if !matched {
			continue
		}

		switch rule.Action {
		case domain.ActionBlock:
			score += scoreBlock
			reasons = append(reasons, fmt.Sprintf("Matched block rule: %s", truncatePattern(rule.Pattern)))
		case domain.ActionFlag:
			score += scoreFlag
			reasons = append(reasons, fmt.Sprintf("Matched flag rule: %s", truncatePattern(rule.Pattern)))
		case domain.ActionQuarantine:
			score += scoreQuarantine
			reasons = append(reasons, fmt.Sprintf("Matched quarantine rule: %s", truncatePattern(rule.Pattern)))
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

func truncatePattern(p string) string {
	if len(p) > reasonPatternLen {
		return p[:reasonPatternLen]
	}
	return p
}
