package spam

import (
	"context"
	"fmt"
	"time"

	"github.com/quillboard/quillboard/internal/domain"
	"github.com/quillboard/quillboard/internal/pkg/logger"
)

// Subtotal weights. Heuristics and admin rules each contribute half of the
// final score; both subtotals are clamped before weighting.
const (
	heuristicWeight = 0.5
	ruleWeight      = 0.5
)

// Service scores comment submissions. It is safe for concurrent use: every
// check reads its own rule/ban snapshot through the repository and shares no
// mutable state with other checks.
type Service struct {
	repo      Repository
	threshold float64
	now       func() time.Time
}

// NewService creates a scoring service backed by the given repository.
// A threshold of 0 or less falls back to DefaultThreshold.
func NewService(repo Repository, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{repo: repo, threshold: threshold, now: time.Now}
}

// Check scores one submission. A ban match is definitive and skips scoring;
// otherwise the heuristic and rule subtotals are combined per Evaluate.
func (s *Service) Check(ctx context.Context, in CheckInput) (Result, error) {
	banned, err := s.repo.FindActiveBan(ctx, in.SiteID, in.AuthorEmail, in.AuthorIP, s.now().UTC())
	if err != nil {
		return Result{}, fmt.Errorf("ban lookup: %w", err)
	}
	if banned {
		return Result{Score: 1.0, IsSpam: true, IsBanned: true, Reasons: []string{"Entity is banned"}}, nil
	}

	rules, err := s.repo.ActiveRules(ctx, in.SiteID)
	if err != nil {
		return Result{}, fmt.Errorf("load rules: %w", err)
	}

	res := Evaluate(in, rules, s.threshold)
	logger.Debug("spam check",
		"site_id", in.SiteID,
		"author_email", in.AuthorEmail,
		"score", res.Score,
		"is_spam", res.IsSpam,
		"reasons", res.Reasons,
	)
	return res, nil
}

// Threshold returns the spam threshold this service applies.
func (s *Service) Threshold() float64 { return s.threshold }

// Evaluate is the pure scoring function over a rule snapshot. Given identical
// inputs it always produces identical output, which is what makes the engine
// testable without a database.
func Evaluate(in CheckInput, rules []domain.ModerationRule, threshold float64) Result {
	hScore, hReasons := heuristicScore(in.Content, in.AuthorName)
	rScore, rReasons := ruleScore(rules, in.Content, in.AuthorEmail)

	score := hScore*heuristicWeight + rScore*ruleWeight
	if score > 1.0 {
		score = 1.0
	}

	reasons := make([]string, 0, len(hReasons)+len(rReasons))
	reasons = append(reasons, hReasons...)
	reasons = append(reasons, rReasons...)

	return Result{
		Score:   score,
		IsSpam:  score >= threshold,
		Reasons: reasons,
	}
}
