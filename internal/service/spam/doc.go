// Package spam implements the comment spam-scoring engine.
//
// Every inbound comment is scored 0.0-1.0 by blending three signal sources:
//
//  1. Ban list lookup (email, email domain, IP) — a match short-circuits
//     everything else with a definitive score of 1.0.
//  2. Heuristic signals (link count, caps ratio, repeated characters,
//     phone/email patterns, content and author-name length).
//  3. Admin-configured moderation rules loaded per site, evaluated in
//     priority order with per-rule fault isolation: a rule with a broken
//     regex is skipped and logged, never fatal.
//
// The heuristic and rule subtotals are independently clamped to 1.0 and each
// weighted at 50% of the final score. A score at or above the threshold
// (default 0.7) marks the comment as spam.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports net/http
// or database/sql directly; scoring over a given rule snapshot is
// side-effect free and safe for unbounded concurrency.
package spam
