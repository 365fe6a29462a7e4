package spam

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Heuristic weights. These are calibrated against live traffic; the tiers
// for link count are mutually exclusive, everything else adds independently.
const (
	weightManyLinks      = 0.5  // 5+ links
	weightSomeLinks      = 0.2  // 2-4 links
	weightExcessiveCaps  = 0.3  // >70% caps in content longer than 20 chars
	weightRepeatedChars  = 0.2  // a run of 6+ identical characters
	weightShortContent   = 0.3  // under 5 characters
	weightPhonePattern   = 0.15 // phone-number-shaped substring
	weightEmailInBody    = 0.1  // email address left in the comment body
	weightLongAuthorName = 0.1  // author name over 60 characters
)

// repeatedRunLength is the minimum run of identical consecutive characters
// that counts as a spam signal.
const repeatedRunLength = 6

var (
	urlPattern   = regexp.MustCompile(`(?i)https?://`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// heuristicScore computes the content-heuristic subtotal and its reasons.
// The subtotal is clamped to 1.0 before the caller applies its weight.
func heuristicScore(content, authorName string) (float64, []string) {
	var reasons []string
	score := 0.0

	urls := countURLs(content)
	if urls >= 5 {
		score += weightManyLinks
		reasons = append(reasons, fmt.Sprintf("High link count (%d)", urls))
	} else if urls >= 2 {
		score += weightSomeLinks
		reasons = append(reasons, fmt.Sprintf("Multiple links (%d)", urls))
	}

	contentLen := utf8.RuneCountInString(content)

	if caps := capsRatio(content); caps > 0.7 && contentLen > 20 {
		score += weightExcessiveCaps
		reasons = append(reasons, fmt.Sprintf("Excessive caps (%d%%)", int(caps*100)))
	}

	if hasRepeatedRun(content, repeatedRunLength) {
		score += weightRepeatedChars
		reasons = append(reasons, "Repeated characters")
	}

	if contentLen < 5 {
		score += weightShortContent
		reasons = append(reasons, "Suspiciously short content")
	}

	// Phone numbers in comments are often spam
	if phonePattern.MatchString(content) {
		score += weightPhonePattern
		reasons = append(reasons, "Contains phone number")
	}

	// Email address left in comment body is a spam signal
	if emailPattern.MatchString(content) {
		score += weightEmailInBody
		reasons = append(reasons, "Contains email address in body")
	}

	// Very long author names are sometimes bots
	if utf8.RuneCountInString(authorName) > 60 {
		score += weightLongAuthorName
		reasons = append(reasons, "Unusually long author name")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

// countURLs counts http:// and https:// occurrences in the text.
func countURLs(text string) int {
	return len(urlPattern.FindAllStringIndex(text, -1))
}

// capsRatio returns the fraction of letters that are upper case.
// Non-letter characters are ignored; all-symbol content scores 0.
func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// hasRepeatedRun reports whether text contains n or more identical
// consecutive characters. RE2 has no backreferences, so this is a rune scan.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}
