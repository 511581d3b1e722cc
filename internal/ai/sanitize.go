package ai

import (
	"regexp"
	"strings"

	"github.com/hopline/hopline/internal/model"
)

const (
	maxSummaryLength = 500
	maxTags          = 10
	maxReasons       = 5
	maxAliases       = 5
	minAliasLength   = 3
	maxAliasLength   = 20
)

var (
	controlCharsRe = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spacesRe       = regexp.MustCompile(`\s+`)
	aliasInvalidRe = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRunsRe   = regexp.MustCompile(`-+`)
)

// fuzzyCategoryTokens maps substring hints onto taxonomy entries, in
// priority order.
var fuzzyCategoryTokens = []struct {
	tokens   []string
	category string
}{
	{[]string{"tech"}, "Technology"},
	{[]string{"news", "journalism"}, "News"},
	{[]string{"entertain", "media", "video"}, "Entertainment"},
	{[]string{"educat", "learn", "course"}, "Education"},
	{[]string{"business", "corporate", "company"}, "Business"},
	{[]string{"social", "network"}, "Social"},
	{[]string{"shop", "store", "ecommerce"}, "Shopping"},
	{[]string{"health", "medical", "wellness"}, "Health"},
	{[]string{"travel", "tourism", "hotel"}, "Travel"},
	{[]string{"finance", "bank", "money", "invest"}, "Finance"},
	{[]string{"sport"}, "Sports"},
}

// sanitizeResult normalizes a parsed result in place.
func sanitizeResult(r *Result) {
	r.Summary = sanitizeText(r.Summary)
	r.Category = validateCategory(r.Category)
	r.Tags = sanitizeTags(r.Tags)
	r.SafetyScore = clampScore(r.SafetyScore)
	r.SafetyReasons = sanitizeList(r.SafetyReasons, maxReasons)
	r.AliasSuggestions = sanitizeAliases(r.AliasSuggestions)
}

// validateCategory maps arbitrary model output onto the closed taxonomy.
func validateCategory(category string) string {
	normalized := strings.TrimSpace(category)
	normalized = strings.Trim(normalized, `"'`)
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return "Other"
	}

	for _, valid := range model.Categories {
		if strings.EqualFold(valid, normalized) {
			return valid
		}
	}

	lower := strings.ToLower(normalized)
	for _, fuzzy := range fuzzyCategoryTokens {
		for _, token := range fuzzy.tokens {
			if strings.Contains(lower, token) {
				return fuzzy.category
			}
		}
	}

	return "Other"
}

// clampScore bounds a safety score to [0, 1].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// sanitizeText strips control characters, rejects placeholder filler
// and caps the length. An unusable value becomes "".
func sanitizeText(text string) string {
	cleaned := strings.TrimSpace(controlCharsRe.ReplaceAllString(text, ""))
	if strings.EqualFold(cleaned, "Brief description") ||
		strings.EqualFold(cleaned, "No summary available") ||
		len(cleaned) < 10 {
		return ""
	}
	if len(cleaned) > maxSummaryLength {
		cleaned = cleaned[:maxSummaryLength]
	}
	return cleaned
}

// sanitizeTags cleans each tag and caps the list.
func sanitizeTags(tags []string) []string {
	return sanitizeList(tags, maxTags)
}

// sanitizeList strips control characters from short list entries and
// caps the list. Entries are not subject to the summary's minimum
// length; a three-letter tag is fine.
func sanitizeList(items []string, max int) []string {
	var out []string
	for _, item := range items {
		cleaned := strings.TrimSpace(controlCharsRe.ReplaceAllString(item, ""))
		if cleaned == "" {
			continue
		}
		if len(cleaned) > maxSummaryLength {
			cleaned = cleaned[:maxSummaryLength]
		}
		out = append(out, cleaned)
		if len(out) >= max {
			break
		}
	}
	return out
}

// sanitizeAliases slugs each candidate into a usable alias: lowercase,
// hyphenated, deduplicated, within length bounds.
func sanitizeAliases(aliases []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, alias := range aliases {
		cleaned := strings.ToLower(strings.TrimSpace(alias))
		cleaned = spacesRe.ReplaceAllString(cleaned, "-")
		cleaned = aliasInvalidRe.ReplaceAllString(cleaned, "")
		cleaned = hyphenRunsRe.ReplaceAllString(cleaned, "-")
		cleaned = strings.Trim(cleaned, "-")

		if len(cleaned) < minAliasLength || len(cleaned) > maxAliasLength || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
		if len(out) >= maxAliases {
			break
		}
	}
	return out
}

// keepAliasChars drops everything outside the alias alphabet.
func keepAliasChars(s string) string {
	return aliasInvalidRe.ReplaceAllString(s, "")
}
