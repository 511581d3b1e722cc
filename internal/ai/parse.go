package ai

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Model output rarely arrives as clean JSON. The parser works down a
// ladder of strategies: span extraction, markdown stripping, structural
// repair, JSON decoding, then field-by-field regex scraping.

var (
	jsonSpanRe = regexp.MustCompile(`(?s)\{.*\}`)

	fieldQuotedRe = func(field string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)"` + field + `"\s*:\s*"([^"]+)"`)
	}
	fieldSingleQuotedRe = func(field string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)"` + field + `"\s*:\s*'([^']+)'`)
	}
	fieldBareRe = func(field string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)"?` + field + `"?\s*:\s*["']?([^,"'}]+)["']?`)
	}

	categoryRe  = regexp.MustCompile(`(?i)category["']?\s*:\s*["']?([A-Za-z]+)`)
	tagsRe      = regexp.MustCompile(`(?i)"tags"\s*:\s*\[([^\]]+)\]`)
	aliasesRe   = regexp.MustCompile(`(?i)"aliasSuggestions"\s*:\s*\[([^\]]+)\]`)
	listItemRe  = regexp.MustCompile(`["']([^,"']+)["']`)
	trailingObj = regexp.MustCompile(`,\s*}`)
	trailingArr = regexp.MustCompile(`,\s*]`)
)

// parseAnalysis turns a raw model response into a Result. It never
// fails; unusable responses yield the neutral default.
func parseAnalysis(raw string) *Result {
	if strings.TrimSpace(raw) == "" {
		return defaultResult()
	}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		jsonStr = strings.TrimSpace(raw)
	}
	if !strings.Contains(jsonStr, "{") {
		jsonStr = stripMarkdown(jsonStr)
	}
	jsonStr = repairJSON(jsonStr)

	var payload map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return parseManually(raw)
	}

	return &Result{
		Summary:          getText(payload, "summary", "No summary available"),
		Category:         getText(payload, "category", "Other"),
		Tags:             getList(payload, "tags"),
		SafetyScore:      getFloat(payload, "safetyScore", 0.8),
		IsSafe:           getBool(payload, "isSafe", true),
		SafetyReasons:    getList(payload, "safetyReasons"),
		AliasSuggestions: getList(payload, "aliasSuggestions"),
	}
}

// parseSafety decodes a standalone safety verdict.
func parseSafety(raw string) *SafetyResult {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		jsonStr = stripMarkdown(raw)
	}
	jsonStr = repairJSON(jsonStr)

	var payload map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return defaultSafetyResult()
	}

	return &SafetyResult{
		SafetyScore: clampScore(getFloat(payload, "safetyScore", 0.8)),
		IsSafe:      getBool(payload, "isSafe", true),
		Reasons:     sanitizeList(getList(payload, "reasons"), maxReasons),
	}
}

// parseAliasLines extracts alias candidates from a line-oriented
// response, slugging each line and keeping at most five.
func parseAliasLines(raw string) []string {
	var aliases []string
	for _, line := range strings.Split(raw, "\n") {
		cleaned := strings.ToLower(strings.TrimSpace(line))
		cleaned = keepAliasChars(cleaned)
		cleaned = strings.Trim(cleaned, "-")
		if len(cleaned) >= 3 && len(cleaned) <= 15 {
			aliases = append(aliases, cleaned)
		}
		if len(aliases) >= maxAliases {
			break
		}
	}
	return aliases
}

// extractJSON pulls the widest JSON object span out of the text.
func extractJSON(s string) string {
	if match := jsonSpanRe.FindString(s); match != "" {
		return match
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return ""
}

// stripMarkdown removes code fences and retries span extraction.
func stripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// repairJSON closes unbalanced braces and brackets and drops trailing
// commas, rescuing truncated model output.
func repairJSON(s string) string {
	repaired := strings.TrimSpace(s)
	if repaired == "" {
		return repaired
	}

	openBraces := strings.Count(repaired, "{")
	closeBraces := strings.Count(repaired, "}")
	openBrackets := strings.Count(repaired, "[")
	closeBrackets := strings.Count(repaired, "]")

	if openBraces > closeBraces {
		repaired = strings.TrimSuffix(repaired, ",")
		repaired += strings.Repeat("}", openBraces-closeBraces)
	}
	if openBrackets > closeBrackets {
		repaired += strings.Repeat("]", openBrackets-closeBrackets)
	}

	repaired = trailingObj.ReplaceAllString(repaired, "}")
	repaired = trailingArr.ReplaceAllString(repaired, "]")

	return repaired
}

// parseManually scrapes fields out of text that defeated the JSON decoder.
func parseManually(raw string) *Result {
	return &Result{
		Summary:          extractField(raw, "summary", "No summary available"),
		Category:         extractCategory(raw),
		Tags:             extractList(raw, tagsRe, "tag1", "tag2"),
		SafetyScore:      extractScore(raw),
		IsSafe:           true,
		AliasSuggestions: extractList(raw, aliasesRe, "alias1", "alias2"),
	}
}

// extractField tries progressively looser key/value patterns.
func extractField(text, field, fallback string) string {
	for _, re := range []*regexp.Regexp{fieldQuotedRe(field), fieldSingleQuotedRe(field), fieldBareRe(field)} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return fallback
}

func extractCategory(text string) string {
	if c := extractField(text, "category", ""); c != "" {
		return validateCategory(c)
	}
	if m := categoryRe.FindStringSubmatch(text); m != nil {
		return validateCategory(strings.TrimSpace(m[1]))
	}
	return "Other"
}

// extractList pulls quoted items out of an inline JSON array, dropping
// the named placeholder values.
func extractList(text string, arrayRe *regexp.Regexp, placeholders ...string) []string {
	m := arrayRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var items []string
	for _, im := range listItemRe.FindAllStringSubmatch(m[1], -1) {
		item := strings.TrimSpace(im[1])
		if item == "" || isPlaceholder(item, placeholders) {
			continue
		}
		items = append(items, item)
	}
	return items
}

func extractScore(text string) float64 {
	if s := extractField(text, "safetyScore", ""); s != "" {
		if score, err := strconv.ParseFloat(s, 64); err == nil {
			return clampScore(score)
		}
	}
	return 0.8
}

func isPlaceholder(item string, placeholders []string) bool {
	for _, p := range placeholders {
		if strings.EqualFold(item, p) {
			return true
		}
	}
	return false
}

// getText reads a string field from loosely typed JSON.
func getText(payload map[string]any, field, fallback string) string {
	if v, ok := payload[field].(string); ok && v != "" {
		return v
	}
	return fallback
}

// getFloat reads a numeric field, tolerating string-encoded numbers.
func getFloat(payload map[string]any, field string, fallback float64) float64 {
	switch v := payload[field].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getBool reads a boolean field.
func getBool(payload map[string]any, field string, fallback bool) bool {
	if v, ok := payload[field].(bool); ok {
		return v
	}
	return fallback
}

// getList reads an array field, keeping only its string members.
func getList(payload map[string]any, field string) []string {
	arr, ok := payload[field].([]any)
	if !ok {
		return nil
	}
	var items []string
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			items = append(items, s)
		}
	}
	return items
}
