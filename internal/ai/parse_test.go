package ai

import (
	"reflect"
	"testing"
)

func TestParseAnalysisCleanJSON(t *testing.T) {
	t.Parallel()

	raw := `{"summary":"A code hosting platform for developers.","category":"Technology","tags":["git","code"],"safetyScore":0.97,"isSafe":true,"safetyReasons":[],"aliasSuggestions":["code-hub","git-home"]}`

	r := parseAnalysis(raw)
	if r.Summary != "A code hosting platform for developers." {
		t.Errorf("Summary = %q", r.Summary)
	}
	if r.Category != "Technology" {
		t.Errorf("Category = %q, want Technology", r.Category)
	}
	if !reflect.DeepEqual(r.Tags, []string{"git", "code"}) {
		t.Errorf("Tags = %v", r.Tags)
	}
	if r.SafetyScore != 0.97 || !r.IsSafe {
		t.Errorf("SafetyScore/IsSafe = %v/%v", r.SafetyScore, r.IsSafe)
	}
	if !reflect.DeepEqual(r.AliasSuggestions, []string{"code-hub", "git-home"}) {
		t.Errorf("AliasSuggestions = %v", r.AliasSuggestions)
	}
}

func TestParseAnalysisSurroundingProse(t *testing.T) {
	t.Parallel()

	raw := `Sure! Here is the analysis you asked for:
{"summary":"A daily news aggregator with curated stories.","category":"News","tags":["headlines"],"safetyScore":0.9,"isSafe":true}
Hope that helps!`

	r := parseAnalysis(raw)
	if r.Category != "News" {
		t.Errorf("Category = %q, want News", r.Category)
	}
	if r.Summary == "" {
		t.Error("Summary should survive prose wrapping")
	}
}

func TestParseAnalysisMarkdownFences(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"summary\":\"An online store selling handmade goods.\",\"category\":\"Shopping\",\"safetyScore\":0.85,\"isSafe\":true}\n```"

	r := parseAnalysis(raw)
	if r.Category != "Shopping" {
		t.Errorf("Category = %q, want Shopping", r.Category)
	}
}

func TestParseAnalysisTruncatedJSON(t *testing.T) {
	t.Parallel()

	// Cut off mid-object, as happens when num_predict runs out.
	raw := `{"summary":"A streaming service for independent films.","category":"Entertainment","tags":["movies","streaming"`

	r := parseAnalysis(raw)
	if r.Category != "Entertainment" {
		t.Errorf("Category = %q, want Entertainment from repaired JSON", r.Category)
	}
	if r.Summary != "A streaming service for independent films." {
		t.Errorf("Summary = %q", r.Summary)
	}
}

func TestParseAnalysisTrailingCommas(t *testing.T) {
	t.Parallel()

	raw := `{"summary":"University lecture archive with free courses.","category":"Education","tags":["lectures","courses",],"safetyScore":0.92,"isSafe":true,}`

	r := parseAnalysis(raw)
	if r.Category != "Education" {
		t.Errorf("Category = %q, want Education", r.Category)
	}
	if !reflect.DeepEqual(r.Tags, []string{"lectures", "courses"}) {
		t.Errorf("Tags = %v", r.Tags)
	}
}

func TestParseAnalysisManualFallback(t *testing.T) {
	t.Parallel()

	// Unbalanced quoting defeats the decoder even after repair; the
	// field scraper should still recover the essentials.
	raw := `The analysis: "summary": "A personal finance tracker with budgeting tools", "category": "Finance" and "tags": ["budget", "money"] with "safetyScore": 0.88 — note the "unmatched quote`

	r := parseAnalysis(raw)
	if r.Category != "Finance" {
		t.Errorf("Category = %q, want Finance", r.Category)
	}
	if r.Summary != "A personal finance tracker with budgeting tools" {
		t.Errorf("Summary = %q", r.Summary)
	}
	if !reflect.DeepEqual(r.Tags, []string{"budget", "money"}) {
		t.Errorf("Tags = %v", r.Tags)
	}
	if r.SafetyScore != 0.88 {
		t.Errorf("SafetyScore = %v, want 0.88", r.SafetyScore)
	}
}

func TestParseAnalysisEmptyResponse(t *testing.T) {
	t.Parallel()

	r := parseAnalysis("   ")
	if r.Category != "Other" || !r.IsSafe || r.SafetyScore != 0.8 {
		t.Errorf("empty response should yield the default result, got %+v", r)
	}
}

func TestParseAnalysisStringEncodedScore(t *testing.T) {
	t.Parallel()

	raw := `{"summary":"A travel booking site for budget flights.","category":"Travel","safetyScore":"0.75","isSafe":true}`

	r := parseAnalysis(raw)
	if r.SafetyScore != 0.75 {
		t.Errorf("SafetyScore = %v, want 0.75 from string field", r.SafetyScore)
	}
}

func TestParseSafety(t *testing.T) {
	t.Parallel()

	raw := `{"safetyScore":0.2,"isSafe":false,"reasons":["misspelled domain","credential form"]}`

	s := parseSafety(raw)
	if s.SafetyScore != 0.2 || s.IsSafe {
		t.Errorf("parseSafety = %+v, want unsafe 0.2", s)
	}
	if len(s.Reasons) != 2 {
		t.Errorf("Reasons = %v, want 2 entries", s.Reasons)
	}

	// Garbage input yields the neutral default.
	s = parseSafety("no json here at all")
	if s.SafetyScore != 0.5 || !s.IsSafe {
		t.Errorf("parseSafety(garbage) = %+v, want default", s)
	}
}

func TestParseAliasLines(t *testing.T) {
	t.Parallel()

	raw := "code-hub\nGit Home!\n- my-links -\nab\nthis-alias-is-way-too-long-to-keep\nextra1\nextra2\nextra3\nextra4"

	got := parseAliasLines(raw)
	want := []string{"code-hub", "githome", "my-links", "extra1", "extra2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseAliasLines = %v, want %v", got, want)
	}
}

func TestRepairJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"balanced untouched", `{"a":1}`, `{"a":1}`},
		{"missing brace", `{"a":1`, `{"a":1}`},
		{"missing bracket and brace", `{"a":["x"`, `{"a":["x"]}`},
		{"trailing comma object", `{"a":1,}`, `{"a":1}`},
		{"trailing comma array", `{"a":[1,]}`, `{"a":[1]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := repairJSON(tt.input); got != tt.want {
				t.Errorf("repairJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
