package service

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCSVURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{
			name:  "header_skipped",
			input: "url\nhttps://example.com\nhttps://example.org\n",
			want:  []string{"https://example.com", "https://example.org"},
		},
		{
			name:  "original_url_header",
			input: "originalUrl,notes\nhttps://example.com,first\n",
			want:  []string{"https://example.com"},
		},
		{
			name:  "no_header",
			input: "https://example.com\nhttps://example.org\n",
			want:  []string{"https://example.com", "https://example.org"},
		},
		{
			name:  "quoted_first_column",
			input: "\"https://example.com/a,b\",ignored\n",
			want:  []string{"https://example.com/a,b"},
		},
		{
			name:  "protocol_relative",
			input: "//cdn.example.com/asset\n",
			want:  []string{"http://cdn.example.com/asset"},
		},
		{
			name:  "bare_domain_and_www",
			input: "example.com\nwww.example.org\n",
			want:  []string{"https://example.com", "https://www.example.org"},
		},
		{
			name:  "blank_lines_dropped",
			input: "https://example.com\n\n   \nhttps://example.org\n",
			want:  []string{"https://example.com", "https://example.org"},
		},
		{
			name:    "empty_file",
			input:   "",
			wantErr: ErrCSVEmpty,
		},
		{
			name:    "header_only",
			input:   "url\n",
			wantErr: ErrCSVEmpty,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCSVURLs(strings.NewReader(test.input))
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("ParseCSVURLs error = %v, want %v", err, test.wantErr)
			}
			if len(got) != len(test.want) {
				t.Fatalf("ParseCSVURLs = %v, want %v", got, test.want)
			}
			for i := range got {
				if got[i] != test.want[i] {
					t.Errorf("url[%d] = %q, want %q", i, got[i], test.want[i])
				}
			}
		})
	}
}

func TestParseCSVURLsRowLimit(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := 0; i <= MaxCSVRows; i++ {
		sb.WriteString("https://example.com/page\n")
	}

	if _, err := ParseCSVURLs(strings.NewReader(sb.String())); !errors.Is(err, ErrCSVTooMany) {
		t.Errorf("ParseCSVURLs over the row limit = %v, want ErrCSVTooMany", err)
	}
}

func TestParseCSVURLsSizeLimit(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", MaxCSVSize/2)
	input := huge + "\n" + huge + "\n" + huge + "\n"

	if _, err := ParseCSVURLs(strings.NewReader(input)); !errors.Is(err, ErrCSVTooLarge) {
		t.Errorf("ParseCSVURLs over the size limit = %v, want ErrCSVTooLarge", err)
	}
}
