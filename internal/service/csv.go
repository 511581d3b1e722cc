package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// MaxCSVSize caps an uploaded CSV body.
	MaxCSVSize = 1 << 20

	// MaxCSVRows caps the URLs accepted from one upload.
	MaxCSVRows = 100
)

// CSV upload errors.
var (
	ErrCSVTooLarge = errors.New("csv file exceeds size limit")
	ErrCSVTooMany  = fmt.Errorf("csv file exceeds %d rows", MaxCSVRows)
	ErrCSVEmpty    = errors.New("csv file contains no valid URLs")
)

// ParseCSVURLs extracts destination URLs from an uploaded CSV. The
// first column of each row is the URL; an optional header row named
// "url" or "originalUrl" is skipped. Rows that normalize to an empty
// value are dropped.
func ParseCSVURLs(r io.Reader) ([]string, error) {
	limited := io.LimitReader(r, MaxCSVSize+1)

	var (
		urls  []string
		read  int64
		first = true
	)

	scanner := bufio.NewScanner(limited)
	scanner.Buffer(make([]byte, 64*1024), MaxCSVSize+2)
	for scanner.Scan() {
		line := scanner.Text()
		read += int64(len(line)) + 1
		if read > MaxCSVSize {
			return nil, ErrCSVTooLarge
		}

		value := firstCSVColumn(line)
		if first {
			first = false
			if isCSVHeader(value) {
				continue
			}
		}

		value = normalizeCSVURL(value)
		if value == "" {
			continue
		}

		if len(urls) >= MaxCSVRows {
			return nil, ErrCSVTooMany
		}
		urls = append(urls, value)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrCSVTooLarge
		}
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(urls) == 0 {
		return nil, ErrCSVEmpty
	}
	return urls, nil
}

// firstCSVColumn takes the text before the first unquoted comma and
// strips surrounding quotes.
func firstCSVColumn(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, `"`) {
		// Quoted field: up to the closing quote.
		if end := strings.Index(line[1:], `"`); end >= 0 {
			return line[1 : end+1]
		}
		return strings.TrimPrefix(line, `"`)
	}
	if idx := strings.IndexByte(line, ','); idx >= 0 {
		line = line[:idx]
	}
	return strings.Trim(strings.TrimSpace(line), `"'`)
}

// isCSVHeader recognizes the optional header row.
func isCSVHeader(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "url", "originalurl", "original_url":
		return true
	}
	return false
}

// normalizeCSVURL fills in a missing protocol so bare domains survive
// validation: "//host" becomes http, "host" and "www.host" become
// https.
func normalizeCSVURL(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		return value
	case strings.HasPrefix(value, "//"):
		return "http:" + value
	default:
		return "https://" + value
	}
}
