// Package metadata fetches and extracts page metadata for destination URLs.
package metadata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultTimeout bounds a single metadata fetch.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodySize caps how much HTML is read.
	DefaultMaxBodySize = 1 << 20 // 1 MB
	// maxTextContent caps the extracted visible text used for analysis.
	maxTextContent = 5000

	userAgent = "Mozilla/5.0 (compatible; HoplineBot/1.0; +https://hopline.dev/bot)"
)

// PageMeta is the metadata extracted from a destination page. A fetch
// never fails outright; at minimum the URL itself is returned.
type PageMeta struct {
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	FaviconURL   string     `json:"favicon_url,omitempty"`
	SiteName     string     `json:"site_name,omitempty"`
	Type         string     `json:"type,omitempty"`
	Author       string     `json:"author,omitempty"`
	Keywords     string     `json:"keywords,omitempty"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
	TextContent  string     `json:"-"`
	FetchedAt    *time.Time `json:"fetched_at,omitempty"`
}

// Fetcher retrieves destination pages and extracts their metadata.
type Fetcher struct {
	http    *http.Client
	maxBody int64
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. Zero values select the defaults.
func NewFetcher(timeout time.Duration, maxBody int64, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	return &Fetcher{
		http:    &http.Client{Timeout: timeout},
		maxBody: maxBody,
		logger:  logger,
	}
}

// Fetch downloads the page and extracts metadata. Failures are logged
// and degrade to a PageMeta carrying only the URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *PageMeta {
	meta := &PageMeta{URL: rawURL}

	base, err := url.Parse(rawURL)
	if err != nil {
		return meta
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return meta
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.http.Do(req)
	if err != nil {
		f.logger.Debug("metadata fetch failed", "url", rawURL, "error", err)
		return meta
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Debug("metadata fetch rejected", "url", rawURL, "status", resp.StatusCode)
		return meta
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return meta
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		f.logger.Debug("metadata parse failed", "url", rawURL, "error", err)
		return meta
	}

	// The redirected final URL is the base for relative references.
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	f.extract(doc, base, meta)

	now := time.Now().UTC()
	meta.FetchedAt = &now
	return meta
}

// page is the raw material gathered in one DOM walk.
type page struct {
	metaTags map[string]string
	title    string
	favicons []string
	canon    string
	text     strings.Builder
}

// extract walks the parsed document once and fills meta by priority.
func (f *Fetcher) extract(doc *html.Node, base *url.URL, meta *PageMeta) {
	p := &page{metaTags: make(map[string]string)}
	walk(doc, p)

	meta.Title = firstOf(p.metaTags, "og:title", "twitter:title")
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(p.title)
	}

	meta.Description = firstOf(p.metaTags, "og:description", "twitter:description", "description")
	meta.ImageURL = resolveRef(base, firstOf(p.metaTags, "og:image", "twitter:image"))
	meta.SiteName = p.metaTags["og:site_name"]
	meta.Type = p.metaTags["og:type"]
	meta.Author = p.metaTags["author"]
	meta.Keywords = p.metaTags["keywords"]
	meta.CanonicalURL = resolveRef(base, p.canon)

	if len(p.favicons) > 0 {
		meta.FaviconURL = resolveRef(base, p.favicons[0])
	} else {
		meta.FaviconURL = resolveRef(base, "/favicon.ico")
	}

	meta.TextContent = collapseSpace(p.text.String(), maxTextContent)
}

// walk visits every node, collecting meta tags, link rels, the title
// and visible text. Script, style and noscript subtrees are skipped.
func walk(n *html.Node, p *page) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				p.title = n.FirstChild.Data
			}
		case "meta":
			name := attr(n, "property")
			if name == "" {
				name = attr(n, "name")
			}
			if content := attr(n, "content"); name != "" && content != "" {
				if _, seen := p.metaTags[name]; !seen {
					p.metaTags[name] = strings.TrimSpace(content)
				}
			}
		case "link":
			rel := strings.ToLower(attr(n, "rel"))
			href := attr(n, "href")
			if href == "" {
				break
			}
			switch {
			case rel == "canonical":
				p.canon = href
			case strings.Contains(rel, "icon"):
				p.favicons = append(p.favicons, href)
			}
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			p.text.WriteString(text)
			p.text.WriteByte(' ')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, p)
	}
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// firstOf returns the first non-empty value among the listed keys.
func firstOf(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := tags[key]; v != "" {
			return v
		}
	}
	return ""
}

// resolveRef resolves a possibly relative reference against the page URL.
func resolveRef(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// collapseSpace squeezes whitespace runs and truncates to max runes.
func collapseSpace(s string, max int) string {
	fields := strings.Fields(s)
	joined := strings.Join(fields, " ")
	if len(joined) > max {
		joined = joined[:max]
	}
	return joined
}
