// Package useragent classifies client user agent strings for analytics.
package useragent

import (
	"strings"

	"github.com/ua-parser/uap-go/uaparser"

	"github.com/hopline/hopline/internal/model"
)

// Info is the parsed classification of a user agent string.
type Info struct {
	BrowserName    string
	BrowserVersion string
	OSName         string
	OSVersion      string
	DeviceType     model.DeviceType
}

// Parser wraps the uap-go regex parser with heuristic fallbacks for
// agents the regex set does not know.
type Parser struct {
	parser *uaparser.Parser
}

// NewParser builds a Parser from the embedded uap-core regex definitions.
func NewParser() *Parser {
	return &Parser{parser: uaparser.NewFromSaved()}
}

var (
	botTokens     = []string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python", "java", "httpclient", "okhttp", "facebookexternalhit", "slurp"}
	tabletTokens  = []string{"ipad", "tablet", "kindle", "silk", "playbook"}
	mobileTokens  = []string{"mobile", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini", "opera mobi"}
	desktopTokens = []string{"windows", "macintosh", "linux", "x11", "cros"}
)

// Parse classifies a raw User-Agent header value.
func (p *Parser) Parse(ua string) Info {
	info := Info{DeviceType: model.DeviceUnknown}
	if strings.TrimSpace(ua) == "" {
		return info
	}

	client := p.parser.Parse(ua)

	info.BrowserName = client.UserAgent.Family
	info.BrowserVersion = client.UserAgent.ToVersionString()
	info.OSName = client.Os.Family
	info.OSVersion = client.Os.ToVersionString()
	info.DeviceType = classifyDevice(ua, client)

	// The regex set reports "Other" for agents it cannot place; fall
	// back to token sniffing so analytics buckets stay meaningful.
	if info.BrowserName == "" || info.BrowserName == "Other" {
		info.BrowserName = sniffBrowser(ua)
	}
	if info.OSName == "" || info.OSName == "Other" {
		info.OSName = sniffOS(ua)
	}

	return info
}

// classifyDevice applies the detection cascade: known spider families
// and bot tokens first, then tablet, then mobile, then desktop tokens.
func classifyDevice(ua string, client *uaparser.Client) model.DeviceType {
	lower := strings.ToLower(ua)

	if client.Device.Family == "Spider" || containsAny(lower, botTokens) {
		return model.DeviceBot
	}
	if containsAny(lower, tabletTokens) {
		return model.DeviceTablet
	}
	if containsAny(lower, mobileTokens) {
		// Android without the Mobile token is a tablet build.
		if strings.Contains(lower, "android") && !strings.Contains(lower, "mobile") {
			return model.DeviceTablet
		}
		return model.DeviceMobile
	}
	if containsAny(lower, desktopTokens) {
		return model.DeviceDesktop
	}
	return model.DeviceUnknown
}

// sniffBrowser extracts a browser family by substring. Order matters:
// Chrome ships "Safari" in its UA and Edge ships "Chrome".
func sniffBrowser(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		return "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		return "Opera"
	case strings.Contains(lower, "firefox"):
		return "Firefox"
	case strings.Contains(lower, "chrome"):
		return "Chrome"
	case strings.Contains(lower, "safari"):
		return "Safari"
	case strings.Contains(lower, "msie"), strings.Contains(lower, "trident"):
		return "Internet Explorer"
	}
	return "Unknown"
}

// sniffOS extracts an operating system family by substring.
func sniffOS(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "windows phone"):
		return "Windows Phone"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		return "iOS"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		return "macOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "cros"):
		return "Chrome OS"
	case strings.Contains(lower, "linux"):
		return "Linux"
	}
	return "Unknown"
}

// containsAny reports whether s contains any of the tokens.
func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
