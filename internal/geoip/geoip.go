// Package geoip resolves client IPs to coarse locations via ip-api.com.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://ip-api.com"
	lookupTimeout  = 5 * time.Second
	lookupFields   = "status,message,country,countryCode,region,regionName,city,timezone,query"
)

// Location is the resolved geolocation of an IP address.
type Location struct {
	CountryCode string
	CountryName string
	Region      string
	City        string
	Timezone    string
}

// Client queries the ip-api.com JSON endpoint. Lookups are best effort;
// any failure yields a nil location rather than an error that could
// block click enrichment.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a geolocation client. baseURL may be empty to use
// the public ip-api.com endpoint.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: lookupTimeout},
		logger:  logger,
	}
}

// apiResponse mirrors the ip-api.com JSON payload.
type apiResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"region"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
	Query       string `json:"query"`
}

// Lookup resolves an IP address. Private, loopback and otherwise
// unroutable addresses are skipped without a network call.
func (c *Client) Lookup(ctx context.Context, ip string) *Location {
	if ip == "" || IsPrivate(ip) {
		return nil
	}

	url := fmt.Sprintf("%s/json/%s?fields=%s", c.baseURL, ip, lookupFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("geoip lookup failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("geoip lookup rejected", "status", resp.StatusCode)
		return nil
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Debug("geoip response decode failed", "error", err)
		return nil
	}

	if body.Status != "success" {
		c.logger.Debug("geoip lookup unsuccessful", "message", body.Message)
		return nil
	}

	return &Location{
		CountryCode: body.CountryCode,
		CountryName: body.Country,
		Region:      body.RegionName,
		City:        body.City,
		Timezone:    body.Timezone,
	}
}

// IsPrivate reports whether an IP is loopback, link-local or inside a
// private range, i.e. not resolvable by a public geolocation service.
func IsPrivate(ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() ||
		parsed.IsPrivate() ||
		parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() ||
		parsed.IsUnspecified()
}
