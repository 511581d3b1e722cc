package handler

import (
	"bytes"
	"context"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hopline/hopline/internal/handler/dto"
)

func createMapping(t *testing.T, env *testEnv, body string) dto.URLResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/urls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeJSON[dto.URLResponse](t, rec)
}

func TestCreateURL(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/urls",
		strings.NewReader(`{"originalUrl":"https://example.com/docs"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := env.do(t, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[dto.URLResponse](t, rec)
	if resp.ShortKey == "" {
		t.Error("shortKey is empty")
	}
	if want := "https://hopl.in/" + resp.ShortKey; resp.ShortURL != want {
		t.Errorf("shortUrl = %q, want %q", resp.ShortURL, want)
	}
	if resp.OriginalURL != "https://example.com/docs" {
		t.Errorf("originalUrl = %q", resp.OriginalURL)
	}
	if !resp.IsActive {
		t.Error("new mapping should be active")
	}
	if resp.PasswordRequired {
		t.Error("plain mapping should not require a password")
	}

	stored, err := env.store.GetMappingByKey(context.Background(), resp.ShortKey)
	if err != nil {
		t.Fatalf("stored mapping not found: %v", err)
	}
	if stored.CreatedByIP != "203.0.113.9" {
		t.Errorf("created_by_ip = %q, want forwarded client IP", stored.CreatedByIP)
	}
}

func TestCreateURLValidationErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"originalUrl":`, "INVALID_JSON"},
		{"bad scheme", `{"originalUrl":"ftp://example.com"}`, "INVALID_URL"},
		{"bad alias", `{"originalUrl":"https://example.com","customAlias":"a!"}`, "INVALID_ALIAS"},
		{"short password", `{"originalUrl":"https://example.com","password":"abc"}`, "INVALID_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/urls", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := env.do(t, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			resp := decodeJSON[dto.ErrorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestCreateURLDuplicateAlias(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	createMapping(t, env, `{"originalUrl":"https://example.com/a","customAlias":"my-alias"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/urls",
		strings.NewReader(`{"originalUrl":"https://example.com/b","customAlias":"my-alias"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeJSON[dto.ErrorResponse](t, rec)
	if resp.Code != "ALIAS_TAKEN" {
		t.Errorf("code = %q, want ALIAS_TAKEN", resp.Code)
	}
}

func TestCreateURLWithQRCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := createMapping(t, env, `{"originalUrl":"https://example.com","generateQrCode":true}`)
	if resp.QRCodeBase64 == "" {
		t.Fatal("qrCodeBase64 is empty")
	}
}

func TestCreateBulk(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body := `{"urls":[
		{"originalUrl":"https://example.com/1"},
		{"originalUrl":"not a url"},
		{"originalUrl":"https://example.com/2"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/urls/bulk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[dto.BulkCreateResponse](t, rec)
	if resp.SuccessCount != 2 || resp.FailureCount != 1 {
		t.Fatalf("success/failure = %d/%d, want 2/1", resp.SuccessCount, resp.FailureCount)
	}
	if resp.Failed[0].Index != 1 {
		t.Errorf("failed index = %d, want 1", resp.Failed[0].Index)
	}
}

func TestCreateBulkEmptyBatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/urls/bulk", strings.NewReader(`{"urls":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func csvRequest(t *testing.T, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "urls.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/urls/bulk/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateBulkCSV(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, csvRequest(t, "url\nhttps://example.com/1\nexample.org\n"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[dto.BulkCreateResponse](t, rec)
	if resp.SuccessCount != 2 {
		t.Fatalf("successCount = %d, want 2", resp.SuccessCount)
	}
	// Bare domains get the https scheme during normalization.
	found := false
	for _, item := range resp.Created {
		if item.OriginalURL == "https://example.org" {
			found = true
		}
	}
	if !found {
		t.Error("normalized bare-domain row missing from outcomes")
	}
}

func TestCreateBulkCSVNoValidURLs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, csvRequest(t, "url\n!!!\n"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[dto.ErrorResponse](t, rec)
	if resp.Code != "NO_VALID_URLS" {
		t.Errorf("code = %q, want NO_VALID_URLS", resp.Code)
	}
}

func TestListRecent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	createMapping(t, env, `{"originalUrl":"https://example.com/1"}`)
	createMapping(t, env, `{"originalUrl":"https://example.com/2"}`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeJSON[dto.URLListResponse](t, rec)
	if resp.Count != 2 || len(resp.Data) != 2 {
		t.Errorf("count = %d (%d items), want 2", resp.Count, len(resp.Data))
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	created := createMapping(t, env, `{"originalUrl":"https://example.com"}`)
	env.store.mu.Lock()
	env.store.clickCounts[created.ID] = 5
	env.store.mappings[created.ID].ClickCount = 7
	env.store.mu.Unlock()

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls/"+created.ShortKey+"/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeJSON[dto.StatsResponse](t, rec)
	if resp.ClickCount != 7 {
		t.Errorf("clickCount = %d, want 7", resp.ClickCount)
	}
	if resp.RecordedClicks != 5 {
		t.Errorf("recordedClicks = %d, want 5", resp.RecordedClicks)
	}
}

func TestStatsUnknownKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls/missing/stats", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	created := createMapping(t, env, `{"originalUrl":"https://example.com"}`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls/"+created.ShortKey+"/analytics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"countries"`) {
		t.Errorf("analytics body missing countries: %s", rec.Body.String())
	}
}

func TestQRCodeEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	created := createMapping(t, env, `{"originalUrl":"https://example.com"}`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet,
		"/api/urls/"+created.ShortKey+"/qrcode?size=200", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", ct)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 200 {
		t.Errorf("image width = %d, want 200", img.Bounds().Dx())
	}
}

func TestQRCodeInvalidSize(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	created := createMapping(t, env, `{"originalUrl":"https://example.com"}`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet,
		"/api/urls/"+created.ShortKey+"/qrcode?size=50", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPreviewHidesDestination(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	created := createMapping(t, env,
		`{"originalUrl":"https://secret.example.com/page","password":"open sesame"}`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls/"+created.ShortKey+"/preview", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret.example.com") {
		t.Error("preview leaked destination URL of a gated mapping")
	}
	resp := decodeJSON[dto.PreviewResponse](t, rec)
	if !resp.PasswordRequired {
		t.Error("passwordRequired = false, want true")
	}
}

func TestProtectionEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	gated := createMapping(t, env, `{"originalUrl":"https://example.com/a","password":"hunter22"}`)
	open := createMapping(t, env, `{"originalUrl":"https://example.com/b"}`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls/"+gated.ShortKey+"/protected", nil))
	if got := decodeJSON[dto.ProtectionResponse](t, rec); !got.PasswordRequired {
		t.Error("gated mapping: passwordRequired = false")
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/urls/"+open.ShortKey+"/protected", nil))
	if got := decodeJSON[dto.ProtectionResponse](t, rec); got.PasswordRequired {
		t.Error("open mapping: passwordRequired = true")
	}
}
