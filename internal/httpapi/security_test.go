package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	srv := newTestAPI(t)

	rec := srv.client(t).get("/healthz")

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'self'") {
		t.Fatalf("unexpected Content-Security-Policy %q", got)
	}
}

func TestPostWithoutCSRFTokenRejected(t *testing.T) {
	srv := newTestAPI(t)
	c := srv.client(t)

	req := httptest.NewRequest(http.MethodPost, "/actions/view", strings.NewReader("view=order"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := c.do(req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if got := c.get("/api/state").Body.String(); !strings.Contains(got, `"view":"home"`) {
		t.Fatalf("state changed without a token: %s", got)
	}
}

func TestPostWithForgedCSRFTokenRejected(t *testing.T) {
	srv := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/actions/view", strings.NewReader("view=order"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", strings.Repeat("a", 64))
	rec := srv.client(t).do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFTokenFromPreviousHourAccepted(t *testing.T) {
	srv := newTestAPI(t)
	prev := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour).Unix()
	stale := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour).Unix()

	assert.True(t, srv.api.validateCSRFToken(srv.api.csrfTokenForHour(prev)))
	assert.False(t, srv.api.validateCSRFToken(srv.api.csrfTokenForHour(stale)))
	assert.False(t, srv.api.validateCSRFToken(""))
}

func TestCSRFTokenEndpoint(t *testing.T) {
	srv := newTestAPI(t)

	rec := srv.client(t).get("/api/csrf-token")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), srv.api.generateCSRFToken())
}

func TestOversizedFormRejected(t *testing.T) {
	srv := newTestAPI(t)
	form := url.Values{"view": {strings.Repeat("a", (1<<20)+1024)}}

	req := httptest.NewRequest(http.MethodPost, "/actions/view", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", srv.api.generateCSRFToken())
	rec := srv.client(t).do(req)

	if rec.Code < 400 {
		t.Fatalf("expected oversized body to be rejected, got %d", rec.Code)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	logger, hook := test.NewNullLogger()
	api := New(nil, "", logger)
	rec := httptest.NewRecorder()

	api.writeError(rec, http.StatusInternalServerError, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected the error to be logged")
	}
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "httpapi", entry.Data["module"])
	assert.Equal(t, assert.AnError, entry.Data[logrus.ErrorKey])
}
