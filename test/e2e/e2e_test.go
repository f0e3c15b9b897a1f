//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type cfg struct {
	APIBase string // http://localhost:8080
}

func loadCfg() cfg {
	return cfg{APIBase: getenv("E2E_API_BASE", "http://localhost:8080")}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// --- DTOs
type csrfResp struct {
	CSRFToken string `json:"csrf_token"`
}

type registerResp struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	UserType    string `json:"user_type"`
}

type sessionResp struct {
	AccessToken string `json:"access_token"`
	UserType    string `json:"user_type"`
	UserID      string `json:"user_id"`
}

type meResp struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

type errResp struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	csrf   string
	access string
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	b := &browser{t: t, base: base, client: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
	var c csrfResp
	b.call(http.MethodGet, "/api/v1/csrf-token", nil, http.StatusOK, &c)
	require.NotEmpty(t, c.CSRFToken)
	b.csrf = c.CSRFToken
	return b
}

func (b *browser) call(method, path string, in any, want int, out any) {
	b.t.Helper()
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		require.NoError(b.t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, body)
	require.NoError(b.t, err)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.csrf != "" {
		req.Header.Set("X-CSRFToken", b.csrf)
	}
	if b.access != "" {
		req.Header.Set("access_token", b.access)
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equalf(b.t, want, resp.StatusCode, "%s %s body=%s", method, path, raw)
	if out != nil && len(raw) > 0 {
		require.NoError(b.t, json.Unmarshal(raw, out))
	}
}

// Requires the API to run with AUTH_COOKIE_SECURE=false.
func TestE2E_SessionLifecycle(t *testing.T) {
	c := loadCfg()
	email := fmt.Sprintf("e2e-%s@example.com", uuid.NewString()[:8])
	const password = "correct horse battery"

	b := newBrowser(t, c.APIBase)

	var reg registerResp
	b.call(http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":        email,
		"password":     password,
		"user_type":    "Company",
		"tos_agreed":   true,
		"company_name": "Acme",
		"company_size": "less than 100",
	}, http.StatusCreated, &reg)
	require.NotEmpty(t, reg.UserID)

	var dup errResp
	b.call(http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":        email,
		"password":     password,
		"user_type":    "Company",
		"tos_agreed":   true,
		"company_name": "Acme",
		"company_size": "less than 100",
	}, http.StatusConflict, &dup)
	require.Equal(t, "User already registered.", dup.Message)

	var sess sessionResp
	b.call(http.MethodPost, "/api/v1/auth/credentials", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK, &sess)
	require.Equal(t, reg.UserID, sess.UserID)
	require.Equal(t, "Company", sess.UserType)
	b.access = sess.AccessToken

	var me meResp
	b.call(http.MethodGet, "/api/v1/users/me", nil, http.StatusOK, &me)
	require.Equal(t, email, me.Email)
	require.Equal(t, "Company", me.Role)

	var refreshed sessionResp
	b.call(http.MethodPost, "/api/v1/auth/refresh", nil, http.StatusOK, &refreshed)
	require.NotEmpty(t, refreshed.AccessToken)
	b.access = refreshed.AccessToken
	b.call(http.MethodGet, "/api/v1/users/me", nil, http.StatusOK, nil)

	b.call(http.MethodPost, "/api/v1/auth/logout", nil, http.StatusNoContent, nil)

	// Logout clears the cookie, so a refresh now has nothing to rotate.
	var gone errResp
	b.call(http.MethodPost, "/api/v1/auth/refresh", nil, http.StatusUnauthorized, &gone)
	require.NotEmpty(t, gone.Message)
}

func TestE2E_StudentRegistrationValidation(t *testing.T) {
	c := loadCfg()
	b := newBrowser(t, c.APIBase)

	var verr errResp
	b.call(http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":     "not-an-email",
		"password":  "short",
		"user_type": "Student",
		"ku_id":     "12",
	}, http.StatusBadRequest, &verr)
	require.Equal(t, "Invalid registration data.", verr.Message)
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "password")
	require.Contains(t, verr.Fields, "tos_agreed")
	require.Contains(t, verr.Fields, "ku_id")
}

func TestE2E_CSRFRequiredForLogin(t *testing.T) {
	c := loadCfg()
	b := newBrowser(t, c.APIBase)
	b.csrf = ""

	var e errResp
	b.call(http.MethodPost, "/api/v1/auth/credentials", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever1",
	}, http.StatusForbidden, &e)
	require.Equal(t, "CSRF token missing or invalid.", e.Message)
}
