package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func runSessionToken(t *testing.T, authHeader string) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/setor/ti", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var key string
	handler := SessionToken(testSecret)(func(c echo.Context) error {
		key, _ = c.Get(ContextKeySessionKey).(string)
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return key
}

func TestSessionToken_RoundTrip(t *testing.T) {
	token, err := MintSessionToken(testSecret, "key-123", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if key := runSessionToken(t, "Bearer "+token); key != "key-123" {
		t.Fatalf("session key = %q, want key-123", key)
	}
}

func TestSessionToken_LenientOnBadCredentials(t *testing.T) {
	expired, err := MintSessionToken(testSecret, "key-123", -time.Minute)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	forged, err := MintSessionToken("other-secret", "key-123", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.jwt",
		"expired token":  "Bearer " + expired,
		"wrong secret":   "Bearer " + forged,
	}
	for name, header := range cases {
		if key := runSessionToken(t, header); key != "" {
			t.Fatalf("%s: key = %q, want empty", name, key)
		}
	}
}
