package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSectorHandler_View(t *testing.T) {
	h := NewSectorHandler()

	c, rec := newTestContext(t, http.MethodGet, "/setor/ti/chamados", "")
	if err := h.View(c); err != nil {
		t.Fatalf("view failed: %v", err)
	}
	var resp sectorViewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Slug != "ti" || resp.Sector != "TI" || resp.Path != "/setor/ti/chamados" {
		t.Fatalf("unexpected view: %+v", resp)
	}
}

func TestSectorHandler_ViewRejectsNonSectorPath(t *testing.T) {
	h := NewSectorHandler()

	c, _ := newTestContext(t, http.MethodGet, "/dashboard", "")
	err := h.View(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestSectorHandler_AccessDenied(t *testing.T) {
	h := NewSectorHandler()

	c, rec := newTestContext(t, http.MethodGet, "/access-denied", "")
	if err := h.AccessDenied(c); err != nil {
		t.Fatalf("access denied view failed: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
