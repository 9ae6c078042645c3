// Package backend implements the HTTP client for the ERP user API. Responses
// are parsed against explicit schemas at this boundary; anything structurally
// off becomes domain.ErrSessionMalformed instead of loosely-typed fields
// leaking into the core.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evoquefitness/access-gateway/internal/core/domain"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Client talks to the ERP backend's /api/usuarios endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL (e.g. http://erp:8000).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// userPayload is the wire shape shared by the login and profile endpoints.
// Sectors is held raw and decoded leniently: a malformed value defaults to
// empty rather than failing the whole profile.
type userPayload struct {
	ID                 json.Number     `json:"id"`
	Email              string          `json:"email"`
	FirstName          string          `json:"nome"`
	LastName           string          `json:"sobrenome"`
	AccessLevel        string          `json:"nivel_acesso"`
	Sectors            json.RawMessage `json:"setores"`
	MustChangePassword bool            `json:"alterar_senha_primeiro_acesso"`
	SessionRevokedAt   string          `json:"session_revoked_at"`
}

// errorPayload is the non-2xx envelope; the backend uses either field name.
type errorPayload struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e *errorPayload) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// Login exchanges credentials for a profile. Non-2xx responses yield
// domain.ErrInvalidCredentials carrying the server-provided message, or a
// generic fallback when the body has none.
func (c *Client) Login(ctx context.Context, identifier, password string) (*ports.UserProfile, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"senha":      password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/usuarios/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ep errorPayload
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&ep)
		msg := ep.text()
		if msg == "" {
			msg = "login rejected"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, msg)
	}

	return decodeProfile(resp.Body)
}

// Profile fetches the latest profile for a user id.
func (c *Client) Profile(ctx context.Context, userID string) (*ports.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/usuarios/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: profile fetch returned %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	return decodeProfile(resp.Body)
}

// hasSectorPayload is the wire shape of the fast permission check.
type hasSectorPayload struct {
	OK bool `json:"ok"`
}

// HasSector asks the backend whether the user may access the sector slug.
func (c *Client) HasSector(ctx context.Context, userID, slug string) (bool, error) {
	u := fmt.Sprintf("%s/api/usuarios/%s/has-setor?sector=%s",
		c.baseURL, url.PathEscape(userID), url.QueryEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: has-setor returned %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	var hp hasSectorPayload
	if err := json.NewDecoder(resp.Body).Decode(&hp); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrSessionMalformed, err)
	}
	return hp.OK, nil
}

// Ping checks reachability of the ERP backend for the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: ping returned %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

// decodeProfile parses and validates the shared user payload.
func decodeProfile(r io.Reader) (*ports.UserProfile, error) {
	var up userPayload
	if err := json.NewDecoder(r).Decode(&up); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionMalformed, err)
	}
	if up.ID.String() == "" || up.Email == "" {
		return nil, fmt.Errorf("%w: missing id or email", domain.ErrSessionMalformed)
	}

	var sectors []string
	if len(up.Sectors) > 0 {
		if err := json.Unmarshal(up.Sectors, &sectors); err != nil {
			sectors = nil
		}
	}

	profile := &ports.UserProfile{
		ID:                 up.ID.String(),
		Email:              up.Email,
		FirstName:          up.FirstName,
		LastName:           up.LastName,
		AccessLevel:        up.AccessLevel,
		Sectors:            sectors,
		MustChangePassword: up.MustChangePassword,
	}
	if up.SessionRevokedAt != "" {
		at, err := time.Parse(time.RFC3339, up.SessionRevokedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad session_revoked_at", domain.ErrSessionMalformed)
		}
		profile.SessionRevokedAt = at
	}
	return profile, nil
}
