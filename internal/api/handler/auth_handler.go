package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evoquefitness/access-gateway/internal/api/metrics"
	"github.com/evoquefitness/access-gateway/internal/api/middleware"
	"github.com/evoquefitness/access-gateway/internal/core/domain"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

type AuthHandler struct {
	auth      ports.AuthService
	store     ports.SessionStore
	jwtSecret string
}

func NewAuthHandler(auth ports.AuthService, store ports.SessionStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{auth: auth, store: store, jwtSecret: jwtSecret}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"senha"      validate:"required"`
	// Remember selects the durable ("remember me") storage scope.
	Remember bool `json:"remember"`
}

type sessionResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AccessLevel string    `json:"access_level"`
	Sectors     []string  `json:"sectors"`
	LoginAt     time.Time `json:"login_at"`
}

type loginResponse struct {
	Token              string          `json:"token"`
	BypassToken        string          `json:"bypass_token,omitempty"`
	MustChangePassword bool            `json:"must_change_password"`
	User               sessionResponse `json:"user"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		UserID:      s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		AccessLevel: string(s.AccessLevel),
		Sectors:     s.Sectors,
		LoginAt:     s.LoginAt,
	}
}

// Login authenticates against the ERP backend and returns the gateway token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	result, err := h.auth.Login(c.Request().Context(), ports.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Persistent: req.Remember,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		}
		return err
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()

	tokenTTL := domain.ShortTTL
	if req.Remember {
		tokenTTL = domain.LongTTL
	}
	token, err := middleware.MintSessionToken(h.jwtSecret, result.Key, tokenTTL)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:              token,
		BypassToken:        result.BypassToken,
		MustChangePassword: result.MustChangePassword,
		User:               toSessionResponse(result.Session),
	})
}

// Logout clears the session locally. Always succeeds, even when no session
// exists: logging out twice is not an error.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	key, _ := c.Get(middleware.ContextKeySessionKey).(string)
	if key != "" {
		if err := h.auth.Logout(c.Request().Context(), key); err != nil {
			return err
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Session returns the caller's current session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	key, _ := c.Get(middleware.ContextKeySessionKey).(string)
	if key == "" {
		return domain.ErrSessionNotFound
	}
	session, err := h.store.Read(c.Request().Context(), key)
	if err != nil || session == nil {
		return domain.ErrSessionNotFound
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}
