package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evoquefitness/access-gateway/internal/api/metrics"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

// Guard wraps protected views with the route guard state machine. Children
// only render in the allowed state; every other state renders guard-owned
// output (a retry hint or a navigation redirect carrying the original path).
func Guard(guard ports.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			path := req.URL.Path
			if req.URL.RawQuery != "" {
				path += "?" + req.URL.RawQuery
			}

			key, _ := c.Get(ContextKeySessionKey).(string)
			decision := guard.Evaluate(req.Context(), ports.GuardInput{
				Key:         key,
				Path:        path,
				BypassToken: bypassToken(c),
			})
			metrics.GuardDecisionsTotal.WithLabelValues(string(decision.State)).Inc()

			switch decision.State {
			case ports.StateAllowed:
				return next(c)
			case ports.StateLoading:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "session store warming up"})
			case ports.StateRedirectLogin, ports.StateDenied:
				return c.Redirect(http.StatusFound, decision.RedirectTo)
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "unknown guard state")
			}
		}
	}
}

// bypassToken reads the one-shot post-login marker from the query string or
// the header, whichever the client used.
func bypassToken(c echo.Context) string {
	if t := c.QueryParam("bypass"); t != "" {
		return t
	}
	return c.Request().Header.Get("X-Bypass-Token")
}
