package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evoquefitness/access-gateway/internal/core/sector"
)

// SectorHandler serves the protected sector views. By the time a request
// reaches it, the guard middleware has already decided the caller may see the
// sector; the handler only renders.
type SectorHandler struct{}

func NewSectorHandler() *SectorHandler {
	return &SectorHandler{}
}

type sectorViewResponse struct {
	Slug   string `json:"slug"`
	Sector string `json:"sector"`
	Path   string `json:"path"`
}

// View handles GET /setor/:slug and everything below it.
//
// @Summary      Protected sector view
// @Tags         sectors
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sectorViewResponse
// @Failure      302  "redirect to /login or /access-denied"
// @Router       /setor/{slug} [get]
func (h *SectorHandler) View(c echo.Context) error {
	path := c.Request().URL.Path
	req := sector.FromPath(path)
	if req == nil {
		return echo.NewHTTPError(http.StatusNotFound, "not a sector path")
	}
	return c.JSON(http.StatusOK, sectorViewResponse{
		Slug:   req.Slug,
		Sector: req.Sector,
		Path:   path,
	})
}

// AccessDenied handles GET /access-denied, the landing view for authenticated
// but unauthorized navigations.
func (h *SectorHandler) AccessDenied(c echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]string{
		"error": "access denied for this sector",
	})
}
