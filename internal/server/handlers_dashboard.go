package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/iMan-sources/sentiment-analysis/internal/errors"
)

// dashboardResponse wraps dashboard payloads in the envelope the frontend
// expects.
type dashboardResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func (s *Server) handleDashboardMetrics(c echo.Context) error {
	view, err := s.app.DashboardMetrics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{Success: true, Data: view})
}

func (s *Server) handleTrainingDataStats(c echo.Context) error {
	stats, err := s.ledger.Stats()
	if err != nil {
		return apperrors.InternalError("failed to read training data stats", err)
	}
	return c.JSON(http.StatusOK, dashboardResponse{Success: true, Data: stats})
}
