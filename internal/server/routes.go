package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Catalog and comments
	s.echo.GET("/books", s.handleListBooks)
	s.echo.GET("/books/:id", s.handleGetBook)
	s.echo.GET("/books/:id/comments-with-sentiment", s.handleBookComments)
	s.echo.GET("/books/:id/sentiment-stats", s.handleBookSentimentStats)
	s.echo.POST("/books/:id/comments", s.handleCreateComment)
	s.echo.PUT("/comments/:id/sentiment", s.handleCorrectSentiment)
	s.echo.GET("/sentiment-stats", s.handleGlobalSentimentStats)

	// Dashboard
	s.echo.GET("/api/dashboard/metrics", s.handleDashboardMetrics)
	s.echo.GET("/api/dashboard/training-data", s.handleTrainingDataStats)

	// Real-time subscribers
	s.echo.GET("/ws", s.handleWebSocket)
}
