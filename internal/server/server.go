// Package server exposes the HTTP and websocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/iMan-sources/sentiment-analysis/internal/config"
	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	apperrors "github.com/iMan-sources/sentiment-analysis/internal/errors"
	"github.com/iMan-sources/sentiment-analysis/internal/hub"
	"github.com/iMan-sources/sentiment-analysis/internal/ledger"
)

// Defaults for websocket connection admission.
const (
	defaultPerIPMax       = 32
	defaultConnRatePerSec = 10.0
	defaultConnBurst      = 10
)

// pinger is the subset of pgxpool.Pool needed by readiness checks.
type pinger interface {
	Ping(ctx context.Context) error
}

// ledgerStats is the subset of the correction ledger needed by the dashboard.
type ledgerStats interface {
	Stats() (ledger.Stats, error)
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       domain.AppService
	hub       *hub.Hub
	ledger    ledgerStats
	db        pinger
	limits    *ConnectionLimits
	startTime time.Time
}

func NewServer(cfg *config.Config, app domain.AppService, h *hub.Hub, ledger ledgerStats, db pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		hub:       h,
		ledger:    ledger,
		db:        db,
		limits:    NewConnectionLimits(int64(cfg.MaxWebSocketConnections), defaultPerIPMax, defaultConnRatePerSec, defaultConnBurst),
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
