package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
)

// Options configures the operational status server. The full query API lives
// elsewhere; this surface exposes health and run status only.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	pool   *db.Pool
	logger zerolog.Logger
	opts   Options
}

func NewServer(pool *db.Pool, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8091
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		pool:   pool,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/runs/latest", s.handleLatestRun)
	e.GET("/v1/runs/:run_id", s.handleRun)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("heatmap status server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("heatmap status server stopped")
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.pool.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// handleLatestRun returns the most recent run. SUCCESS runs only by default;
// pass all=true to include non-terminal and failed runs.
func (s *Server) handleLatestRun(c echo.Context) error {
	successOnly := c.QueryParam("all") != "true"

	run, err := s.pool.LatestRun(c.Request().Context(), successOnly)
	if err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "no runs recorded")
		}
		return fmt.Errorf("query latest run: %w", err)
	}
	return c.JSON(http.StatusOK, s.runPayload(c, run))
}

func (s *Server) handleRun(c echo.Context) error {
	runID := strings.TrimSpace(c.Param("run_id"))
	if runID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "run_id is required")
	}

	run, err := s.pool.GetRun(c.Request().Context(), runID)
	if err != nil {
		if db.IsNoRows(err) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return fmt.Errorf("query run: %w", err)
	}
	return c.JSON(http.StatusOK, s.runPayload(c, run))
}

func (s *Server) runPayload(c echo.Context, run *db.Run) map[string]any {
	payload := map[string]any{
		"run_id":             run.RunID,
		"window_start":       run.WindowStart,
		"window_end":         run.WindowEnd,
		"started_at":         run.StartedAt,
		"finished_at":        run.FinishedAt,
		"status":             run.Status,
		"config_fingerprint": run.ConfigFingerprint,
		"notes":              run.Notes,
	}

	if metrics, err := s.pool.GetRunMetrics(c.Request().Context(), run.RunID); err == nil {
		payload["metrics"] = map[string]any{
			"source_counts":  rawJSON(metrics.SourceCounts),
			"mention_counts": rawJSON(metrics.MentionCounts),
			"unresolved_top": rawJSON(metrics.UnresolvedTop),
			"timings_ms":     rawJSON(metrics.Timings),
		}
	}
	return payload
}

func rawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(raw)
}
