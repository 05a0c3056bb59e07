// Package api exposes the harvesting service over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/config"
	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/planlog"
	"github.com/keilos1/harvestplan/infra/logger"
)

// Service is what the handlers need from the application.
type Service interface {
	Dataset(ctx context.Context) (model.Dataset, error)
	Completeness(ctx context.Context) (model.MissingReport, error)
	Edit(ctx context.Context, op string, fn func(*model.Dataset) error) (model.Dataset, error)
	Solve(ctx context.Context, req app.SolveRequest) (*app.Outcome, error)
	Runs(ctx context.Context, q planlog.Query) ([]planlog.Record, error)
}

var _ Service = (*app.Service)(nil)

// Server is the echo application.
type Server struct {
	e   *echo.Echo
	svc Service
	cfg config.HTTPConfig
	log logger.Logger
}

type requestValidator struct{ v *validator.Validate }

func (r requestValidator) Validate(i any) error { return r.v.Struct(i) }

// New builds the router. cfg.Token protects the /api group.
func New(svc Service, cfg config.HTTPConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = requestValidator{v: validator.New()}
	e.HTTPErrorHandler = errorHandler

	s := &Server{e: e, svc: svc, cfg: cfg, log: logger.New("api")}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debugw("request", map[string]any{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			return nil
		},
	}))

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api")
	if cfg.Token != "" {
		g.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Token)) == 1, nil
			},
		}))
	}
	g.GET("/dataset", s.getDataset)
	g.POST("/sites", s.addSite)
	g.PUT("/sites/:id", s.setSite)
	g.DELETE("/sites/:id", s.deleteSite)
	g.POST("/months", s.addMonth)
	g.PUT("/months/:id", s.setMonth)
	g.DELETE("/months/:id", s.deleteMonth)
	g.PUT("/rates/:site/:month", s.setRates)
	g.GET("/completeness", s.completeness)
	g.POST("/solve", s.solve)
	g.GET("/solve/text", s.solveText)
	g.GET("/runs", s.runs)
	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on cfg.Addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.e.Server.ReadTimeout = time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second
	s.e.Server.WriteTimeout = time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.e.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", s.cfg.Addr)
	if err := s.e.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
