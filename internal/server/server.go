// Package server provides the HTTP API for the Bravo Zulu Films
// community, built on Echo v4. It serves the JSON REST API under /api
// and the notification WebSocket at /ws.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/auth"
	"github.com/bravozulu-films/bzf/internal/billing"
	"github.com/bravozulu-films/bzf/internal/blob"
	"github.com/bravozulu-films/bzf/internal/config"
	"github.com/bravozulu-films/bzf/internal/database"
	"github.com/bravozulu-films/bzf/internal/festival"
	"github.com/bravozulu-films/bzf/internal/forum"
	"github.com/bravozulu-films/bzf/internal/friend"
	"github.com/bravozulu-films/bzf/internal/message"
	"github.com/bravozulu-films/bzf/internal/notify"
	"github.com/bravozulu-films/bzf/internal/project"
	"github.com/bravozulu-films/bzf/internal/report"
	"github.com/bravozulu-films/bzf/internal/script"
	"github.com/bravozulu-films/bzf/internal/studio"
	"github.com/bravozulu-films/bzf/internal/tutorial"
	"github.com/bravozulu-films/bzf/internal/user"
	"github.com/bravozulu-films/bzf/internal/verification"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// maxBody bounds request bodies; blob uploads are the largest.
const maxBody = "6M"

// Options carries the runtime collaborators that are chosen at start-up.
type Options struct {
	// Hub serves WebSocket clients on this instance.
	Hub *notify.Hub

	// Publisher delivers notifications. Defaults to Hub; set to a
	// RedisRelay to fan out across instances.
	Publisher notify.Publisher

	// Generator backs the studio. Nil disables generation.
	Generator studio.Generator

	// Payments charges credit purchases. Nil uses the manual provider.
	Payments billing.PaymentProvider
}

// Server wraps the Echo instance and application dependencies.
type Server struct {
	echo *echo.Echo
	cfg  *config.Config
	log  *zap.SugaredLogger
	jwt  *auth.JWTManager

	users         *user.Store
	verifications *verification.Store
	scripts       *script.Store
	projects      *project.Store
	forum         *forum.Store
	messages      *message.Store
	friends       *friend.Store
	notifications *notify.Store
	notifier      *notify.Notifier
	hub           *notify.Hub
	upgrader      *websocket.Upgrader
	achievements  *achievement.Store
	billing       *billing.Store
	studio        *studio.Service
	festivals     *festival.Store
	reports       *report.Store
	tutorial      *tutorial.Store
	blobs         *blob.Store
}

// New creates a configured Echo server with all routes registered.
func New(cfg *config.Config, db *database.DB, opts Options, log *zap.SugaredLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true // We log the listen address ourselves.

	if opts.Hub == nil {
		opts.Hub = notify.NewHub(log)
	}
	if opts.Publisher == nil {
		opts.Publisher = opts.Hub
	}

	s := &Server{
		echo: e,
		cfg:  cfg,
		log:  log,
		jwt:  auth.NewJWTManager(cfg.JWTSecret, cfg.ServiceURL),

		users:         user.NewStore(db),
		verifications: verification.NewStore(db),
		scripts:       script.NewStore(db),
		projects:      project.NewStore(db),
		forum:         forum.NewStore(db),
		messages:      message.NewStore(db),
		friends:       friend.NewStore(db),
		notifications: notify.NewStore(db),
		hub:           opts.Hub,
		upgrader:      notify.Upgrader(cfg.AllowedOrigins),
		achievements:  achievement.NewStore(db),
		billing:       billing.NewStore(db, opts.Payments),
		festivals:     festival.NewStore(db),
		reports:       report.NewStore(db),
		tutorial:      tutorial.NewStore(db),
		blobs:         blob.NewStore(db),
	}
	s.notifier = notify.NewNotifier(s.notifications, opts.Publisher, log)
	s.studio = studio.NewService(db, opts.Generator, s.billing, s.blobs, log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.log.Warnw("request", append(fields, "error", v.Error)...)
				return nil
			}
			s.log.Infow("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(maxBody))
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		}))
	}

	s.registerRoutes()
	return s
}

// Handler exposes the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins listening for HTTP requests. It blocks until the context
// is cancelled, then performs a graceful shutdown allowing in-flight
// requests to complete.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("listening", "addr", s.cfg.ListenAddr)
		if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		s.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}
