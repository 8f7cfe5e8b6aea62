// Package httpapi exposes the account and tournament sync services over a
// JSON REST API built on gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// UserService is the subset of services.UserService used by the handlers.
type UserService interface {
	Register(ctx context.Context, email, password string) (*services.Session, error)
	RequestToken(ctx context.Context, email, password string) (*services.Session, error)
	ValidateToken(ctx context.Context, email, token string) (int64, error)
	Logout(ctx context.Context, userID int64) error
	Delete(ctx context.Context, userID int64) error
}

// TournamentService is the subset of services.TournamentService used by the
// handlers.
type TournamentService interface {
	CheckWebName(ctx context.Context, owner, tournamentID int64, webName string) (services.WebNameStatus, error)
	RegisterWebName(ctx context.Context, owner, tournamentID int64, webName string) (*models.Tournament, error)
	Release(ctx context.Context, owner int64, webName string) error
	MarkModified(ctx context.Context, owner int64, webName string) error
	ConfirmSync(ctx context.Context, owner int64, webName string, snapshot []byte) (time.Time, error)
	Snapshot(ctx context.Context, webName string) ([]byte, error)
	UpdateMetadata(ctx context.Context, owner int64, webName string, md models.TournamentMetadata) error
	SaveStatus(ctx context.Context, webName string) (*services.SaveStatus, error)
	List(ctx context.Context) (*models.Listing, error)
}

type HTTPServer struct {
	address     string
	users       UserService
	tournaments TournamentService
	logger      logging.Logger
	router      *gin.Engine
}

func NewHTTPServer(a string, l logging.Logger, us UserService, ts TournamentService) *HTTPServer {
	s := &HTTPServer{
		address:     a,
		users:       us,
		tournaments: ts,
		logger:      l.With("module", "http_server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.POST("/users", s.register)
	api.POST("/tokens", s.requestToken)
	api.GET("/tournaments", s.listTournaments)
	api.GET("/tournaments/:web_name/status", s.saveStatus)
	api.GET("/tournaments/:web_name/snapshot", s.snapshot)

	authed := api.Group("", s.tokenAuth())
	authed.DELETE("/users", s.deleteUser)
	authed.DELETE("/tokens", s.logout)
	authed.GET("/web-names/:name", s.checkWebName)
	authed.PUT("/web-names/:name", s.registerWebName)
	authed.DELETE("/web-names/:name", s.releaseWebName)
	authed.PUT("/tournaments/:web_name/metadata", s.updateMetadata)
	authed.POST("/tournaments/:web_name/modified", s.markModified)
	authed.POST("/tournaments/:web_name/sync", s.confirmSync)

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
