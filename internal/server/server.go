// Package server exposes the authenticated HTTP surface: form-encoded input
// in, JSON out. All business rules live in the service layer; handlers only
// parse, delegate and render.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/agency-backoffice/internal/app"
	"github.com/oggyb/agency-backoffice/internal/config"
	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
	"github.com/oggyb/agency-backoffice/internal/service/accounts"
	"github.com/oggyb/agency-backoffice/internal/service/propositions"
)

// Server wires services into gin handlers.
type Server struct {
	appCtx       *app.AppContext
	cfg          *config.Config
	accounts     *accounts.Service
	propositions *propositions.Service
}

// New creates a Server with its services built from the AppContext.
func New(appCtx *app.AppContext, cfg *config.Config) *Server {
	return &Server{
		appCtx:       appCtx,
		cfg:          cfg,
		accounts:     accounts.NewService(appCtx),
		propositions: propositions.NewService(appCtx),
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	if s.cfg.App.ENV == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.RequestID())

	r.POST("/api/login", s.handleLogin)

	api := r.Group("/api", s.RequireAuth())
	{
		api.POST("/logout", s.handleLogout)

		// account status, scoped inside the service
		staff := api.Group("", s.RequireRole(db.RoleAdmin, db.RoleManager, db.RoleMatchmaker))
		{
			staff.POST("/users/:id/activate", s.handleActivate)
			staff.POST("/users/:id/deactivate", s.handleDeactivate)
			staff.GET("/reactivation-requests", s.handleListReactivations)
			staff.POST("/reactivation-requests/:id/approve", s.handleReviewReactivation(accounts.DecisionApprove))
			staff.POST("/reactivation-requests/:id/reject", s.handleReviewReactivation(accounts.DecisionReject))
		}

		management := api.Group("", s.RequireRole(db.RoleAdmin, db.RoleManager))
		{
			management.POST("/users/:id/assign", s.handleAssign)
		}
		api.POST("/users/:id/unassign",
			s.RequireRole(db.RoleAdmin, db.RoleMatchmaker), s.handleUnassign)

		admin := api.Group("", s.RequireRole(db.RoleAdmin))
		{
			admin.POST("/staff/:id/approve", s.handleApproveStaff(true))
			admin.POST("/staff/:id/reject", s.handleApproveStaff(false))
		}

		// end-user surface
		api.POST("/reactivation-requests", s.handleSubmitReactivation)
		api.GET("/propositions", s.handleListPropositions)
		api.GET("/propositions/count", s.handleCountPropositions)
		api.POST("/propositions/:id/respond", s.handleRespondProposition)

		// matchmaker surface
		mm := api.Group("", s.RequireRole(db.RoleMatchmaker))
		{
			mm.POST("/propositions", s.handleCreateProposition)
			mm.GET("/matchmaker/propositions", s.handleListSentPropositions)
			mm.POST("/proposition-requests", s.handleCreatePropositionRequest)
			mm.GET("/proposition-requests/inbox", s.handlePropositionRequestInbox)
			mm.GET("/proposition-requests/outbox", s.handlePropositionRequestOutbox)
			mm.POST("/proposition-requests/:id/respond", s.handleRespondPropositionRequest)
		}
	}

	return r
}

// Run starts the HTTP server on the configured address.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.HTTP.Host, s.cfg.HTTP.Port)
	s.appCtx.Logger.Info("starting HTTP server", "addr", addr)
	return s.Router().Run(addr)
}

// respondError renders a classified domain error. Validation errors carry the
// offending field so the front end can attach the message to its input.
func respondError(c *gin.Context, err error) {
	mapped := apperr.Map(err)
	status := apperr.Status(mapped)

	body := gin.H{"error": mapped.Error()}
	var de *apperr.Error
	if ok := asAppError(mapped, &de); ok && de.Field != "" {
		body["errors"] = gin.H{de.Field: de.Message}
	}
	if status == http.StatusInternalServerError {
		body = gin.H{"error": "internal error"}
	}
	c.JSON(status, body)
}

func asAppError(err error, target **apperr.Error) bool {
	de, ok := err.(*apperr.Error)
	if ok {
		*target = de
	}
	return ok
}
