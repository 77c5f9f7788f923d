// Package trigger implements C11: the webhook/token-authenticated HTTP
// entry point that resolves a DAG and invokes C6's createRun (spec §4.10).
package trigger

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/api/middleware"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// RunCreator is the subset of C6 the trigger endpoint depends on.
type RunCreator interface {
	CreateRun(ctx context.Context, dagID, triggeredBy string) (*models.Run, error)
}

// Handler is the C11 contract implementation.
type Handler struct {
	dags        storage.DAGRepository
	runs        RunCreator
	rateLimiter *middleware.RateLimiter
	jwtConfig   *middleware.JWTConfig
}

// New creates a Handler. rateLimiter, when non-nil, is applied in front of
// every trigger route (per source IP). jwtConfig, when non-nil, additionally
// mounts a bearer-token trigger variant for callers that hold a signed JWT
// instead of a per-DAG trigger secret.
func New(dags storage.DAGRepository, runs RunCreator, rateLimiter *middleware.RateLimiter, jwtConfig *middleware.JWTConfig) *Handler {
	return &Handler{dags: dags, runs: runs, rateLimiter: rateLimiter, jwtConfig: jwtConfig}
}

// Register mounts the trigger shapes onto router: the raw webhook token and
// path variants, plus an optional JWT-authenticated by-ID variant.
func (h *Handler) Register(router gin.IRouter) {
	group := router.Group("/trigger")
	if h.rateLimiter != nil {
		group.Use(h.rateLimiter.RateLimit())
	}

	group.Any("/:token", h.triggerByToken)
	group.Any("/path/*path", h.triggerByPath)
	if h.jwtConfig != nil {
		group.POST("/dag/:dagId", middleware.JWTAuth(h.jwtConfig), h.triggerByDAGID)
	}
}

func (h *Handler) triggerByToken(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		abort(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "trigger endpoint only accepts POST")
		return
	}

	token := c.Param("token")
	if token == "" {
		abort(c, http.StatusUnauthorized, "NO_TOKEN", "trigger token required")
		return
	}

	def, err := h.dags.GetByTriggerToken(c.Request.Context(), token)
	if err != nil {
		abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "no DAG is registered for this trigger token")
		return
	}

	h.fire(c, def, "webhook")
}

func (h *Handler) triggerByPath(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		abort(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "trigger endpoint only accepts POST")
		return
	}

	path := c.Param("path")
	if path == "" {
		abort(c, http.StatusNotFound, "NOT_FOUND", "trigger path required")
		return
	}

	def, err := h.dags.GetByTriggerPath(c.Request.Context(), path)
	if err != nil {
		abort(c, http.StatusNotFound, "NOT_FOUND", "no DAG is registered for this trigger path")
		return
	}

	h.fire(c, def, "webhook")
}

// triggerByDAGID is the bearer-token variant of trigger auth: a caller
// authenticated via middleware.JWTAuth fires a DAG directly by ID, without
// needing to know its trigger token or path.
func (h *Handler) triggerByDAGID(c *gin.Context) {
	dagID := c.Param("dagId")
	def, err := h.dags.Get(c.Request.Context(), dagID)
	if err != nil {
		abort(c, http.StatusNotFound, "NOT_FOUND", "no DAG with this id")
		return
	}

	h.fire(c, def, "webhook-jwt")
}

// fire rejects disabled triggers before delegating to C6, the way §4.10
// describes the core's responsibility as distinct from the transport-level
// authentication already performed by resolving the token/path.
func (h *Handler) fire(c *gin.Context, def *models.DAG, triggeredBy string) {
	if !def.TriggerEnabled {
		abort(c, http.StatusForbidden, "TRIGGER_DISABLED", "this DAG's trigger is disabled")
		return
	}

	run, err := h.runs.CreateRun(c.Request.Context(), def.ID, triggeredBy)
	if err != nil {
		if errs.KindOf(err) == errs.KindValidation {
			abort(c, http.StatusConflict, "TRIGGER_REJECTED", err.Error())
			return
		}
		abort(c, http.StatusInternalServerError, "TRIGGER_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"runId": run.ID, "dagId": run.DAGID, "status": run.Status})
}

func abort(c *gin.Context, status int, code, message string) {
	middleware.AbortWithError(c, status, code, message)
}
