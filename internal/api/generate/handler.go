package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
	"github.com/jfjoao12/website-autobuilder/internal/service"
)

// Handler handles generation API requests
type Handler struct {
	svc          *service.GenerationService
	export       *service.ExportService
	streamBuffer int
}

// NewHandler creates a new generation handler
func NewHandler(svc *service.GenerationService, export *service.ExportService, streamBuffer int) *Handler {
	if streamBuffer <= 0 {
		streamBuffer = 100
	}
	return &Handler{svc: svc, export: export, streamBuffer: streamBuffer}
}

// RegisterRoutes registers generation routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/models", h.ListModels)
	r.POST("/generate", h.StartRun)
	r.GET("/generate/:run_id", h.GetRun)
	r.GET("/generate/:run_id/events", h.Events)
	r.POST("/generate/:run_id/cancel", h.CancelRun)
	r.GET("/generate/:run_id/export", h.Export)
}

// ListModels returns the models the configured gateway can serve
func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.svc.ListModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// StartRun admits a new generation run for the caller's session. A
// run already in flight for the session is cancelled first.
func (h *Handler) StartRun(c *gin.Context) {
	var brief domain.SiteBrief
	if err := c.ShouldBindJSON(&brief); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := sessionID(c)
	run, err := h.svc.StartRun(sessionID, brief)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":     run.ID,
		"session_id": sessionID,
		"status":     string(run.Status()),
	})
}

// GetRun returns a full snapshot of the run's observable state
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.svc.GetRun(c.Param("run_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run.Snapshot())
}

// CancelRun aborts an in-flight run; cancelling a finished run is a
// no-op
func (h *Handler) CancelRun(c *gin.Context) {
	if err := h.svc.CancelRun(c.Param("run_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

// Events streams the run's progress as SSE until the run finishes or
// the client goes away.
func (h *Handler) Events(c *gin.Context) {
	run, err := h.svc.GetRun(c.Param("run_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events := run.Subscribe(h.streamBuffer)
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// Export downloads the finished site as a zip archive
func (h *Handler) Export(c *gin.Context) {
	run, err := h.svc.GetRun(c.Param("run_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := run.Result()
	if err != nil {
		writeError(c, err)
		return
	}

	archive, err := h.export.Archive(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "site-"+run.ID+".zip"))
	c.Data(http.StatusOK, "application/zip", archive)
}

// sessionID resolves the caller's session from the X-Session-ID
// header, minting a fresh one when absent. The id is echoed back in
// the StartRun response so the wizard can persist it.
func sessionID(c *gin.Context) string {
	if id := c.GetHeader("X-Session-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRunActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
