package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/refunds/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves liveness and build information
type SystemHandler struct {
	BaseHandler
	db        Pinger
	name      string
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(db Pinger, name, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health godoc
// @ID           health
// @Summary      Liveness and database check
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.db == nil {
		resp.Database = "not configured"
		h.Success(c, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}

// GetSystemInfo godoc
// @ID           getSystemInfo
// @Summary      Get system information
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
