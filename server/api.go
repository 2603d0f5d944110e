package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chathub/pkg/errors"
	"chathub/pkg/health"
	"chathub/pkg/hub"
)

// handleHealth reports overall server health for load balancer probes.
func (s *Server) handleHealth(c *gin.Context) {
	if s.store != nil {
		if _, _, err := s.store.Stats(); err != nil {
			s.monitor.SetComponentStatus("storage", health.StatusUnhealthy, err.Error())
		} else {
			s.monitor.SetComponentStatus("storage", health.StatusHealthy, s.cfg.Database.Type)
		}
	}

	h := s.monitor.GetHealth(s.transport.Count(), s.registry.Len())

	status := http.StatusOK
	if h.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}

// handleStats returns hub, transport and store counters.
func (s *Server) handleStats(c *gin.Context) {
	snap := s.hub.Snapshot()

	resp := gin.H{
		"tenants":     snap.Tenants,
		"users":       snap.Users,
		"groups":      snap.Groups,
		"connections": s.transport.Count(),
	}

	if s.store != nil {
		if total, active, err := s.store.Stats(); err == nil {
			resp["sessions_total"] = total
			resp["sessions_active"] = active
		}
	}

	c.JSON(http.StatusOK, resp)
}

type tenantSummary struct {
	ID     string `json:"id"`
	Users  int    `json:"users"`
	Groups int    `json:"groups"`
}

// handleTenants lists every live tenant with its aggregate sizes.
func (s *Server) handleTenants(c *gin.Context) {
	tenants := s.registry.Tenants()

	out := make([]tenantSummary, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, tenantSummary{
			ID:     t.ID(),
			Users:  t.UserCount(),
			Groups: t.GroupCount(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tenants": out})
}

// handleTenantSessions lists open presence sessions for one tenant.
func (s *Server) handleTenantSessions(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errors.ErrStorageNotInitialized.Error()})
		return
	}

	tenantID := hub.NormalizeID(c.Param("id"))
	records, err := s.store.ActiveSessions(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenantID, "sessions": records})
}

// handleTenantHistory lists recent presence sessions for one tenant.
func (s *Server) handleTenantHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errors.ErrStorageNotInitialized.Error()})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	tenantID := hub.NormalizeID(c.Param("id"))
	records, err := s.store.History(tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenantID, "sessions": records})
}
