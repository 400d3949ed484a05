package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ksred/index-migrator/internal/migrate"
	"github.com/ksred/index-migrator/internal/utils"
)

// healthHandler reports service and database health
func (s *Server) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealthy := true
	var dbError string
	if err := s.db.Health(ctx); err != nil {
		dbHealthy = false
		dbError = err.Error()
	}

	status := "healthy"
	if !dbHealthy {
		status = "unhealthy"
	}

	response := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"tenant":    s.config.Migration.Tenant,
		"database": gin.H{
			"healthy": dbHealthy,
			"error":   dbError,
		},
	}

	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// listRecordsHandler returns the tenant's migration records, optionally
// filtered by status
func (s *Server) listRecordsHandler(c *gin.Context) {
	status := c.Query("status")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records, err := s.recordStore.ListRecords(c.Request.Context(), s.config.Migration.Tenant, status, limit)
	if err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("failed to list records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// recordStatsHandler returns per-status record counts for the tenant
func (s *Server) recordStatsHandler(c *gin.Context) {
	stats, err := s.recordStore.Stats(c.Request.Context(), s.config.Migration.Tenant)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to aggregate record stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate record stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant": s.config.Migration.Tenant,
		"stats":  stats,
	})
}

// runDiscoveryHandler triggers one discovery tick outside the normal cadence
func (s *Server) runDiscoveryHandler(c *gin.Context) {
	result, err := s.discovery.Run(c.Request.Context(), s.config.Migration.Tenant)
	s.respondJobResult(c, string(result.Outcome), result, err)
}

// runMigrationHandler triggers one migration tick outside the normal cadence
func (s *Server) runMigrationHandler(c *gin.Context) {
	result, err := s.migration.Run(c.Request.Context(), s.config.Migration.Tenant)
	s.respondJobResult(c, string(result.Outcome), result, err)
}

func (s *Server) respondJobResult(c *gin.Context, outcome string, result interface{}, err error) {
	if err != nil {
		s.logger.Error().Err(err).Msg("manually triggered job tick failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"outcome": string(migrate.OutcomeFailure),
			"error":   err.Error(),
		})
		return
	}

	// A skipped tick means the lock was contended or the feature is off;
	// report it as conflict so callers can retry later.
	if outcome == string(migrate.OutcomeSkipped) {
		c.JSON(http.StatusConflict, gin.H{"outcome": outcome})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": outcome,
		"result":  result,
	})
}
