package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if err := s.dbPing.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["postgres"] = err.Error()
	} else {
		checks["postgres"] = "ok"
	}

	if s.cachePing != nil {
		if err := s.cachePing.Ping(ctx); err != nil {
			// Degraded but servable, the store is the source of truth
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}

func (s *Server) handleListPlayers(c *gin.Context) {
	players, err := s.players.ListPlayers(c.Request.Context())
	if err != nil {
		s.logger.Error("List players failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list players"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"players": players, "count": len(players)})
}

func (s *Server) handleHistory(c *gin.Context) {
	playerID, ok := playerIDParam(c)
	if !ok {
		return
	}

	history, err := s.players.LoadHistory(c.Request.Context(), playerID)
	if err != nil {
		s.logger.Error("Load history failed", zap.Int64("player_id", playerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown player"})
		return
	}

	c.JSON(http.StatusOK, history)
}

func (s *Server) handleForecast(c *gin.Context) {
	playerID, ok := playerIDParam(c)
	if !ok {
		return
	}

	model := s.cfg.DefaultModel
	if raw := c.Query("model"); raw != "" {
		model = domain.ModelKind(raw)
		if !model.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model"})
			return
		}
	}

	forecast, err := s.forecasts.LoadForecast(c.Request.Context(), playerID, model)
	if err != nil {
		s.logger.Error("Load forecast failed", zap.Int64("player_id", playerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load forecast"})
		return
	}
	if forecast == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no forecast for player"})
		return
	}

	c.JSON(http.StatusOK, forecast)
}

func playerIDParam(c *gin.Context) (int64, bool) {
	playerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || playerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
		return 0, false
	}
	return playerID, true
}
