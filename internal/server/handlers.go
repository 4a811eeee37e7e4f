package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scanner/internal/database"
	"scanner/internal/model"
)

func (s *Server) healthHandler(c *gin.Context) {
	report := s.sc.Health(c.Request.Context())

	if !report.Healthy {
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) onlineHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.pc.Online())
}

func (s *Server) playerHandler(c *gin.Context) {
	id, ok := playerID(c)
	if !ok {
		return
	}

	player, err := s.pc.Player(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get player"})
		return
	}

	c.JSON(http.StatusOK, player)
}

func (s *Server) playerSessionsHandler(c *gin.Context) {
	id, ok := playerID(c)
	if !ok {
		return
	}

	limit, ok := limitParam(c)
	if !ok {
		return
	}

	sessions, err := s.pc.Sessions(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

func (s *Server) eventsHandler(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	events, err := s.pc.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func playerID(c *gin.Context) (model.PlayerID, bool) {
	id, ok := model.ParsePlayerID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player id"})
		return "", false
	}
	return id, true
}

func limitParam(c *gin.Context) (int64, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}
