package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/models"
)

func (a *API) ListOutbox() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit")
		if err != nil {
			respondError(c, "ListOutbox", err)
			return
		}
		events, err := models.ListOutboxEvents(c.Request.Context(), models.OutboxFilter{
			Status:    c.Query("status"),
			EventType: c.Query("eventType"),
			Limit:     limit,
		})
		if err != nil {
			respondError(c, "ListOutbox", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
	}
}

func (a *API) RequeueOutbox() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := models.RequeueOutboxEvent(c.Request.Context(), id); err != nil {
			respondError(c, "RequeueOutbox", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
