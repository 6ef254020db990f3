package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentientplanner.app/planner/internal/auth"
	"sentientplanner.app/planner/internal/http/dto"
	"sentientplanner.app/planner/internal/queue"
)

type ReflectionHandler struct {
	producer queue.ReflectionProducer
}

func NewReflectionHandler(producer queue.ReflectionProducer) *ReflectionHandler {
	return &ReflectionHandler{producer: producer}
}

// Submit accepts a reflection and places it on the stream for the processor.
// The response is a plain acceptance; enrichment happens asynchronously.
func (h *ReflectionHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitReflectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid reflection request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := auth.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	input := queue.ReflectionInput{Text: req.Text, UserID: userID}
	if err := h.producer.Publish(ctx, input); err != nil {
		slog.ErrorContext(ctx, "failed to publish reflection", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept reflection"})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitReflectionResponse{
		Accepted: true,
		UserID:   userID,
	})
}
