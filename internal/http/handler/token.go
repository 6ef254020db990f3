package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentientplanner.app/planner/internal/auth"
	"sentientplanner.app/planner/internal/http/dto"
)

// TokenHandler issues development tokens. Only mounted outside production;
// production deployments sit behind an external identity provider.
type TokenHandler struct {
	tokens *auth.TokenManager
}

func NewTokenHandler(tokens *auth.TokenManager) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) Issue(c *gin.Context) {
	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.Issue(req.UserID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to issue token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, dto.IssueTokenResponse{Token: token})
}
