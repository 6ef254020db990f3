package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sentientplanner.app/planner/internal/auth"
	"sentientplanner.app/planner/internal/http/dto"
	"sentientplanner.app/planner/internal/model"
	"sentientplanner.app/planner/internal/store"
)

const defaultPlanLimit = 10

type PlanHandler struct {
	plans store.PlanStore
}

func NewPlanHandler(plans store.PlanStore) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List returns a user's plans, newest first. Callers may only read their own
// plans.
func (h *PlanHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.Param("userId")
	if userID != auth.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot read another user's plans"})
		return
	}

	limit := int32(defaultPlanLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = int32(parsed)
	}

	records, err := h.plans.ListByUser(ctx, userID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list plans", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list plans"})
		return
	}

	resp := dto.ListPlansResponse{
		UserID: userID,
		Plans:  make([]dto.PlanRecord, 0, len(records)),
	}
	for _, record := range records {
		if record.ArtifactStatus == model.ArtifactPending {
			resp.PendingArtifacts++
		}
		resp.Plans = append(resp.Plans, toPlanDTO(record))
	}

	c.JSON(http.StatusOK, resp)
}

func toPlanDTO(record model.PlanRecord) dto.PlanRecord {
	plan := make([]dto.DayEntry, 0, len(record.WeeklyPlan))
	for _, day := range record.WeeklyPlan {
		plan = append(plan, dto.DayEntry{
			Day:      day.Day,
			Tasks:    day.Tasks,
			Focus:    day.Focus,
			SelfCare: day.SelfCare,
		})
	}
	return dto.PlanRecord{
		RecordID:            record.RecordID,
		CreatedAt:           record.CreatedAt,
		Emotion:             record.Emotion,
		SentimentScore:      record.SentimentScore,
		WeeklyPlan:          plan,
		ArtifactURL:         record.ArtifactURL,
		ArtifactStatus:      string(record.ArtifactStatus),
		ArtifactGeneratedAt: record.ArtifactGeneratedAt,
		Fallback:            record.Fallback,
	}
}
