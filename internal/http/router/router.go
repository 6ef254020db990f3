package router

import (
	"github.com/gin-gonic/gin"

	"sentientplanner.app/planner/internal/auth"
	"sentientplanner.app/planner/internal/http/handler"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/store"
)

type RouterConfig struct {
	IsProduction bool
}

func SetupRoutes(router *gin.Engine, tokens *auth.TokenManager, producer queue.ReflectionProducer, plans store.PlanStore, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if !cfg.IsProduction {
		tokenHandler := handler.NewTokenHandler(tokens)
		router.POST("/auth/token", tokenHandler.Issue)
	}

	v1 := router.Group("/api/v1")
	v1.Use(auth.Middleware(tokens))
	{
		reflectionHandler := handler.NewReflectionHandler(producer)
		v1.POST("/reflections", reflectionHandler.Submit)

		planHandler := handler.NewPlanHandler(plans)
		v1.GET("/plans/:userId", planHandler.List)
	}
}
