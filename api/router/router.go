package router

import (
	"contract-guard/api/handler"
	"contract-guard/api/middleware"

	"github.com/gin-gonic/gin"
)

type Options struct {
	APIKey       string
	RateLimitRPM int
}

func RegisterRoutes(r *gin.Engine, h *handler.ContractHandler, opts Options) {
	r.Use(middleware.RequestID(), middleware.Recovery(), middleware.RequestLogger())
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(opts.RateLimitRPM), middleware.APIKey(opts.APIKey))
	{
		api.GET("/health", h.Health)

		analysis := api.Group("/analysis")
		{
			analysis.POST("", h.Analyze)
			analysis.POST("/stream", h.StreamAnalysis)
			analysis.POST("/batch", h.Batch)
			analysis.GET("/:id", h.GetAnalysis)
			analysis.POST("/:id/issues/:issue_id/fix", h.ApplyFix)
			analysis.POST("/:id/reanalyze", h.Reanalyze)
		}
		api.GET("/jobs/:id", h.GetJob)
		api.GET("/templates/:industry", h.GetTemplates)
		api.GET("/issues/search", h.SearchIssues)
	}
}
