package campaign

import (
	controllers "campaign_workflow/controllers/campaign"

	"github.com/gin-gonic/gin"
)

// MapCampaignRoutes maps all campaign workflow routes
func MapCampaignRoutes(router gin.IRouter, ctrl *controllers.Controller) {
	campaigns := router.Group("/api/v1/campaigns")
	campaigns.Use(controllers.RequireIdentity())
	{
		campaigns.POST("", ctrl.CreateCampaign)
		campaigns.GET("", ctrl.ListCampaigns)
		campaigns.GET("/stats", ctrl.GetStatistics)
		campaigns.GET("/:id", ctrl.GetCampaign)

		// Versioned sub-records
		campaigns.POST("/:id/strategy-versions", ctrl.CreateStrategyVersion)
		campaigns.POST("/:id/content-versions", ctrl.CreateContentVersion)
		campaigns.PUT("/:id/schedule", ctrl.UpdateSchedule)
		campaigns.POST("/:id/assets/replace", ctrl.ReplaceAsset)

		// Approvals
		campaigns.POST("/:id/sections/:section/approve", ctrl.ApproveSection)
		campaigns.POST("/:id/sections/:section/reject", ctrl.RejectSection)
		campaigns.POST("/:id/publish", ctrl.PublishCampaign)

		// Ledger
		campaigns.GET("/:id/revisions", ctrl.ListRevisions)
		campaigns.GET("/:id/revisions/:revision", ctrl.GetCampaignAtRevision)
		campaigns.POST("/:id/rollback", ctrl.Rollback)
	}
}
