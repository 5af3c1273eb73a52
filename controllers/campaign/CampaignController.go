package campaign

import (
	"net/http"
	"strconv"

	"campaign_workflow/models"
	"campaign_workflow/services/versionstore"
	"campaign_workflow/services/workflow"

	"github.com/gin-gonic/gin"
)

// Controller exposes the workflow service over HTTP. Tenant and user always
// come from RequireIdentity, never from the body.
type Controller struct {
	service *workflow.Service
}

func NewController(service *workflow.Service) *Controller {
	return &Controller{service: service}
}

type approveRequest struct {
	Note string `json:"note"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type replaceAssetRequest struct {
	OldURL                   string `json:"old_url" binding:"required"`
	NewURL                   string `json:"new_url" binding:"required"`
	SkipApprovalInvalidation bool   `json:"skip_approval_invalidation"`
	Note                     string `json:"note"`
}

type rollbackRequest struct {
	TargetRevision int    `json:"target_revision"`
	Note           string `json:"note"`
}

// CreateCampaign creates a draft campaign
// POST /api/v1/campaigns
func (h *Controller) CreateCampaign(c *gin.Context) {
	var req models.CreateCampaignPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	campaign, err := h.service.CreateCampaign(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// ListCampaigns lists the tenant's campaigns
// GET /api/v1/campaigns?page=1&page_size=20&status=review&search=spring
func (h *Controller) ListCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(versionstore.DefaultPageSize)))
	filter := versionstore.ListFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	tenantID, _ := identity(c)
	result, err := h.service.ListCampaigns(c.Request.Context(), tenantID, page, pageSize, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStatistics returns status counts for the tenant
// GET /api/v1/campaigns/stats
func (h *Controller) GetStatistics(c *gin.Context) {
	tenantID, _ := identity(c)
	stats, err := h.service.GetStatistics(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetCampaign returns the full aggregate
// GET /api/v1/campaigns/:id
func (h *Controller) GetCampaign(c *gin.Context) {
	tenantID, _ := identity(c)
	campaign, err := h.service.GetCampaign(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// CreateStrategyVersion appends a strategy version
// POST /api/v1/campaigns/:id/strategy-versions
func (h *Controller) CreateStrategyVersion(c *gin.Context) {
	var req models.StrategyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	sv, err := h.service.CreateStrategyVersion(c.Request.Context(), tenantID, c.Param("id"), req, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sv)
}

// CreateContentVersion appends a content version
// POST /api/v1/campaigns/:id/content-versions
func (h *Controller) CreateContentVersion(c *gin.Context) {
	var req models.ContentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	cv, err := h.service.CreateContentVersion(c.Request.Context(), tenantID, c.Param("id"), req, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cv)
}

// UpdateSchedule replaces the unlocked schedule slots
// PUT /api/v1/campaigns/:id/schedule
func (h *Controller) UpdateSchedule(c *gin.Context) {
	var req models.SchedulePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	slots, err := h.service.UpdateSchedule(c.Request.Context(), tenantID, c.Param("id"), req, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": slots})
}

// ApproveSection approves one section
// POST /api/v1/campaigns/:id/sections/:section/approve
func (h *Controller) ApproveSection(c *gin.Context) {
	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}
	tenantID, userID := identity(c)
	section := models.Section(c.Param("section"))
	status, err := h.service.ApproveSection(c.Request.Context(), tenantID, c.Param("id"), section, userID, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "approval": status})
}

// RejectSection rejects one section; a reason is required
// POST /api/v1/campaigns/:id/sections/:section/reject
func (h *Controller) RejectSection(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	section := models.Section(c.Param("section"))
	status, err := h.service.RejectSection(c.Request.Context(), tenantID, c.Param("id"), section, userID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "approval": status})
}

// ReplaceAsset supersedes an asset url
// POST /api/v1/campaigns/:id/assets/replace
func (h *Controller) ReplaceAsset(c *gin.Context) {
	var req replaceAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	asset, err := h.service.ReplaceAsset(c.Request.Context(), tenantID, c.Param("id"), req.OldURL, req.NewURL, userID,
		models.ReplaceAssetOptions{SkipApprovalInvalidation: req.SkipApprovalInvalidation, Note: req.Note})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

// Rollback restores the state after a past revision
// POST /api/v1/campaigns/:id/rollback
func (h *Controller) Rollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	tenantID, userID := identity(c)
	campaign, err := h.service.Rollback(c.Request.Context(), tenantID, c.Param("id"), req.TargetRevision, userID, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// PublishCampaign publishes a fully approved campaign
// POST /api/v1/campaigns/:id/publish
func (h *Controller) PublishCampaign(c *gin.Context) {
	tenantID, userID := identity(c)
	campaign, err := h.service.PublishCampaign(c.Request.Context(), tenantID, c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// ListRevisions returns the revision ledger
// GET /api/v1/campaigns/:id/revisions
func (h *Controller) ListRevisions(c *gin.Context) {
	tenantID, _ := identity(c)
	entries, err := h.service.ListRevisions(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": entries, "total": len(entries)})
}

// GetCampaignAtRevision returns the campaign as it was right after a revision
// GET /api/v1/campaigns/:id/revisions/:revision
func (h *Controller) GetCampaignAtRevision(c *gin.Context) {
	revision, err := strconv.Atoi(c.Param("revision"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "revision must be a number", "code": "invalid_payload"})
		return
	}
	tenantID, _ := identity(c)
	campaign, err := h.service.GetCampaignAtRevision(c.Request.Context(), tenantID, c.Param("id"), revision)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}
