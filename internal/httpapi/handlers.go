package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/auth"
	"voice-agent-platform/internal/billing"
	"voice-agent-platform/internal/deployment"
	"voice-agent-platform/internal/rbac"
	"voice-agent-platform/internal/usage"
	"voice-agent-platform/pkg/logger"
)

type Deployer interface {
	Deploy(ctx context.Context, req deployment.DeployRequest) (deployment.DeployResult, error)
	Cleanup(ctx context.Context, req deployment.CleanupRequest) (deployment.CleanupResult, error)
}

type UsageRecorder interface {
	Record(ctx context.Context, req usage.RecordRequest) (usage.Record, error)
}

type BillingRunner interface {
	Run(ctx context.Context, start, end time.Time) (billing.Summary, error)
	RunPreviousMonth(ctx context.Context) (billing.Summary, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Deployments Deployer
	Usage       UsageRecorder
	Billing     BillingRunner
	// Audit is optional.
	Audit *audit.Service
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Deployments ---

type deployRequest struct {
	AgentID              string `json:"agentId"`
	BusinessName         string `json:"businessName"`
	CustomInstructions   string `json:"customInstructions"`
	InitiateConversation bool   `json:"initiateConversation"`
	InitialMessage       string `json:"initialMessage"`
	PhoneNumber          string `json:"phoneNumber"`
	DocumentNamespace    string `json:"documentNamespace"`
}

func (h Handlers) Deploy(c *gin.Context) {
	if h.Deployments == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "deployments not configured"})
		return
	}
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agentId required"})
		return
	}

	res, err := h.Deployments.Deploy(c.Request.Context(), deployment.DeployRequest{
		AccountID:   scopeAccount(c.Request.Context()),
		AgentID:     req.AgentID,
		PhoneNumber: req.PhoneNumber,
		Config: deployment.AgentConfig{
			BusinessName:         req.BusinessName,
			CustomInstructions:   req.CustomInstructions,
			InitiateConversation: req.InitiateConversation,
			InitialMessage:       req.InitialMessage,
			DocumentNamespace:    req.DocumentNamespace,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) Cleanup(c *gin.Context) {
	if h.Deployments == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "deployments not configured"})
		return
	}
	agentID := c.Param("agent_id")
	if agentID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id required"})
		return
	}

	res, err := h.Deployments.Cleanup(c.Request.Context(), deployment.CleanupRequest{
		AccountID: scopeAccount(c.Request.Context()),
		AgentID:   agentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Usage ---

type recordUsageRequest struct {
	AgentID         string          `json:"agent_id"`
	DurationMinutes decimal.Decimal `json:"duration_minutes"`
	Timestamp       *time.Time      `json:"timestamp,omitempty"`
}

func (h Handlers) RecordUsage(c *gin.Context) {
	if h.Usage == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage not configured"})
		return
	}
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rr := usage.RecordRequest{
		AccountID:       accountID,
		AgentID:         req.AgentID,
		DurationMinutes: req.DurationMinutes,
	}
	if req.Timestamp != nil {
		rr.Timestamp = *req.Timestamp
	}
	rec, err := h.Usage.Record(c.Request.Context(), rr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// --- Admin billing ---

type runBillingRequest struct {
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// RunBilling triggers one billing run. Without an explicit period it bills the
// previous calendar month.
func (h Handlers) RunBilling(c *gin.Context) {
	if h.Billing == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	var req runBillingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if (req.PeriodStart == nil) != (req.PeriodEnd == nil) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "period_start and period_end must be given together"})
		return
	}

	ctx := c.Request.Context()
	var (
		sum billing.Summary
		err error
	)
	if req.PeriodStart != nil {
		sum, err = h.Billing.Run(ctx, *req.PeriodStart, *req.PeriodEnd)
	} else {
		sum, err = h.Billing.RunPreviousMonth(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	h.auditBillingRun(c, sum)
	c.JSON(http.StatusOK, sum)
}

func (h Handlers) auditBillingRun(c *gin.Context, sum billing.Summary) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	id := auth.IdentityFrom(ctx)
	md, _ := json.Marshal(map[string]any{
		"period_start": sum.PeriodStart.Format(time.RFC3339),
		"processed":    sum.Processed,
		"skipped":      sum.Skipped,
		"failed":       len(sum.Failed),
	})
	if err := h.Audit.LogAdminAction(ctx, id.AccountID, id.UserID, id.Role, c.ClientIP(), "billing run triggered", string(md)); err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err.Error())
	}
}

// scopeAccount returns the account a request is confined to. Super admins act
// across accounts.
func scopeAccount(ctx context.Context) string {
	id := auth.IdentityFrom(ctx)
	if rbac.IsSuperAdmin(id.Role) {
		return ""
	}
	return id.AccountID
}
