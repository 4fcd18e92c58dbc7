package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"voicegate/internal/auth"
	"voicegate/internal/callrecord"
	"voicegate/internal/rbac"
	"voicegate/internal/registry"
	"voicegate/internal/voiceai"

	"github.com/gin-gonic/gin"
)

// Handlers groups the dashboard HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Registry *registry.Service
	Records  callrecord.Repository
	Vendor   voiceai.Client
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrgID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, org_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrgID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Phone registry ---

type provisionRequest struct {
	Number        string `json:"number"`
	AgentID       string `json:"agent_id"`
	VendorAgentID string `json:"vendor_agent_id"`
}

func (h Handlers) ProvisionNumber(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	reg, err := h.Registry.Provision(c.Request.Context(), orgID, req.Number, req.AgentID, req.VendorAgentID)
	if err != nil {
		h.registryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

type bindAgentRequest struct {
	AgentID       string `json:"agent_id"`
	VendorAgentID string `json:"vendor_agent_id"`
}

func (h Handlers) BindAgent(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var req bindAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	reg, err := h.Registry.BindAgent(c.Request.Context(), orgID, c.Param("id"), req.AgentID, req.VendorAgentID)
	if err != nil {
		h.registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h Handlers) SetRegistrationActive(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "active required"})
		return
	}
	reg, err := h.Registry.SetActive(c.Request.Context(), orgID, c.Param("id"), *req.Active)
	if err != nil {
		h.registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h Handlers) GetRegistration(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	reg, err := h.Registry.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		h.registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h Handlers) ListRegistrations(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	regs, err := h.Registry.List(c.Request.Context(), orgID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if regs == nil {
		regs = []registry.Registration{}
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

// --- Assistant passthrough ---

// GetAssistant reads the vendor-side agent configuration behind a
// registration. Access goes through the registration so tenancy is enforced
// by the org-scoped lookup, not by trusting a raw vendor id from the client.
func (h Handlers) GetAssistant(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	reg, err := h.Registry.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		h.registryError(c, err)
		return
	}
	if reg.VendorAgentID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no agent bound"})
		return
	}
	a, err := h.Vendor.GetAssistant(c.Request.Context(), reg.VendorAgentID)
	if err != nil {
		h.vendorError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) UpdateAssistant(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	reg, err := h.Registry.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		h.registryError(c, err)
		return
	}
	if reg.VendorAgentID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no agent bound"})
		return
	}
	var req voiceai.UpdateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Vendor.UpdateAssistant(c.Request.Context(), reg.VendorAgentID, req)
	if err != nil {
		h.vendorError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// --- Call records ---

func (h Handlers) ListCalls(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	filter := callrecord.ListFilter{
		Status: callrecord.Status(c.Query("status")),
		Limit:  atoiOr(c.Query("limit"), 0),
		Offset: atoiOr(c.Query("offset"), 0),
	}
	if filter.Status != "" && !callrecord.ValidStatus(filter.Status) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if raw := c.Query("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = &ts
	}

	out, err := h.Records.ListByOrg(c.Request.Context(), orgID, filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if out == nil {
		out = []callrecord.CallRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) GetCall(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	rec, err := h.Records.GetBySessionID(c.Request.Context(), c.Param("session_id"))
	// Cross-org reads look exactly like missing rows.
	if errors.Is(err, callrecord.ErrNotFound) || (err == nil && rec.OrgID != orgID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- helpers ---

func (h Handlers) requireOrg(c *gin.Context) (string, bool) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return "", false
	}
	return orgID, true
}

func (h Handlers) registryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, registry.ErrNumberTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "number already registered"})
	case errors.Is(err, registry.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registry operation failed"})
	}
}

func (h Handlers) vendorError(c *gin.Context, err error) {
	switch voiceai.KindOf(err) {
	case voiceai.ErrKindRejected:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "vendor rejected request"})
	case voiceai.ErrKindTimeout, voiceai.ErrKindUnavailable:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor unavailable"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "vendor request failed"})
	}
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Convenience middleware bundles.

func RequireOrgAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireOrg(), rbac.RequireAnyRole(roles...)}
}
