package rules

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudgate/internal/condition"
	"github.com/mbd888/fraudgate/internal/validation"
)

// maxConditionLength caps rule condition text; anything longer is almost
// certainly pasted garbage, not a field comparison.
const maxConditionLength = 2000

// maxActionLength caps rule action text.
const maxActionLength = 500

// Handler provides HTTP endpoints for rule CRUD.
type Handler struct {
	store Store
}

// NewHandler creates a rule CRUD handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up rule routes on the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rules", h.List)
	r.POST("/rules", h.Create)
	r.PUT("/rules/:id", h.Update)
	r.DELETE("/rules/:id", h.Delete)
}

// List handles GET /v1/rules
func (h *Handler) List(c *gin.Context) {
	all, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list rules"})
		return
	}
	if all == nil {
		all = []Rule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": all, "count": len(all)})
}

// Create handles POST /v1/rules
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Condition string `json:"condition" binding:"required"`
		Action    string `json:"action" binding:"required"`
		Enabled   *bool  `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "condition and action required"})
		return
	}

	cond := validation.SanitizeString(req.Condition, maxConditionLength)
	action := validation.SanitizeString(req.Action, maxActionLength)
	if _, err := condition.Parse(cond); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_condition", "message": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	id, err := h.store.Create(c.Request.Context(), cond, action, enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": Rule{ID: id, Condition: cond, Action: action, Enabled: enabled}})
}

// Update handles PUT /v1/rules/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}

	var req struct {
		Condition string `json:"condition" binding:"required"`
		Action    string `json:"action" binding:"required"`
		Enabled   *bool  `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "condition, action, and enabled required"})
		return
	}

	cond := validation.SanitizeString(req.Condition, maxConditionLength)
	action := validation.SanitizeString(req.Action, maxActionLength)
	if _, err := condition.Parse(cond); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_condition", "message": err.Error()})
		return
	}

	if err := h.store.Update(c.Request.Context(), id, cond, action, *req.Enabled); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": Rule{ID: id, Condition: cond, Action: action, Enabled: *req.Enabled}})
}

// Delete handles DELETE /v1/rules/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rule deleted and ids renumbered", "id": id})
}

func ruleID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "rule id must be a positive integer"})
		return 0, false
	}
	return id, true
}
