package decision

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudgate/internal/metrics"
	"github.com/mbd888/fraudgate/internal/validation"
)

// maxBatchSize caps the number of transactions in one batch request.
const maxBatchSize = 1000

// maxDetailsLength caps fraud report detail text.
const maxDetailsLength = 2000

// ReportFeed receives accepted fraud reports, on top of persistence.
type ReportFeed interface {
	PublishReport(r *FraudReport)
}

// Handler provides HTTP endpoints for decisions and fraud reports.
type Handler struct {
	pipeline *Pipeline
	store    Store
	workers  int
	feed     ReportFeed
}

// NewHandler creates a decision handler. workers bounds batch parallelism.
func NewHandler(pipeline *Pipeline, store Store, workers int) *Handler {
	return &Handler{pipeline: pipeline, store: store, workers: workers}
}

// AttachFeed wires a realtime feed for accepted reports. Call before serving.
func (h *Handler) AttachFeed(f ReportFeed) {
	h.feed = f
}

// RegisterRoutes sets up decision and report routes on the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/decisions", h.Decide)
	r.POST("/decisions/batch", h.DecideBatch)
	r.GET("/decisions", h.List)
	r.GET("/decisions/:id", h.Get)
	r.POST("/reports", h.Report)
}

// Decide handles POST /v1/decisions
//
// The computed decision is returned even when persistence fails; the
// "persisted" field tells the caller whether the record is durable.
func (h *Handler) Decide(c *gin.Context) {
	var txn Transaction
	if err := c.ShouldBindJSON(&txn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "body must be a JSON object of transaction fields"})
		return
	}

	d, err := h.pipeline.Decide(c.Request.Context(), txn)
	switch {
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate", "message": "transaction already decided", "decision": d})
	case err != nil && d != nil:
		c.JSON(http.StatusOK, gin.H{"decision": d, "persisted": false, "warning": "storage_unavailable"})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable", "message": "decision could not be made"})
	default:
		c.JSON(http.StatusOK, gin.H{"decision": d, "persisted": true})
	}
}

// DecideBatch handles POST /v1/decisions/batch
func (h *Handler) DecideBatch(c *gin.Context) {
	var req struct {
		Transactions []Transaction `json:"transactions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "transactions array required"})
		return
	}
	if len(req.Transactions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "transactions array must not be empty"})
		return
	}
	if len(req.Transactions) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "batch exceeds maximum size"})
		return
	}

	results := h.pipeline.RunBatch(c.Request.Context(), req.Transactions, h.workers)
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// Get handles GET /v1/decisions/:id
func (h *Handler) Get(c *gin.Context) {
	d, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no decision for this transaction id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load decision"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": d})
}

// List handles GET /v1/decisions
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	out, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list decisions"})
		return
	}
	if out == nil {
		out = []*Decision{}
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out, "count": len(out)})
}

// Report handles POST /v1/reports
//
// Acknowledgment carries reporting_acknowledged plus an integer failure
// code: 0 on success, 1 when this transaction id was already reported.
func (h *Handler) Report(c *gin.Context) {
	var req struct {
		TransactionID     string `json:"transaction_id" binding:"required"`
		ReportingEntityID string `json:"reporting_entity_id" binding:"required"`
		FraudDetails      string `json:"fraud_details" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "transaction_id, reporting_entity_id, and fraud_details required"})
		return
	}

	report := &FraudReport{
		TransactionID:     validation.SanitizeString(req.TransactionID, 128),
		ReportingEntityID: validation.SanitizeString(req.ReportingEntityID, 128),
		FraudDetails:      validation.SanitizeString(req.FraudDetails, maxDetailsLength),
		ReportTime:        time.Now().UTC(),
	}

	if err := h.store.Report(c.Request.Context(), report); err != nil {
		if errors.Is(err, ErrDuplicate) {
			metrics.ReportsTotal.WithLabelValues("duplicate").Inc()
			c.JSON(http.StatusConflict, gin.H{"reporting_acknowledged": false, "failure_code": 1})
			return
		}
		metrics.ReportsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to record report"})
		return
	}

	metrics.ReportsTotal.WithLabelValues("accepted").Inc()
	if h.feed != nil {
		h.feed.PublishReport(report)
	}
	c.JSON(http.StatusCreated, gin.H{"reporting_acknowledged": true, "failure_code": 0})
}
