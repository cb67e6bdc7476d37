package handlers

import (
	"net/http"

	"github.com/bookora/payments/internal/app/service/idempotency"
	"github.com/bookora/payments/internal/app/service/reconciliation"
	"github.com/bookora/payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// ApiListWebhookEvents returns a paginated, filterable view of the event
// ledger for operational debugging.
func ApiListWebhookEvents(idem *idempotency.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req idempotency.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := idem.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiListReconciliationEntries lists the retry queue.
func ApiListReconciliationEntries(queue *reconciliation.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reconciliation.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := queue.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiRetryReconciliation re-drives one queue entry immediately, skipping its
// backoff window.
func ApiRetryReconciliation(worker *reconciliation.Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			EntryID string `json:"entry_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.EntryID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing entry_id"))
			return
		}
		if err := worker.Retry(c.Request.Context(), req.EntryID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminRoutes(r gin.IRouter, idem *idempotency.Service, queue *reconciliation.Queue, worker *reconciliation.Worker) {
	r.POST("/list_webhook_events", ApiListWebhookEvents(idem))
	r.POST("/list_reconciliation_entries", ApiListReconciliationEntries(queue))
	r.POST("/retry_reconciliation", ApiRetryReconciliation(worker))
}
