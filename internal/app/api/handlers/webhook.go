package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/bookora/payments/internal/app/service/webhook"
	"github.com/bookora/payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps the raw payload read; gateway events are small.
const maxWebhookBody = 1 << 20

// ApiPaystackWebhook receives gateway events. The contract with the gateway:
// 401 for a bad signature, 400 for an unparsable envelope, 200 for everything
// else - including internal processing failures, which are retried out of
// band so the gateway does not hammer us.
func ApiPaystackWebhook(h *webhook.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "failed to read body"))
			return
		}

		err = h.Handle(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
		switch {
		case errors.Is(err, webhook.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, "invalid signature"))
		case errors.Is(err, webhook.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "malformed payload"))
		default:
			c.JSON(http.StatusOK, gin.H{"received": true})
		}
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *webhook.Handler) {
	r.POST("/webhook", ApiPaystackWebhook(h))
}
