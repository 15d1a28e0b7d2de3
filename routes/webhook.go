package routes

import (
	"io"
	"net/http"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/telemetry"
	"social-autoreply-platform/internal/webhook"
	"social-autoreply-platform/middleware"
	"social-autoreply-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	WebhookPath         = "/api/instagram-webhook"
	maxWebhookBodyBytes = 1 << 20
)

type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
}

func SetupWebhookRoutes(router *gin.Engine, cfg WebhookConfig, dispatcher services.Dispatcher, metrics *telemetry.Metrics) {
	router.GET(WebhookPath, handleWebhookVerify(cfg.VerifyToken))
	router.POST(WebhookPath, handleWebhookNotification(cfg.AppSecret, dispatcher, metrics))
}

// handleWebhookVerify answers the subscription handshake. Anything else
// still gets a 200 so probes learn nothing.
func handleWebhookVerify(verifyToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && verifyToken != "" && token == verifyToken {
			logger.Info("Webhook verified")
			c.String(http.StatusOK, challenge)
			return
		}

		c.String(http.StatusOK, "Webhook active")
	}
}

// handleWebhookNotification acknowledges first and hands the body to the
// dispatcher. The sender never sees a failure.
func handleWebhookNotification(appSecret string, dispatcher services.Dispatcher, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		deliveryID := uuid.NewString()
		log := logger.With("delivery_id", deliveryID, "request_id", middleware.GetRequestID(c))

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		c.Status(http.StatusOK)
		if err != nil {
			log.Warn("Failed to read webhook body", "error", err)
			metrics.RecordDelivery("unreadable")
			return
		}

		if !webhook.VerifySignature(appSecret, body, c.GetHeader(webhook.SignatureHeader)) {
			log.Warn("Dropping webhook with invalid signature")
			metrics.RecordDelivery("invalid_signature")
			return
		}

		if err := dispatcher.Dispatch(c.Request.Context(), deliveryID, body); err != nil {
			log.Error("Failed to dispatch webhook delivery", "error", err)
			metrics.RecordDelivery("dispatch_failed")
			return
		}
		log.Debug("Webhook delivery dispatched", "bytes", len(body))
	}
}
