package delivery

import (
	"log"
	"net/http"
	"time"

	authusecase "leadwire-backend/internal/auth/usecase"
	"leadwire-backend/internal/mailsync/dto"
	"leadwire-backend/internal/mailsync/usecase"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives provider change notifications. It does no mail
// work itself; every accepted notification just lands in the sync queue.
type WebhookHandler struct {
	queue    *usecase.SyncQueue
	resolver authusecase.Resolver
}

func NewWebhookHandler(queue *usecase.SyncQueue, resolver authusecase.Resolver) *WebhookHandler {
	return &WebhookHandler{
		queue:    queue,
		resolver: resolver,
	}
}

// HandleGraphNotification answers the subscription validation handshake and
// enqueues real notifications. The response must go out fast; the provider
// retries or drops subscriptions on slow endpoints.
func (h *WebhookHandler) HandleGraphNotification(c *gin.Context) {
	// Subscription validation: echo the token back as plain text.
	if token := c.Query("validationToken"); token != "" {
		c.Data(http.StatusOK, "text/plain", []byte(token))
		return
	}

	var envelope dto.NotificationEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed notification"})
		return
	}

	accepted := 0
	for _, n := range envelope.Value {
		if n.ClientState == "" {
			log.Printf("[Webhook] Dropping notification without clientState, subscription %s", n.SubscriptionID)
			continue
		}
		userID, err := h.resolver.Resolve(n.ClientState)
		if err != nil {
			log.Printf("[Webhook] Unresolvable clientState on subscription %s: %v", n.SubscriptionID, err)
			continue
		}

		h.queue.Enqueue(userID, usecase.EventMeta{
			SubscriptionID: n.SubscriptionID,
			ChangeType:     n.ChangeType,
			Resource:       n.Resource,
			ReceivedAt:     time.Now(),
		})
		accepted++
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}
