package usecase

import (
	"context"
	"fmt"
	"log"

	authrepo "leadwire-backend/internal/auth/repository"
	crmdomain "leadwire-backend/internal/crm/domain"
	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/pkg/fcm"
)

// leadNotifier pushes lead activity alerts over FCM to all of the user's
// registered devices and prunes tokens the provider rejects.
type leadNotifier struct {
	fcmClient *fcm.Client
	tokens    authrepo.FCMTokenRepository
}

func NewLeadNotifier(fcmClient *fcm.Client, tokens authrepo.FCMTokenRepository) Notifier {
	return &leadNotifier{
		fcmClient: fcmClient,
		tokens:    tokens,
	}
}

func (n *leadNotifier) NotifyLeadActivity(ctx context.Context, userID string, lead *crmdomain.Lead, msg *domain.Message) {
	deviceTokens, err := n.tokens.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[Notifier] Failed to load device tokens for user %s: %v", userID, err)
		return
	}
	if len(deviceTokens) == 0 {
		return
	}

	tokens := make([]string, 0, len(deviceTokens))
	for _, t := range deviceTokens {
		tokens = append(tokens, t.Token)
	}

	alert := fcm.Alert{
		Title: fmt.Sprintf("New email from %s", lead.DisplayName()),
		Body:  msg.Subject,
		Data: map[string]string{
			"type":       "lead_activity",
			"lead_id":    lead.ID,
			"message_id": msg.MessageID,
		},
	}

	failed, err := n.fcmClient.SendToDevices(ctx, tokens, alert)
	if err != nil {
		log.Printf("[Notifier] Push for user %s failed: %v", userID, err)
		return
	}
	for _, token := range failed {
		if err := n.tokens.DeleteToken(token); err != nil {
			log.Printf("[Notifier] Failed to prune dead token: %v", err)
		}
	}
}
