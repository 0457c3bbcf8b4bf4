package api

import (
	"net/http"

	"leadwire-backend/internal/auth/delivery"
	authrepo "leadwire-backend/internal/auth/repository"
	authusecase "leadwire-backend/internal/auth/usecase"
	mailsyncdelivery "leadwire-backend/internal/mailsync/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authusecase.AuthUsecase, fcmRepo authrepo.FCMTokenRepository, mailboxHandler *mailsyncdelivery.MailboxHandler, webhookHandler *mailsyncdelivery.WebhookHandler) {
	authHandler := delivery.NewAuthHandler(authUc, fcmRepo)

	// Provider webhooks live outside /api: no auth middleware, the
	// clientState check inside the handler is the gate.
	r.POST("/webhooks/graph", webhookHandler.HandleGraphNotification)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUc), authHandler.Me)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUc))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Mailbox routes (protected)
		mailbox := api.Group("/mailbox")
		mailbox.Use(delivery.AuthMiddleware(authUc))
		{
			mailbox.POST("/connect", mailboxHandler.Connect)
			mailbox.DELETE("", mailboxHandler.Disconnect)
			mailbox.POST("/sync", mailboxHandler.Sync)
			mailbox.GET("/status", mailboxHandler.Status)
			mailbox.GET("/messages", mailboxHandler.Messages)
		}
	}
}
