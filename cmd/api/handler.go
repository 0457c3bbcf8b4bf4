package api

import (
	authrepo "leadwire-backend/internal/auth/repository"
	authusecase "leadwire-backend/internal/auth/usecase"
	mailsyncdelivery "leadwire-backend/internal/mailsync/delivery"
	"leadwire-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authusecase.AuthUsecase
	fcmRepo        authrepo.FCMTokenRepository
	mailboxHandler *mailsyncdelivery.MailboxHandler
	webhookHandler *mailsyncdelivery.WebhookHandler
	config         *config.Config
}

func NewHandler(authUc authusecase.AuthUsecase, fcmRepo authrepo.FCMTokenRepository, mailboxHandler *mailsyncdelivery.MailboxHandler, webhookHandler *mailsyncdelivery.WebhookHandler, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:    authUc,
		fcmRepo:        fcmRepo,
		mailboxHandler: mailboxHandler,
		webhookHandler: webhookHandler,
		config:         cfg,
	}
}

func (h *Handler) Start(addr string) error {
	if h.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.fcmRepo, h.mailboxHandler, h.webhookHandler)

	return r.Run(addr)
}
