package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/internal/mailsync/dto"
	"leadwire-backend/internal/mailsync/repository"
	"leadwire-backend/internal/mailsync/usecase"

	"github.com/gin-gonic/gin"
)

// MailboxHandler exposes the mailbox connection lifecycle and the mirrored
// message listing. All routes sit behind the auth middleware.
type MailboxHandler struct {
	orch     *usecase.Orchestrator
	creds    repository.CredentialRepository
	messages repository.MessageRepository
	queue    *usecase.SyncQueue
}

func NewMailboxHandler(orch *usecase.Orchestrator, creds repository.CredentialRepository, messages repository.MessageRepository, queue *usecase.SyncQueue) *MailboxHandler {
	return &MailboxHandler{
		orch:     orch,
		creds:    creds,
		messages: messages,
		queue:    queue,
	}
}

// Connect stores the mailbox credential and kicks off the initial sync.
func (h *MailboxHandler) Connect(c *gin.Context) {
	var req dto.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	cred := &domain.Credential{
		MailboxAddress:    req.MailboxAddress,
		ProviderAccountID: req.ProviderAccountID,
		TenantID:          req.TenantID,
		EnvironmentTag:    req.EnvironmentTag,
		RefreshToken:      req.RefreshToken,
	}
	if err := h.creds.Put(userID, cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.queue.TriggerNow(userID)
	c.JSON(http.StatusCreated, gin.H{"message": "mailbox connected, initial sync queued"})
}

func (h *MailboxHandler) Disconnect(c *gin.Context) {
	// Empty body is fine, purge just defaults to false.
	var req dto.DisconnectRequest
	_ = c.ShouldBindJSON(&req)

	userID := c.GetString("userID")
	if err := h.orch.Disconnect(c.Request.Context(), userID, req.Purge); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no mailbox connected"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mailbox disconnected"})
}

// Sync queues a manual sync run, skipping the debounce window.
func (h *MailboxHandler) Sync(c *gin.Context) {
	userID := c.GetString("userID")
	if _, err := h.creds.Get(userID); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no mailbox connected"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.queue.TriggerNow(userID)
	c.JSON(http.StatusAccepted, gin.H{"message": "sync queued"})
}

func (h *MailboxHandler) Status(c *gin.Context) {
	userID := c.GetString("userID")
	status, err := h.orch.Status(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Messages lists the user's mirrored messages, newest first.
func (h *MailboxHandler) Messages(c *gin.Context) {
	userID := c.GetString("userID")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	messages, err := h.messages.ListByUser(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}
