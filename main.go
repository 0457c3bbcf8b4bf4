package main

import (
	"context"
	"log"
	"strings"
	"time"

	api "leadwire-backend/cmd/api"
	authdomain "leadwire-backend/internal/auth/domain"
	authrepo "leadwire-backend/internal/auth/repository"
	authusecase "leadwire-backend/internal/auth/usecase"
	crmdomain "leadwire-backend/internal/crm/domain"
	crmrepo "leadwire-backend/internal/crm/repository"
	mailsyncdelivery "leadwire-backend/internal/mailsync/delivery"
	mailsyncdomain "leadwire-backend/internal/mailsync/domain"
	mailsyncrepo "leadwire-backend/internal/mailsync/repository"
	mailsyncusecase "leadwire-backend/internal/mailsync/usecase"
	"leadwire-backend/pkg/config"
	"leadwire-backend/pkg/crypto"
	"leadwire-backend/pkg/database"
	"leadwire-backend/pkg/fcm"
	"leadwire-backend/pkg/graph"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
		&crmdomain.Lead{},
		&mailsyncdomain.Credential{},
		&mailsyncdomain.SyncState{},
		&mailsyncdomain.Message{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Credential encryption
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize encryptor:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authrepo.NewUserRepository(db)
	fcmTokenRepo := authrepo.NewFCMTokenRepository(db)
	leadRepo := crmrepo.NewLeadRepository(db)
	resolver := authusecase.NewIdentityResolver(userRepo)
	credRepo := mailsyncrepo.NewCredentialRepository(db, encryptor, resolver)
	stateRepo := mailsyncrepo.NewSyncStateRepository(db, resolver)
	messageRepo := mailsyncrepo.NewMessageRepository(db)

	// Mail provider
	graphClient := graph.NewClient(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret, cfg.MicrosoftTenant, cfg.GraphBaseURL)

	// Initialize FCM Client (optional, sync works without push)
	var notifier mailsyncusecase.Notifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			notifier = mailsyncusecase.NewLeadNotifier(fcmClient, fcmTokenRepo)
		}
	} else {
		log.Println("[WARN] No Firebase credentials configured, push notifications disabled")
	}

	// Sync engine
	hydrator := mailsyncusecase.NewHydrator(graphClient, messageRepo, cfg.HydrationWorkers, cfg.HydrationBatchSize, cfg.HydrationBatchPause)
	hydrator.Start()

	persister := mailsyncusecase.NewPersister(messageRepo, leadRepo, notifier, hydrator)
	deltaEngine := mailsyncusecase.NewDeltaEngine(graphClient, cfg.SnapshotOnEmptyDelta, cfg.SnapshotPageSize)

	notificationURL := ""
	if cfg.WebhookBaseURL != "" {
		notificationURL = strings.TrimRight(cfg.WebhookBaseURL, "/") + "/webhooks/graph"
	}
	subManager := mailsyncusecase.NewSubscriptionManager(graphClient, stateRepo, notificationURL, cfg.SubscriptionTTL, cfg.RenewalThreshold)

	orchestrator := mailsyncusecase.NewOrchestrator(credRepo, stateRepo, messageRepo, graphClient, deltaEngine, persister, subManager, cfg.SyncTimeout)

	syncQueue := mailsyncusecase.NewSyncQueue(cfg.DebounceInterval, func(ctx context.Context, userID string, events []mailsyncusecase.EventMeta) {
		log.Printf("[Queue] Running sync for user %s (%d events)", userID, len(events))
		if err := orchestrator.SyncUser(ctx, userID); err != nil {
			log.Printf("[Queue] Sync for user %s failed: %v", userID, err)
		}
	})

	// Periodic sweep catches anything webhooks missed and renews
	// subscriptions for quiet mailboxes. Sweeps feed the queue so a sweep
	// never runs concurrently with a webhook-triggered sync for the same user.
	go func() {
		ticker := time.NewTicker(cfg.SyncSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			orchestrator.SyncAll(syncQueue)
		}
	}()

	// Initialize use cases and HTTP handlers
	authUc := authusecase.NewAuthUsecase(userRepo, cfg)
	mailboxHandler := mailsyncdelivery.NewMailboxHandler(orchestrator, credRepo, messageRepo, syncQueue)
	webhookHandler := mailsyncdelivery.NewWebhookHandler(syncQueue, resolver)

	handler := api.NewHandler(authUc, fcmTokenRepo, mailboxHandler, webhookHandler, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
