package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/internal/mailsync/repository"
)

// HydrationJob asks for the full body of one already-persisted message.
type HydrationJob struct {
	UserID      string
	Mailbox     string
	MessageID   string
	AccessToken string
}

// Hydrator fetches message bodies in the background. Sync rounds only store
// previews; a worker pool fills in bodies afterwards, pacing itself so a
// large backlog does not hammer the provider.
type Hydrator struct {
	provider   domain.MailProvider
	messages   repository.MessageRepository
	jobs       chan HydrationJob
	wg         sync.WaitGroup
	workers    int
	batchSize  int
	batchPause time.Duration
}

func NewHydrator(provider domain.MailProvider, messages repository.MessageRepository, workers, batchSize int, batchPause time.Duration) *Hydrator {
	return &Hydrator{
		provider:   provider,
		messages:   messages,
		jobs:       make(chan HydrationJob, 256),
		workers:    workers,
		batchSize:  batchSize,
		batchPause: batchPause,
	}
}

func (h *Hydrator) Start() {
	for i := 0; i < h.workers; i++ {
		h.wg.Add(1)
		go h.worker(i)
	}
	log.Printf("[Hydrator] Started %d workers", h.workers)
}

// Stop drains the queue and waits for in-flight jobs.
func (h *Hydrator) Stop() {
	close(h.jobs)
	h.wg.Wait()
	log.Println("[Hydrator] Stopped")
}

// Enqueue is non-blocking. A full queue drops the job; the message simply
// keeps its preview.
func (h *Hydrator) Enqueue(job HydrationJob) {
	select {
	case h.jobs <- job:
	default:
		log.Printf("[Hydrator] Queue full, dropping body fetch for message %s", job.MessageID)
	}
}

func (h *Hydrator) worker(id int) {
	defer h.wg.Done()

	processed := 0
	for job := range h.jobs {
		h.hydrate(job)
		processed++
		if h.batchSize > 0 && processed%h.batchSize == 0 {
			time.Sleep(h.batchPause)
		}
	}
	log.Printf("[Hydrator] Worker %d exiting after %d jobs", id, processed)
}

func (h *Hydrator) hydrate(job HydrationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body, err := h.provider.MessageBody(ctx, job.AccessToken, job.Mailbox, job.MessageID)
	if err != nil {
		// The preview stays; not worth failing the sync over.
		log.Printf("[Hydrator] Body fetch failed for message %s: %v", job.MessageID, err)
		return
	}

	if err := h.messages.UpdateBody(job.MessageID, body); err != nil {
		log.Printf("[Hydrator] Body write failed for message %s: %v", job.MessageID, err)
	}
}
