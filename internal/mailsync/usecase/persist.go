package usecase

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	crmdomain "leadwire-backend/internal/crm/domain"
	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/internal/mailsync/repository"

	"github.com/google/uuid"
)

// LeadMatcher resolves a counterparty address to a known lead.
// Satisfied by the CRM lead repository.
type LeadMatcher interface {
	FindByEmail(email string) (*crmdomain.Lead, error)
}

// Notifier pushes a lead activity alert to the user's devices. Failures are
// the notifier's problem; persistence never depends on delivery.
type Notifier interface {
	NotifyLeadActivity(ctx context.Context, userID string, lead *crmdomain.Lead, msg *domain.Message)
}

// PersistStats summarizes one persistence pass.
type PersistStats struct {
	Total    int
	New      int
	Linked   int
	Notified int
}

// Persister writes fetched messages into the mirror. Writes are keyed on the
// provider message id, so re-running a batch is harmless.
type Persister struct {
	messages repository.MessageRepository
	leads    LeadMatcher
	notifier Notifier
	hydrator *Hydrator
}

func NewPersister(messages repository.MessageRepository, leads LeadMatcher, notifier Notifier, hydrator *Hydrator) *Persister {
	return &Persister{
		messages: messages,
		leads:    leads,
		notifier: notifier,
		hydrator: hydrator,
	}
}

// Persist upserts the batch for one user, queues body hydration for messages
// not seen before, and fires lead alerts for new incoming mail that matches
// a known lead.
func (p *Persister) Persist(ctx context.Context, userID, mailbox, accessToken string, raws []domain.RawMessage) (*PersistStats, error) {
	stats := &PersistStats{Total: len(raws)}
	if len(raws) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(raws))
	for _, raw := range raws {
		ids = append(ids, raw.ID)
	}
	existing, err := p.messages.ExistingIDs(ids)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rows := make([]*domain.Message, 0, len(raws))
	type alert struct {
		lead *crmdomain.Lead
		msg  *domain.Message
	}
	var alerts []alert

	for i := range raws {
		raw := &raws[i]
		_, seen := existing[raw.ID]

		direction := domain.DirectionIncoming
		if strings.EqualFold(strings.TrimSpace(raw.From), strings.TrimSpace(mailbox)) {
			direction = domain.DirectionOutgoing
		}

		lead := p.matchLead(raw, direction)

		recipients, err := json.Marshal(raw.To)
		if err != nil {
			recipients = []byte("[]")
		}

		row := &domain.Message{
			ID:                 uuid.New().String(),
			MessageID:          raw.ID,
			UserID:             userID,
			Direction:          direction,
			SenderAddress:      raw.From,
			RecipientAddresses: string(recipients),
			Subject:            raw.Subject,
			BodyPreview:        raw.BodyPreview,
			SentAt:             raw.ReceivedAt,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if lead != nil {
			row.LinkedEntityID = &lead.ID
			stats.Linked++
		}
		rows = append(rows, row)

		if !seen {
			stats.New++
			if direction == domain.DirectionIncoming && lead != nil {
				alerts = append(alerts, alert{lead: lead, msg: row})
			}
		}
	}

	if err := p.messages.BulkUpsert(rows); err != nil {
		return nil, err
	}

	// Hydration and alerts only after the rows are down. A message that
	// never lands never gets a dangling body job or a phantom alert.
	for i := range raws {
		if _, seen := existing[raws[i].ID]; seen {
			continue
		}
		p.hydrator.Enqueue(HydrationJob{
			UserID:      userID,
			Mailbox:     mailbox,
			MessageID:   raws[i].ID,
			AccessToken: accessToken,
		})
	}

	if p.notifier != nil {
		for _, a := range alerts {
			p.notifier.NotifyLeadActivity(ctx, userID, a.lead, a.msg)
			stats.Notified++
		}
	}

	log.Printf("[Sync] Persisted %d messages for user %s (%d new, %d linked, %d alerts)",
		stats.Total, userID, stats.New, stats.Linked, stats.Notified)
	return stats, nil
}

// matchLead looks up the counterparty of the message: the sender for
// incoming mail, the first recipient for outgoing.
func (p *Persister) matchLead(raw *domain.RawMessage, direction domain.Direction) *crmdomain.Lead {
	counterparty := raw.From
	if direction == domain.DirectionOutgoing {
		if len(raw.To) == 0 {
			return nil
		}
		counterparty = raw.To[0]
	}
	if counterparty == "" {
		return nil
	}

	lead, err := p.leads.FindByEmail(counterparty)
	if err != nil {
		log.Printf("[Sync] Lead lookup failed for %s: %v", counterparty, err)
		return nil
	}
	return lead
}
