package usecase

import (
	"context"
	"fmt"
	"log"

	"leadwire-backend/internal/mailsync/domain"
)

// maxDeltaPages bounds a single fetch round. A provider that keeps handing
// out next links past this is misbehaving and the round is abandoned rather
// than looped forever.
const maxDeltaPages = 50

// FetchResult is the outcome of one fetch round.
type FetchResult struct {
	Messages []domain.RawMessage
	// Cursor is the new resume cursor. Empty means the provider did not
	// hand one out and the stored cursor must stay untouched.
	Cursor string
	// Snapshot marks results that came from the bounded fallback listing
	// instead of the incremental path.
	Snapshot bool
}

// DeltaEngine drives the incremental fetch: it walks next links until the
// provider hands back a resume cursor, and falls back to a bounded snapshot
// of recent messages when the incremental path yields nothing.
type DeltaEngine struct {
	provider        domain.MailProvider
	snapshotOnEmpty bool
	snapshotLimit   int
}

func NewDeltaEngine(provider domain.MailProvider, snapshotOnEmpty bool, snapshotLimit int) *DeltaEngine {
	return &DeltaEngine{
		provider:        provider,
		snapshotOnEmpty: snapshotOnEmpty,
		snapshotLimit:   snapshotLimit,
	}
}

// FetchChanges runs one full fetch round starting from cursor. An empty
// cursor starts a fresh delta round. Any provider failure mid-round aborts
// the whole round; the caller keeps its old cursor and retries later.
func (e *DeltaEngine) FetchChanges(ctx context.Context, accessToken, mailbox, cursor string) (*FetchResult, error) {
	link := cursor
	var collected []domain.RawMessage
	var resumeCursor string

	for pages := 0; ; pages++ {
		if pages >= maxDeltaPages {
			return nil, fmt.Errorf("%w: pagination did not terminate after %d pages", domain.ErrFetchFailed, maxDeltaPages)
		}

		page, err := e.provider.DeltaPage(ctx, accessToken, mailbox, link)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
		}

		collected = append(collected, page.Messages...)

		if page.NextLink != "" {
			link = page.NextLink
			continue
		}
		resumeCursor = page.DeltaLink
		break
	}

	result := &FetchResult{
		Messages: collected,
		Cursor:   resumeCursor,
	}

	// An empty round is indistinguishable from an upstream cursor that was
	// silently invalidated. The bounded snapshot self-heals either way:
	// idempotent persistence makes it harmless for a genuinely quiet
	// mailbox, and the resume cursor keeps future rounds incremental.
	if len(collected) == 0 && e.snapshotOnEmpty {
		log.Printf("[Sync] Empty delta round for %s, falling back to snapshot of %d", mailbox, e.snapshotLimit)
		recent, err := e.provider.Recent(ctx, accessToken, mailbox, e.snapshotLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot fallback: %v", domain.ErrFetchFailed, err)
		}
		result.Messages = recent
		result.Snapshot = true
	}

	return result, nil
}
