package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/procureline/engine/internal/canonical"
)

// StreamerConfig tunes the DB-first streaming loop.
type StreamerConfig struct {
	// BatchSize is how many events are claimed per poll.
	BatchSize int

	// PollInterval is the sleep between polls when there is no work.
	PollInterval time.Duration

	// MaxConcurrency bounds concurrent produce+archive workers.
	MaxConcurrency int
}

// Streamer moves committed audit events out of Postgres: it claims pending
// rows with SKIP LOCKED, produces the canonical envelope to Kafka, archives
// it to object storage, and records the outcome per row. The DB stays the
// source of truth for retries; a row marked failed is re-claimed on the next
// operator reset.
type Streamer struct {
	store    *PGStore
	producer Producer
	archiver Archiver
	cfg      StreamerConfig
	wg       sync.WaitGroup
}

func NewStreamer(store *PGStore, producer Producer, archiver Archiver, cfg StreamerConfig) *Streamer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Streamer{store: store, producer: producer, archiver: archiver, cfg: cfg}
}

// Run blocks until ctx is cancelled, polling for pending events and
// processing each batch with bounded concurrency.
func (s *Streamer) Run(ctx context.Context) error {
	log.Printf("[audit.streamer] starting (batch=%d, concurrency=%d)", s.cfg.BatchSize, s.cfg.MaxConcurrency)
	defer log.Printf("[audit.streamer] stopped")

	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			if s.producer != nil {
				_ = s.producer.Close()
			}
			return ctx.Err()
		default:
		}

		events, err := s.store.ClaimPendingEvents(ctx, s.cfg.BatchSize)
		if err != nil {
			log.Printf("[audit.streamer] claim pending: %v", err)
			time.Sleep(s.cfg.PollInterval)
			continue
		}
		if len(events) == 0 {
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		for i := range events {
			sem <- struct{}{}
			s.wg.Add(1)
			go func(ev AssignmentEvent) {
				defer func() {
					<-sem
					s.wg.Done()
				}()
				if err := s.processEvent(ctx, &ev); err != nil {
					log.Printf("[audit.streamer] process event %s: %v", ev.ID, err)
				}
			}(events[i])
		}

		// Drain the batch before claiming more; keeps per-item ordering since
		// claims come back in ts order.
		s.wg.Wait()
	}
}

// processEvent produces the canonical envelope to Kafka and archives it, then
// marks the row streamed or failed.
func (s *Streamer) processEvent(parent context.Context, ev *AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	envelope, err := canonical.Marshal(ev)
	if err != nil {
		_ = s.store.MarkStreamResult(parent, ev.ID, false)
		return fmt.Errorf("canonicalize event: %w", err)
	}

	if err := s.producer.Produce(ctx, []byte(ev.PRItemID), envelope); err != nil {
		_ = s.store.MarkStreamResult(parent, ev.ID, false)
		return fmt.Errorf("kafka produce: %w", err)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveEvent(ctx, ev); err != nil {
			_ = s.store.MarkStreamResult(parent, ev.ID, false)
			return fmt.Errorf("archive: %w", err)
		}
	}

	if err := s.store.MarkStreamResult(parent, ev.ID, true); err != nil {
		return fmt.Errorf("mark stream success: %w", err)
	}
	return nil
}
