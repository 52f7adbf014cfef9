package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"neoflow/internal/cache"
	"neoflow/internal/domain"
	"neoflow/internal/port"
	"neoflow/internal/registry"
)

// DefaultPollInterval is the status polling period.
const DefaultPollInterval = 2 * time.Second

// StatusSynchronizer polls document status into the shared cache until the
// document reaches a terminal status.
type StatusSynchronizer struct {
	api      port.DocumentAPI
	cache    *cache.Cache
	reg      *registry.Registry
	interval time.Duration
}

// NewStatusSynchronizer creates a StatusSynchronizer. A zero interval means
// DefaultPollInterval.
func NewStatusSynchronizer(api port.DocumentAPI, c *cache.Cache, reg *registry.Registry, interval time.Duration) *StatusSynchronizer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusSynchronizer{api: api, cache: c, reg: reg, interval: interval}
}

// Subscription is one running poll task. Its owner must call Cancel when it
// no longer needs updates.
type Subscription struct {
	documentID string
	cancel     context.CancelFunc
	done       chan struct{}
	updates    chan *domain.StatusSnapshot

	mu      sync.Mutex
	latest  *domain.StatusSnapshot
	lastErr error
	polls   int
}

// Subscribe starts polling documentID. The first poll is issued immediately.
// The task stops on the first terminal status, on Cancel, or when ctx ends.
func (s *StatusSynchronizer) Subscribe(ctx context.Context, documentID string) (*Subscription, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		documentID: documentID,
		cancel:     cancel,
		done:       make(chan struct{}),
		updates:    make(chan *domain.StatusSnapshot, 1),
	}
	go s.run(ctx, sub)
	return sub, nil
}

func (s *StatusSynchronizer) run(ctx context.Context, sub *Subscription) {
	defer close(sub.done)
	defer close(sub.updates)
	defer sub.cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if s.poll(ctx, sub) {
			log.Printf("statusSynchronizer: document %s reached %s, polling stopped", sub.documentID, sub.Latest().Status)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll fetches one snapshot and reports whether it was terminal.
func (s *StatusSynchronizer) poll(ctx context.Context, sub *Subscription) bool {
	key := cache.StatusKey(sub.documentID)
	v, err := s.cache.Refetch(ctx, key, func(ctx context.Context) (any, error) {
		return s.api.GetStatus(ctx, sub.documentID)
	})
	sub.mu.Lock()
	sub.polls++
	sub.lastErr = err
	sub.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, cache.ErrFetchCanceled) {
			log.Printf("statusSynchronizer: poll of %s failed, retrying next tick: %v", sub.documentID, err)
		}
		return false
	}

	snap := v.(*domain.StatusSnapshot)
	if snap.Status.ProcessingSettled() {
		s.reg.UnmarkProcessing(sub.documentID)
	}
	sub.publish(snap)
	return snap.Status.IsTerminal()
}

func (sub *Subscription) publish(snap *domain.StatusSnapshot) {
	sub.mu.Lock()
	sub.latest = snap
	sub.mu.Unlock()

	// Only the poll goroutine sends; drop a stale undelivered snapshot.
	select {
	case <-sub.updates:
	default:
	}
	sub.updates <- snap
}

// DocumentID returns the polled document id.
func (sub *Subscription) DocumentID() string {
	return sub.documentID
}

// Cancel stops polling and waits for the task to exit. It is safe to call
// more than once.
func (sub *Subscription) Cancel() {
	sub.cancel()
	<-sub.done
}

// Done is closed when the task has exited.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Updates delivers snapshots as they arrive, keeping only the newest when
// the reader falls behind. It is closed when the task exits.
func (sub *Subscription) Updates() <-chan *domain.StatusSnapshot {
	return sub.updates
}

// Latest returns the last snapshot received, or nil.
func (sub *Subscription) Latest() *domain.StatusSnapshot {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.latest
}

// Err returns the error of the last poll, nil if it succeeded.
func (sub *Subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.lastErr
}

// Polls returns how many polls have been issued.
func (sub *Subscription) Polls() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.polls
}

// Wait blocks until the task exits or ctx ends and returns the last snapshot.
func (sub *Subscription) Wait(ctx context.Context) (*domain.StatusSnapshot, error) {
	select {
	case <-sub.done:
		if latest := sub.Latest(); latest != nil {
			return latest, nil
		}
		if err := sub.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	case <-ctx.Done():
		return sub.Latest(), ctx.Err()
	}
}
