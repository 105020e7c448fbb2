package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// EventQueue is the durable queue of pending resource events. One row
// exists per (kind, resource id, broker id); repeated updates coalesce
// into it. The queue itself carries no pass state, so concurrent
// passes for different brokers share one instance safely.
type EventQueue struct {
	log    *logger.Logger
	events repos.EventRepo
}

func NewEventQueue(events repos.EventRepo, baseLog *logger.Logger) *EventQueue {
	return &EventQueue{
		log:    baseLog.With("service", "EventQueue"),
		events: events,
	}
}

// SkipSet hides events for the remainder of one drain pass. Each pass
// starts with a fresh, pass-local set.
type SkipSet map[uuid.UUID]bool

// Enqueue records one broker event. Created and Destroyed are terminal
// intents and overwrite a queued Updated; an incoming Updated never
// overrides a queued Created or Destroyed.
func (q *EventQueue) Enqueue(ctx context.Context, ev types.ResourceEvent) error {
	existing, err := q.events.Get(ctx, nil, ev.BrokerID, string(ev.Kind), ev.ResourceID)
	if err != nil {
		return fmt.Errorf("queue lookup: %w", err)
	}

	if existing == nil {
		now := time.Now()
		item := &types.EventQueueItem{
			ID:         uuid.New(),
			BrokerID:   ev.BrokerID,
			Kind:       string(ev.Kind),
			ResourceID: ev.ResourceID,
			Status:     string(ev.Change),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := q.events.Insert(ctx, nil, item); err != nil {
			return fmt.Errorf("queue insert: %w", err)
		}
		return nil
	}

	if ev.Change == types.ChangeCreated || ev.Change == types.ChangeDestroyed {
		if existing.Status != string(ev.Change) {
			existing.Status = string(ev.Change)
			existing.UpdatedAt = time.Now()
			if err := q.events.Save(ctx, nil, existing); err != nil {
				return fmt.Errorf("queue overwrite: %w", err)
			}
		}
		return nil
	}

	// Updated never downgrades a pending terminal intent.
	return nil
}

// Dequeue returns the oldest pending event outside the pass's skip
// set, optionally scoped to one broker (brokerID 0 means all brokers).
// nil means the queue is drained for this pass.
func (q *EventQueue) Dequeue(ctx context.Context, brokerID int, skip SkipSet) (*types.EventQueueItem, error) {
	exclude := make([]uuid.UUID, 0, len(skip))
	for id := range skip {
		exclude = append(exclude, id)
	}
	item, err := q.events.OldestPending(ctx, nil, brokerID, exclude)
	if err != nil {
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	return item, nil
}

// MarkSkipped bumps the fail counter and hides the event for the rest
// of the current drain pass. The durable record stays for retry.
func (q *EventQueue) MarkSkipped(ctx context.Context, item *types.EventQueueItem, skip SkipSet) error {
	item.FailCount++
	item.UpdatedAt = time.Now()
	if err := q.events.Save(ctx, nil, item); err != nil {
		return fmt.Errorf("queue mark skipped: %w", err)
	}
	skip[item.ID] = true
	return nil
}

// Remove deletes the durable record after successful application.
func (q *EventQueue) Remove(ctx context.Context, item *types.EventQueueItem) error {
	if err := q.events.Delete(ctx, nil, item.ID); err != nil {
		return fmt.Errorf("queue remove: %w", err)
	}
	return nil
}

// Depths reports pending events per broker, for the status API.
func (q *EventQueue) Depths(ctx context.Context) (map[int]int64, error) {
	return q.events.CountByBroker(ctx, nil)
}
