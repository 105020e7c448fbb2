package connect

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

const fifoBatchSize = 100

// Locker serializes sync passes per broker across instances. ok false
// means another instance currently holds the lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ClientFactory builds a broker client from stored settings.
type ClientFactory func(broker *types.BrokerSettings) ecs.Client

// Syncer runs the periodic per-broker sync cycle: lease, event
// ingestion, queue drain, outbound flushes.
type Syncer struct {
	log       *logger.Logger
	brokers   repos.BrokerRepo
	queue     *EventQueue
	engine    *Engine
	enroll    *Enrollments
	exports   *Exports
	refresher *Refresher
	clients   ClientFactory
	lock      Locker
	leaseTTL  time.Duration
}

func NewSyncer(brokers repos.BrokerRepo, queue *EventQueue, engine *Engine, enroll *Enrollments, exports *Exports, refresher *Refresher, clients ClientFactory, lock Locker, leaseTTL time.Duration, baseLog *logger.Logger) *Syncer {
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}
	return &Syncer{
		log:       baseLog.With("service", "Syncer"),
		brokers:   brokers,
		queue:     queue,
		engine:    engine,
		enroll:    enroll,
		exports:   exports,
		refresher: refresher,
		clients:   clients,
		lock:      lock,
		leaseTTL:  leaseTTL,
	}
}

func leaseKey(brokerID int) string {
	return fmt.Sprintf("campusconnect:sync:%d", brokerID)
}

// RunPass executes one full cycle for one broker: drain the broker's
// event fifo into the queue, process the queue, then flush outbound
// state. The per-broker lease guards against overlapping passes from
// concurrent instances.
func (s *Syncer) RunPass(ctx context.Context, broker *types.BrokerSettings) error {
	release, ok, err := s.lock.Acquire(ctx, leaseKey(broker.BrokerID), s.leaseTTL)
	if err != nil {
		return fmt.Errorf("acquire sync lease: %w", err)
	}
	if !ok {
		s.log.Info("Sync lease held elsewhere, skipping pass", "broker_id", broker.BrokerID)
		return nil
	}
	defer release()

	client := s.clients(broker)
	pc := NewPassContext(broker, client)

	if err := s.ingestEvents(ctx, pc); err != nil {
		return err
	}
	if _, err := s.engine.Drain(ctx, pc); err != nil {
		return err
	}
	if err := s.exports.FlushCourseURLs(ctx, pc); err != nil {
		return err
	}
	if err := s.exports.FlushExports(ctx, pc); err != nil {
		return err
	}
	if err := s.enroll.FlushStatusExports(ctx, pc); err != nil {
		return err
	}
	return nil
}

// ingestEvents empties the broker's event fifo into the durable queue.
func (s *Syncer) ingestEvents(ctx context.Context, pc *PassContext) error {
	brokerID := pc.Broker.BrokerID
	for {
		events, err := pc.Client.ReadEventFifo(ctx, fifoBatchSize, true)
		if err != nil {
			return fmt.Errorf("read event fifo: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		for _, raw := range events {
			ev, err := raw.Parse(brokerID)
			if err != nil {
				// Malformed notifications cannot be applied; the
				// refresh pass covers whatever they referred to.
				s.log.Warn("Discarding malformed event", "error", err,
					"broker_id", brokerID, "ressource", raw.Ressource)
				continue
			}
			if err := s.queue.Enqueue(ctx, ev); err != nil {
				return err
			}
		}
		if len(events) < fifoBatchSize {
			return nil
		}
	}
}

// RunAll runs one pass for every enabled broker. Brokers hold separate
// leases and broker-scoped state, so their passes fan out concurrently;
// a failing broker does not block or cancel the others.
func (s *Syncer) RunAll(ctx context.Context) error {
	brokers, err := s.brokers.ListEnabled(ctx, nil)
	if err != nil {
		return fmt.Errorf("list brokers: %w", err)
	}
	var g errgroup.Group
	g.SetLimit(4)
	for _, broker := range brokers {
		g.Go(func() error {
			if err := s.RunPass(ctx, broker); err != nil {
				s.log.Error("Sync pass failed", "error", err, "broker_id", broker.BrokerID)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// RunRefresh executes the full bidirectional reconciliation for one
// broker, used for catch-up after downtime.
func (s *Syncer) RunRefresh(ctx context.Context, broker *types.BrokerSettings) (RefreshReport, error) {
	release, ok, err := s.lock.Acquire(ctx, leaseKey(broker.BrokerID), s.leaseTTL)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("acquire sync lease: %w", err)
	}
	if !ok {
		return RefreshReport{}, fmt.Errorf("sync lease for broker %d held elsewhere", broker.BrokerID)
	}
	defer release()

	client := s.clients(broker)
	return s.refresher.RefreshAll(ctx, NewPassContext(broker, client))
}
