package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/edubridge/campusconnect/internal/connect"
	"github.com/edubridge/campusconnect/internal/data/repos"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Scheduler drives the periodic work: one sync entry per enabled
// broker at its configured poll interval, plus the nightly full
// refresh. Broker settings are re-read on every tick so API edits take
// effect without re-registration.
type Scheduler struct {
	log     *logger.Logger
	cron    *cron.Cron
	brokers repos.BrokerRepo
	syncer  *connect.Syncer
}

func NewScheduler(log *logger.Logger, brokers repos.BrokerRepo, syncer *connect.Syncer) *Scheduler {
	return &Scheduler{
		log:     log.With("service", "Scheduler"),
		cron:    cron.New(),
		brokers: brokers,
		syncer:  syncer,
	}
}

// Register wires the cron entries. Newly created brokers are picked up
// at the next restart; until then the manual sync endpoint covers them.
func (s *Scheduler) Register(ctx context.Context, refreshSpec string) error {
	brokers, err := s.brokers.ListEnabled(ctx, nil)
	if err != nil {
		return fmt.Errorf("list brokers: %w", err)
	}

	for _, broker := range brokers {
		brokerID := broker.BrokerID
		interval := time.Duration(broker.PollIntervalSeconds) * time.Second
		spec := fmt.Sprintf("@every %s", interval)
		_, err := s.cron.AddFunc(spec, func() {
			s.runPass(brokerID)
		})
		if err != nil {
			return fmt.Errorf("schedule broker %d: %w", brokerID, err)
		}
		s.log.Info("Scheduled broker sync", "broker_id", brokerID, "interval", interval.String())
	}

	if refreshSpec != "" {
		_, err := s.cron.AddFunc(refreshSpec, s.runRefresh)
		if err != nil {
			return fmt.Errorf("schedule refresh %q: %w", refreshSpec, err)
		}
		s.log.Info("Scheduled full refresh", "cron", refreshSpec)
	}
	return nil
}

func (s *Scheduler) runPass(brokerID int) {
	ctx := context.Background()
	broker, err := s.brokers.Get(ctx, nil, brokerID)
	if err != nil {
		s.log.Error("Load broker for scheduled sync failed", "error", err, "broker_id", brokerID)
		return
	}
	if broker == nil || !broker.Enabled {
		return
	}
	if err := s.syncer.RunPass(ctx, broker); err != nil {
		s.log.Error("Scheduled sync pass failed", "error", err, "broker_id", brokerID)
	}
}

// Brokers are independent, so their full refreshes fan out
// concurrently; a failing broker never blocks the others.
func (s *Scheduler) runRefresh() {
	ctx := context.Background()
	brokers, err := s.brokers.ListEnabled(ctx, nil)
	if err != nil {
		s.log.Error("Load brokers for scheduled refresh failed", "error", err)
		return
	}
	var g errgroup.Group
	g.SetLimit(4)
	for _, broker := range brokers {
		g.Go(func() error {
			report, err := s.syncer.RunRefresh(ctx, broker)
			if err != nil {
				s.log.Error("Scheduled refresh failed", "error", err, "broker_id", broker.BrokerID)
				return nil
			}
			s.log.Info("Scheduled refresh finished", "broker_id", broker.BrokerID,
				"courses_created", report.Courses.Created,
				"courses_updated", report.Courses.Updated,
				"courses_deleted", report.Courses.Deleted)
			return nil
		})
	}
	g.Wait()
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
