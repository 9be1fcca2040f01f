// Package scheduler runs the recurring sweep that finds campaigns whose
// scheduled time has passed and hands each one to the delivery pipeline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmitrymomot/campaigner/internal/delivery"
	"github.com/dmitrymomot/campaigner/internal/metrics"
	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/internal/store"
)

// Defaults for the sweep cadence and per-tick batch cap.
const (
	DefaultInterval = time.Minute
	DefaultBatch    = 20
)

// CampaignClaimer claims due campaigns and settles strays.
type CampaignClaimer interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus) error
}

// UserGetter resolves campaign owners.
type UserGetter interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Dispatcher delivers one campaign. Implemented by *delivery.Orchestrator.
type Dispatcher interface {
	Send(ctx context.Context, campaignID, userID primitive.ObjectID) (*delivery.Result, error)
}

// Scheduler sweeps for due campaigns on a fixed interval. Claiming flips a
// campaign from scheduled to sending atomically, so overlapping ticks never
// dispatch the same campaign twice.
type Scheduler struct {
	campaigns  CampaignClaimer
	users      UserGetter
	dispatcher Dispatcher
	interval   time.Duration
	batch      int
	cron       *cron.Cron
	log        *slog.Logger
}

// New creates a Scheduler. Non-positive interval or batch fall back to the
// defaults.
func New(campaigns CampaignClaimer, users UserGetter, dispatcher Dispatcher, interval time.Duration, batch int, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Scheduler{
		campaigns:  campaigns,
		users:      users,
		dispatcher: dispatcher,
		interval:   interval,
		batch:      batch,
		cron:       cron.New(),
		log:        log,
	}
}

// Start begins the periodic sweep. The context bounds every tick spawned
// after it; call Stop to halt the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunTick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("batch", s.batch))
	return nil
}

// Stop halts the schedule. The returned context is done once any running
// tick has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunTick claims up to the batch cap of due campaigns, oldest schedule
// first, and dispatches each. One campaign's failure never blocks the rest
// of the batch or the next tick.
func (s *Scheduler) RunTick(ctx context.Context) {
	metrics.SchedulerTicks.Inc()

	due, err := s.campaigns.ClaimDue(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		s.log.Error("failed to claim due campaigns", slog.Any("error", err))
		return
	}
	if len(due) == 0 {
		return
	}
	metrics.CampaignsClaimed.Add(float64(len(due)))
	s.log.Info("claimed due campaigns", slog.Int("count", len(due)))

	for _, c := range due {
		s.dispatch(ctx, c)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, c models.Campaign) {
	if _, err := s.users.GetByID(ctx, c.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("skipping campaign with missing owner",
				slog.String("campaign_id", c.ID.Hex()),
				slog.String("user_id", c.UserID.Hex()))
		} else {
			s.log.Error("failed to resolve campaign owner",
				slog.String("campaign_id", c.ID.Hex()),
				slog.Any("error", err))
		}
		// Settle the claimed campaign so it is not stranded in sending.
		if setErr := s.campaigns.SetStatus(ctx, c.ID, models.CampaignDraft); setErr != nil {
			s.log.Error("failed to settle unowned campaign",
				slog.String("campaign_id", c.ID.Hex()),
				slog.Any("error", setErr))
		}
		return
	}

	result, err := s.dispatcher.Send(ctx, c.ID, c.UserID)
	if err != nil {
		s.log.Error("scheduled delivery failed",
			slog.String("campaign_id", c.ID.Hex()),
			slog.String("user_id", c.UserID.Hex()),
			slog.Any("error", err))
		return
	}
	s.log.Info("scheduled delivery completed",
		slog.String("campaign_id", c.ID.Hex()),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed))
}
