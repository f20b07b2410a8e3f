package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/filter"
	"github.com/julianbeese/immo_search/internal/session"
)

// Session is the listing session refreshed by the scheduler
type Session interface {
	Load(ctx context.Context, rentType domain.RentType) (session.LoadResult, error)
	SeedLedger(ctx context.Context) error
	Records() []domain.PropertyRecord
	TargetRentType() domain.RentType
}

// Notifier receives new-listing alerts and poll errors
type Notifier interface {
	NotifyNewListing(ctx context.Context, record *domain.PropertyRecord) error
	NotifyError(ctx context.Context, errMsg string) error
}

// ActivityLogger records alerts
type ActivityLogger interface {
	LogActivity(ctx context.Context, log *domain.ActivityLog) error
}

// Options configures a Scheduler
type Options struct {
	Interval        time.Duration
	DefaultRentType domain.RentType
	// Alert selects which new listings are notified. Nil disables alerts.
	Alert *domain.FilterState
	// IsQuietTime suppresses alerts while it returns true
	IsQuietTime func(time.Time) bool
}

// Scheduler periodically refreshes the session and alerts on new listings
type Scheduler struct {
	opts     Options
	sess     Session
	engine   *filter.Engine
	notifier Notifier
	activity ActivityLogger
	logger   *slog.Logger

	// ids seen per rent type; a rent type's first backend load only seeds it
	seen   map[domain.RentType]map[string]bool
	pollMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a new scheduler. notifier and activity may be nil.
func NewScheduler(opts Options, sess Session, engine *filter.Engine, notifier Notifier, activity ActivityLogger, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.IsQuietTime == nil {
		opts.IsQuietTime = func(time.Time) bool { return false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		opts:     opts,
		sess:     sess,
		engine:   engine,
		notifier: notifier,
		activity: activity,
		logger:   logger,
		seen:     map[domain.RentType]map[string]bool{},
	}
}

// Start begins the polling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop stops the scheduler and waits for the running poll to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
}

// RunOnce performs a single poll cycle and returns the number of alerts sent
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.poll(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	// Run immediately on start
	s.pollAndReport(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndReport(ctx)
		}
	}
}

func (s *Scheduler) pollAndReport(ctx context.Context) {
	if _, err := s.poll(ctx); err != nil {
		s.logger.Error("poll failed", "error", err)
		if s.notifier != nil {
			if err := s.notifier.NotifyError(ctx, err.Error()); err != nil {
				s.logger.Debug("error notification failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) (int, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	// a load started by the user may still be in flight; follow it
	rentType := s.sess.TargetRentType()
	if rentType == "" {
		rentType = s.opts.DefaultRentType
	}
	s.logger.Info("starting poll cycle", "rent_type", rentType)

	res, err := s.sess.Load(ctx, rentType)
	if err != nil {
		return 0, err
	}
	if err := s.sess.SeedLedger(ctx); err != nil {
		s.logger.Warn("ledger seed incomplete", "error", err)
	}

	if !res.Applied {
		s.logger.Debug("poll result superseded", "rent_type", rentType)
		return 0, nil
	}
	// Fallback data says nothing about what is new
	if res.Source != session.SourceBackend {
		s.logger.Info("poll cycle complete", "source", res.Source, "count", res.Count)
		return 0, nil
	}

	fresh := s.newRecords(rentType, s.sess.Records())
	sent := s.alert(ctx, fresh)

	s.logger.Info("poll cycle complete", "source", res.Source, "count", res.Count, "new", len(fresh), "alerts", sent)
	return sent, nil
}

// newRecords returns the records not seen in an earlier poll of rentType
func (s *Scheduler) newRecords(rentType domain.RentType, records []domain.PropertyRecord) []domain.PropertyRecord {
	known, seeded := s.seen[rentType]
	current := make(map[string]bool, len(records))
	var fresh []domain.PropertyRecord
	for _, r := range records {
		current[r.ID] = true
		if seeded && !known[r.ID] {
			fresh = append(fresh, r)
		}
	}
	s.seen[rentType] = current
	return fresh
}

func (s *Scheduler) alert(ctx context.Context, fresh []domain.PropertyRecord) int {
	if len(fresh) == 0 || s.opts.Alert == nil || s.notifier == nil {
		return 0
	}
	if s.opts.IsQuietTime(time.Now()) {
		s.logger.Info("quiet hours active, skipping alerts", "new", len(fresh))
		return 0
	}

	matched := s.engine.FilterListings(fresh, *s.opts.Alert)
	sent := 0
	for i := range matched {
		listing := &matched[i]
		if err := s.notifier.NotifyNewListing(ctx, listing); err != nil {
			s.logger.Error("notification failed", "property_id", listing.ID, "error", err)
			continue
		}
		sent++

		if s.activity != nil {
			err := s.activity.LogActivity(ctx, &domain.ActivityLog{
				Action:     domain.ActionNewListing,
				EntityType: "property",
				EntityID:   listing.ID,
				Details:    listing.Title,
			})
			if err != nil {
				s.logger.Debug("activity log failed", "action", domain.ActionNewListing, "error", err)
			}
		}
	}
	return sent
}
