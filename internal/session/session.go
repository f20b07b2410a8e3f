// Package session holds the browsing state of one user: the current record
// set, the filter pipeline over it, the per-listing image carousel and the
// visit-request ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/julianbeese/immo_search/internal/carousel"
	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/filter"
	"github.com/julianbeese/immo_search/internal/ledger"
)

// Backend is the remote listing source
type Backend interface {
	FetchProperties(ctx context.Context, rentType domain.RentType) ([]domain.PropertyRecord, error)
	FetchVisitRequests(ctx context.Context) ([]string, error)
	SubmitVisitRequest(ctx context.Context, req *domain.VisitRequest) error
}

// Store persists snapshots, visit requests and activity
type Store interface {
	SaveSnapshot(ctx context.Context, snap *domain.ListingSnapshot) error
	LoadSnapshot(ctx context.Context, rentType domain.RentType) (*domain.ListingSnapshot, error)
	SaveVisitRequest(ctx context.Context, vr *domain.VisitRequest) error
	ListVisitRequests(ctx context.Context) ([]domain.VisitRequest, error)
	LogActivity(ctx context.Context, log *domain.ActivityLog) error
}

// Notifier shows visit-request outcomes to the user
type Notifier interface {
	NotifyVisitRequested(ctx context.Context, record *domain.PropertyRecord, req *domain.VisitRequest) error
	NotifyAlreadyRequested(ctx context.Context, record *domain.PropertyRecord) error
}

// MessageGenerator renders the visit-request message for a listing
type MessageGenerator interface {
	Generate(record *domain.PropertyRecord) (string, error)
}

// SampleFunc returns the local sample listings of a rent type
type SampleFunc func(rentType domain.RentType) ([]domain.PropertyRecord, error)

// Source tells where the current record set came from
type Source string

const (
	SourceNone    Source = ""
	SourceBackend Source = "backend"
	SourceCache   Source = "cache"
	SourceSample  Source = "sample"
)

// LoadResult describes the outcome of a Load
type LoadResult struct {
	Source Source
	Count  int
	// Applied is false when a newer load started before this one finished
	Applied bool
	// FetchErr is the backend error that caused a fallback, if any
	FetchErr error
}

// Info is a summary of the session state
type Info struct {
	RentType  domain.RentType
	Source    Source
	Count     int
	Version   uint64
	LoadedAt  time.Time
	Requested int
}

// Options configures a Session. Backend, Store, Notifier and Messages may be nil.
type Options struct {
	Pipeline *filter.Pipeline
	Backend  Backend
	Store    Store
	Sample   SampleFunc
	Notifier Notifier
	Messages MessageGenerator
	Logger   *slog.Logger
}

// Session is safe for concurrent use
type Session struct {
	pipeline *filter.Pipeline
	backend  Backend
	store    Store
	sample   SampleFunc
	notifier Notifier
	messages MessageGenerator
	logger   *slog.Logger

	carousel *carousel.Store
	ledger   *ledger.Ledger

	loadSeq atomic.Uint64

	mu       sync.RWMutex
	snap     filter.Snapshot
	byID     map[string]int
	rentType domain.RentType
	// rent type of the most recently started load
	target   domain.RentType
	source   Source
	loadedAt time.Time

	// serializes visit requests so the ledger check and MarkSent are atomic
	visitMu sync.Mutex
}

// New creates a new session with an empty record set
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = filter.NewPipeline(filter.NewEngine(domain.Location{}), 0, 0)
	}
	return &Session{
		pipeline: pipeline,
		backend:  opts.Backend,
		store:    opts.Store,
		sample:   opts.Sample,
		notifier: opts.Notifier,
		messages: opts.Messages,
		logger:   logger,
		carousel: carousel.NewStore(),
		ledger:   ledger.New(),
		byID:     map[string]int{},
	}
}

// Load fetches the listings of a rent type and makes them current. On
// backend failure it falls back to the stored snapshot, then to the sample
// set. The result is dropped if another Load started in the meantime.
func (s *Session) Load(ctx context.Context, rentType domain.RentType) (LoadResult, error) {
	s.mu.Lock()
	seq := s.loadSeq.Add(1)
	s.target = rentType
	s.mu.Unlock()

	records, result, err := s.fetch(ctx, rentType)
	if err != nil {
		return result, err
	}
	result.Count = len(records)

	s.mu.Lock()
	if s.loadSeq.Load() != seq {
		s.mu.Unlock()
		s.logger.Debug("stale load dropped", "rent_type", rentType, "source", result.Source)
		return result, nil
	}
	version := s.snap.Version + 1
	s.snap = filter.Snapshot{Version: version, Records: records}
	s.byID = make(map[string]int, len(records))
	for i := range records {
		s.byID[records[i].ID] = i
	}
	s.rentType = rentType
	s.source = result.Source
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.pipeline.Invalidate()
	result.Applied = true

	s.logger.Info("listings loaded",
		"rent_type", rentType,
		"source", result.Source,
		"count", result.Count,
		"version", version,
	)
	return result, nil
}

func (s *Session) fetch(ctx context.Context, rentType domain.RentType) ([]domain.PropertyRecord, LoadResult, error) {
	var result LoadResult

	if s.backend != nil {
		records, err := s.backend.FetchProperties(ctx, rentType)
		if err == nil {
			result.Source = SourceBackend
			s.saveSnapshot(ctx, rentType, records)
			s.logActivity(ctx, &domain.ActivityLog{
				Action:     domain.ActionListingsLoaded,
				EntityType: "rent_type",
				EntityID:   string(rentType),
				Details:    fmt.Sprintf("%d records", len(records)),
			})
			return records, result, nil
		}
		result.FetchErr = err
		s.logger.Warn("backend fetch failed, falling back", "rent_type", rentType, "error", err)
	}

	if s.store != nil {
		snap, err := s.store.LoadSnapshot(ctx, rentType)
		if err != nil {
			s.logger.Warn("snapshot load failed", "rent_type", rentType, "error", err)
		} else if snap != nil && len(snap.Records) > 0 {
			result.Source = SourceCache
			s.logFallback(ctx, rentType, result)
			return snap.Records, result, nil
		}
	}

	if s.sample == nil {
		return nil, result, fmt.Errorf("load %s listings: no source available", rentType)
	}
	records, err := s.sample(rentType)
	if err != nil {
		return nil, result, fmt.Errorf("load sample listings: %w", err)
	}
	result.Source = SourceSample
	s.logFallback(ctx, rentType, result)
	return records, result, nil
}

func (s *Session) saveSnapshot(ctx context.Context, rentType domain.RentType, records []domain.PropertyRecord) {
	if s.store == nil {
		return
	}
	err := s.store.SaveSnapshot(ctx, &domain.ListingSnapshot{
		RentType:  rentType,
		Records:   records,
		FetchedAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("snapshot save failed", "rent_type", rentType, "error", err)
	}
}

func (s *Session) logFallback(ctx context.Context, rentType domain.RentType, result LoadResult) {
	entry := &domain.ActivityLog{
		Action:     domain.ActionListingsFallback,
		EntityType: "rent_type",
		EntityID:   string(rentType),
		Details:    string(result.Source),
	}
	if result.FetchErr != nil {
		entry.ErrorMsg = result.FetchErr.Error()
	}
	s.logActivity(ctx, entry)
}

func (s *Session) logActivity(ctx context.Context, entry *domain.ActivityLog) {
	if s.store == nil {
		return
	}
	if err := s.store.LogActivity(ctx, entry); err != nil {
		s.logger.Debug("activity log failed", "action", entry.Action, "error", err)
	}
}

// SeedLedger marks every property the user already requested, from the
// backend and from the local history. Sources that fail are skipped and
// reported in the returned error.
func (s *Session) SeedLedger(ctx context.Context) error {
	var errs []error

	if s.backend != nil {
		ids, err := s.backend.FetchVisitRequests(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.ledger.Seed(ids)
		}
	}

	if s.store != nil {
		requests, err := s.store.ListVisitRequests(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list stored visit requests: %w", err))
		} else {
			ids := make([]string, 0, len(requests))
			for _, r := range requests {
				ids = append(ids, r.PropertyID)
			}
			s.ledger.Seed(ids)
		}
	}

	s.logger.Debug("ledger seeded", "requested", s.ledger.Len())
	return errors.Join(errs...)
}

// Results returns the current record set filtered and sorted by state
func (s *Session) Results(state domain.FilterState) []domain.PropertyRecord {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	return s.pipeline.Apply(snap, state)
}

// Records returns the unfiltered current record set
func (s *Session) Records() []domain.PropertyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Records
}

// Record looks up a listing of the current record set
func (s *Session) Record(id string) (domain.PropertyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.PropertyRecord{}, false
	}
	return s.snap.Records[i], true
}

// HasRequested reports whether a visit was already requested for id
func (s *Session) HasRequested(id string) bool {
	return s.ledger.HasPendingOrSentRequest(id)
}

// RequestVisit sends a visit request for a listing of the current record
// set. A second request for the same listing returns
// domain.ErrAlreadyRequested after notifying the user.
func (s *Session) RequestVisit(ctx context.Context, id string) (*domain.VisitRequest, error) {
	record, ok := s.Record(id)
	if !ok {
		return nil, fmt.Errorf("request visit %q: %w", id, domain.ErrUnknownProperty)
	}

	s.visitMu.Lock()
	defer s.visitMu.Unlock()

	if s.ledger.HasPendingOrSentRequest(id) {
		s.logger.Info("visit already requested", "property_id", id)
		if s.notifier != nil {
			if err := s.notifier.NotifyAlreadyRequested(ctx, &record); err != nil {
				s.logger.Warn("notification failed", "property_id", id, "error", err)
			}
		}
		s.logActivity(ctx, &domain.ActivityLog{
			Action:     domain.ActionVisitDuplicate,
			EntityType: "property",
			EntityID:   id,
		})
		return nil, domain.ErrAlreadyRequested
	}

	var message string
	if s.messages != nil {
		var err error
		message, err = s.messages.Generate(&record)
		if err != nil {
			return nil, fmt.Errorf("generate message: %w", err)
		}
	}

	req := &domain.VisitRequest{
		ID:         uuid.NewString(),
		PropertyID: id,
		Message:    message,
		Status:     domain.VisitStatusPending,
		CreatedAt:  time.Now(),
	}

	if s.backend != nil {
		if err := s.backend.SubmitVisitRequest(ctx, req); err != nil {
			s.logger.Error("visit request failed", "property_id", id, "error", err)
			s.logActivity(ctx, &domain.ActivityLog{
				Action:     domain.ActionVisitFailed,
				EntityType: "property",
				EntityID:   id,
				ErrorMsg:   err.Error(),
			})
			return nil, err
		}
		req.Status = domain.VisitStatusSent
	}

	s.ledger.MarkSent(id)

	if s.store != nil {
		if err := s.store.SaveVisitRequest(ctx, req); err != nil {
			s.logger.Warn("visit request save failed", "property_id", id, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyVisitRequested(ctx, &record, req); err != nil {
			s.logger.Warn("notification failed", "property_id", id, "error", err)
		}
	}
	s.logActivity(ctx, &domain.ActivityLog{
		Action:     domain.ActionVisitRequested,
		EntityType: "property",
		EntityID:   id,
		Details:    req.ID,
	})

	s.logger.Info("visit requested", "property_id", id, "request_id", req.ID, "status", req.Status)
	return req, nil
}

// AdvanceImage moves the image carousel of a listing and returns the new
// index and image. Unknown ids return 0 and "".
func (s *Session) AdvanceImage(id string, direction int) (int, string) {
	record, ok := s.Record(id)
	if !ok {
		return 0, ""
	}
	images := record.ImageList()
	i := s.carousel.Advance(id, len(images), direction)
	return i, images[i]
}

// CurrentImage returns the current carousel index and image of a listing
func (s *Session) CurrentImage(id string) (int, string) {
	record, ok := s.Record(id)
	if !ok {
		return 0, ""
	}
	images := record.ImageList()
	i := s.carousel.Current(id, len(images))
	return i, images[i]
}

// RentType returns the rent type of the current record set
func (s *Session) RentType() domain.RentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rentType
}

// TargetRentType returns the rent type of the latest started load, which
// may still be in flight. Before any load it is empty.
func (s *Session) TargetRentType() domain.RentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// Engine returns the filter engine behind the pipeline
func (s *Session) Engine() *filter.Engine {
	return s.pipeline.Engine()
}

// Info returns a summary of the session state
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		RentType:  s.rentType,
		Source:    s.source,
		Count:     len(s.snap.Records),
		Version:   s.snap.Version,
		LoadedAt:  s.loadedAt,
		Requested: s.ledger.Len(),
	}
}
