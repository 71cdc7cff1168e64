// Package lifecycle drives a match from creation to finish.
//
// Every operation opens exactly one store transaction, so a failure leaves
// no partial effects, and publishes to the live broadcaster only after the
// transaction commits.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/louisbranch/matchday/internal/random"
	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/draft"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/rotation"
	"github.com/louisbranch/matchday/internal/services/matchday/live"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"github.com/louisbranch/matchday/internal/services/matchday/view"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/matchday/internal/services/matchday/domain/lifecycle"

// Clock returns the current time.
type Clock func() time.Time

// Publisher receives notifications after a transaction commits.
type Publisher interface {
	Publish(ctx context.Context, msg live.Message)
}

// Config holds the rules the core consumes.
type Config struct {
	// TeamSize is the roster cap per team.
	TeamSize int
	// Threshold is the win streak that forces a rotation.
	Threshold int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRand overrides the draw randomness.
func WithRand(rng draft.Rand) Option {
	return func(s *Service) {
		if rng != nil {
			s.rng = &lockedRand{rng: rng}
		}
	}
}

// WithPublisher sets the notification sink.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// Service implements the match lifecycle on top of a Store.
type Service struct {
	store     storage.Store
	publisher Publisher
	clock     Clock
	rng       *lockedRand
	teamSize  int
	threshold int
	tracer    trace.Tracer
}

var _ live.SnapshotSource = (*Service)(nil)

// NewService builds a lifecycle service.
func NewService(store storage.Store, config Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.TeamSize == 0 {
		config.TeamSize = draft.DefaultTeamSize
	}
	if config.TeamSize < 3 {
		return nil, fmt.Errorf("team size must be at least 3, got %d", config.TeamSize)
	}
	if config.Threshold <= 0 {
		config.Threshold = rotation.DefaultThreshold
	}

	s := &Service{
		store:     store,
		publisher: noopPublisher{},
		clock:     time.Now,
		teamSize:  config.TeamSize,
		threshold: config.Threshold,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.rng == nil {
		rng, _, err := random.NewRand(0)
		if err != nil {
			return nil, fmt.Errorf("seed draw: %w", err)
		}
		s.rng = &lockedRand{rng: rng}
	}
	return s, nil
}

// SetPublisher replaces the notification sink. Call it before serving.
func (s *Service) SetPublisher(publisher Publisher) {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	s.publisher = publisher
}

// TeamSize returns the configured roster cap.
func (s *Service) TeamSize() int {
	return s.teamSize
}

// MatchSnapshot loads a match with its roster and ledger for a new viewer.
func (s *Service) MatchSnapshot(ctx context.Context, matchID int64) (live.Snapshot, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return live.Snapshot{}, domain.FromStorage(err, domain.ErrMatchNotFound)
	}
	participants, err := s.store.ListParticipants(ctx, matchID)
	if err != nil {
		return live.Snapshot{}, fmt.Errorf("load participants: %w", err)
	}
	events, err := s.store.ListEvents(ctx, matchID)
	if err != nil {
		return live.Snapshot{}, fmt.Errorf("load events: %w", err)
	}
	return buildSnapshot(match, participants, events), nil
}

// ActiveMatch returns the most recently started in-progress match.
func (s *Service) ActiveMatch(ctx context.Context) (int64, bool, error) {
	match, err := s.store.LatestInProgressMatch(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return match.ID, true, nil
}

func buildSnapshot(match storage.MatchRecord, participants []storage.ParticipantRecord, events []storage.EventRecord) live.Snapshot {
	snapshot := live.Snapshot{
		Match:        view.FromMatch(match),
		Participants: view.FromParticipants(participants),
		Events:       view.FromEvents(events),
		Score:        view.ScoreOf(match),
	}
	for _, event := range events {
		if event.ID > snapshot.LastEventID {
			snapshot.LastEventID = event.ID
		}
	}
	return snapshot
}

func (s *Service) publish(ctx context.Context, msg live.Message) {
	if msg.At.IsZero() {
		msg.At = s.clock()
	}
	s.publisher.Publish(ctx, msg)
}

func (s *Service) publishEvent(ctx context.Context, kind live.Kind, event storage.EventRecord, match storage.MatchRecord) {
	s.publish(ctx, live.Message{
		Kind:    kind,
		MatchID: match.ID,
		EventID: event.ID,
		Payload: live.EventUpdate{Event: view.FromEvent(event), Score: view.ScoreOf(match)},
	})
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "matchday."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, live.Message) {}

// lockedRand serializes a Rand that is not safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	rng draft.Rand
}

func (r *lockedRand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(n, swap)
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
