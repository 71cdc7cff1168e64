package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"go.opentelemetry.io/otel/attribute"
)

// CreatePlayer registers a player with zeroed counters.
func (s *Service) CreatePlayer(ctx context.Context, name string, goalkeeper bool) (player storage.PlayerRecord, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.PlayerRecord{}, domain.InvalidArgument("name", "player name is required")
	}
	ctx, span := s.startSpan(ctx, "CreatePlayer")
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		created, err := tx.PutPlayer(ctx, storage.PlayerRecord{
			Name:       name,
			Goalkeeper: goalkeeper,
			CreatedAt:  s.clock(),
		})
		if err != nil {
			return domain.FromStorage(err, nil)
		}
		player = created
		return nil
	})
	return player, err
}

// ListPlayers lists every player with counters.
func (s *Service) ListPlayers(ctx context.Context) ([]storage.PlayerRecord, error) {
	return s.store.ListPlayers(ctx)
}

// CreateSession opens a game day. Dates are unique.
func (s *Service) CreateSession(ctx context.Context, date time.Time, manyPresentRule bool) (session storage.SessionRecord, err error) {
	if date.IsZero() {
		return storage.SessionRecord{}, domain.InvalidArgument("date", "session date is required")
	}
	ctx, span := s.startSpan(ctx, "CreateSession", attribute.String("date", date.Format(time.DateOnly)))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		created, err := tx.PutSession(ctx, storage.SessionRecord{
			Date:            date,
			ManyPresentRule: manyPresentRule,
			CreatedAt:       s.clock(),
		})
		if err != nil {
			return domain.FromStorage(err, nil)
		}
		session = created
		return nil
	})
	return session, err
}

// CurrentSession returns the latest game day.
func (s *Service) CurrentSession(ctx context.Context) (storage.SessionRecord, error) {
	session, err := s.store.CurrentSession(ctx)
	if err != nil {
		return storage.SessionRecord{}, domain.FromStorage(err, domain.ErrSessionNotFound)
	}
	return session, nil
}

// SetAttendance marks a player present or absent. The first arrival of the
// day fixes the player's place in the draw order.
func (s *Service) SetAttendance(ctx context.Context, sessionID, playerID int64, present bool) (record storage.AttendanceRecord, err error) {
	ctx, span := s.startSpan(ctx, "SetAttendance",
		attribute.Int64("session_id", sessionID),
		attribute.Int64("player_id", playerID),
		attribute.Bool("present", present),
	)
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetSession(ctx, sessionID); err != nil {
			return domain.FromStorage(err, domain.ErrSessionNotFound)
		}
		if _, err := tx.GetPlayer(ctx, playerID); err != nil {
			return domain.FromStorage(err, domain.ErrPlayerNotFound)
		}
		updated, err := tx.SetAttendance(ctx, sessionID, playerID, present)
		if err != nil {
			return domain.FromStorage(err, nil)
		}
		record = updated
		return nil
	})
	return record, err
}

// PresentPlayers lists a session's present players in arrival order.
func (s *Service) PresentPlayers(ctx context.Context, sessionID int64) ([]storage.PresentPlayer, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, domain.FromStorage(err, domain.ErrSessionNotFound)
	}
	return s.store.ListPresentPlayers(ctx, sessionID)
}
