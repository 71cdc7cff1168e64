package lifecycle

import (
	"context"

	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/ledger"
	"github.com/louisbranch/matchday/internal/services/matchday/live"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"go.opentelemetry.io/otel/attribute"
)

// RecordGoal appends a goal and updates score and counters.
func (s *Service) RecordGoal(ctx context.Context, in ledger.GoalInput) (event storage.EventRecord, match storage.MatchRecord, err error) {
	if err := in.Validate(); err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}
	if in.At.IsZero() {
		in.At = s.clock()
	}
	ctx, span := s.startSpan(ctx, "RecordGoal",
		attribute.Int64("match_id", in.MatchID),
		attribute.String("team", string(in.Team)),
		attribute.Bool("own_goal", in.OwnGoal),
	)
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		event, match, err = ledger.RecordGoal(ctx, tx, in)
		return err
	})
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}
	s.publishEvent(ctx, live.KindGoal, event, match)
	return event, match, nil
}

// RecordSubstitution appends a substitution.
func (s *Service) RecordSubstitution(ctx context.Context, in ledger.SubstitutionInput) (event storage.EventRecord, err error) {
	if err := in.Validate(); err != nil {
		return storage.EventRecord{}, err
	}
	if in.At.IsZero() {
		in.At = s.clock()
	}
	ctx, span := s.startSpan(ctx, "RecordSubstitution", attribute.Int64("match_id", in.MatchID))
	defer func() { endSpan(span, err) }()

	var match storage.MatchRecord
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		event, err = ledger.RecordSubstitution(ctx, tx, in)
		if err != nil {
			return err
		}
		match, err = s.loadMatch(ctx, tx, in.MatchID)
		return err
	})
	if err != nil {
		return storage.EventRecord{}, err
	}
	s.publishEvent(ctx, live.KindSubstitution, event, match)
	return event, nil
}

// DeleteEvent reverts an event and removes it.
func (s *Service) DeleteEvent(ctx context.Context, eventID int64) (event storage.EventRecord, match storage.MatchRecord, err error) {
	ctx, span := s.startSpan(ctx, "DeleteEvent", attribute.Int64("event_id", eventID))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		event, match, err = ledger.DeleteEvent(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}
	s.publishEvent(ctx, live.KindEventDeleted, event, match)
	return event, match, nil
}

// RecordTieDecider stores who won the tiebreak of a drawn match.
func (s *Service) RecordTieDecider(ctx context.Context, matchID int64, winner storage.Team) (event storage.EventRecord, err error) {
	if !winner.Valid() {
		return storage.EventRecord{}, domain.InvalidArgument("winner", "winner must be orange or black")
	}
	ctx, span := s.startSpan(ctx, "RecordTieDecider", attribute.Int64("match_id", matchID), attribute.String("winner", string(winner)))
	defer func() { endSpan(span, err) }()

	var match storage.MatchRecord
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		event, err = ledger.RecordTieDecider(ctx, tx, matchID, winner, s.clock())
		if err != nil {
			return err
		}
		match, err = s.loadMatch(ctx, tx, matchID)
		return err
	})
	if err != nil {
		return storage.EventRecord{}, err
	}
	s.publishEvent(ctx, live.KindTieDecider, event, match)
	return event, nil
}

// RecordSummary credits goals and assists outside normal play.
func (s *Service) RecordSummary(ctx context.Context, in ledger.SummaryInput) (match storage.MatchRecord, events []storage.EventRecord, err error) {
	if err := in.Validate(); err != nil {
		return storage.MatchRecord{}, nil, err
	}
	if in.At.IsZero() {
		in.At = s.clock()
	}
	ctx, span := s.startSpan(ctx, "RecordSummary",
		attribute.Int64("session_id", in.SessionID),
		attribute.Int64("player_id", in.PlayerID),
	)
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		match, events, err = ledger.RecordSummary(ctx, tx, in)
		return err
	})
	return match, events, err
}

// ListEvents lists a match's ledger.
func (s *Service) ListEvents(ctx context.Context, matchID int64) ([]storage.EventRecord, error) {
	if _, err := s.loadMatch(ctx, s.store, matchID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, matchID)
}

// RecomputeStats rebuilds every player's counters from the ledger.
func (s *Service) RecomputeStats(ctx context.Context) (updated int64, err error) {
	ctx, span := s.startSpan(ctx, "RecomputeStats")
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		updated, err = ledger.Recompute(ctx, tx)
		return err
	})
	return updated, err
}
