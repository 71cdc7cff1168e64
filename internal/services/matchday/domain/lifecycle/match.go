package lifecycle

import (
	"context"
	"errors"
	"log"
	"sort"
	"strconv"

	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/draft"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/ledger"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/rotation"
	"github.com/louisbranch/matchday/internal/services/matchday/live"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"github.com/louisbranch/matchday/internal/services/matchday/view"
	"go.opentelemetry.io/otel/attribute"
)

// DrawResult is the outcome of drafting a match.
type DrawResult struct {
	Match        storage.MatchRecord
	Participants []storage.ParticipantRecord
	// Waiting lists present players left off both rosters, in arrival order.
	Waiting []int64
	// SatOut lists players kept out by the rotation rule.
	SatOut   []int64
	Decision rotation.Decision
}

// FinishResult is the outcome of finishing a match.
type FinishResult struct {
	Match storage.MatchRecord
	// Reconciled reports that submitted scores disagreed with the ledger
	// and were replaced by the ledger tally.
	Reconciled bool
}

// CreateMatch schedules a numbered match in a session.
func (s *Service) CreateMatch(ctx context.Context, sessionID int64, number int) (match storage.MatchRecord, err error) {
	if number <= storage.SummaryMatchNumber {
		return storage.MatchRecord{}, domain.InvalidArgument("number", "match number must be positive")
	}
	ctx, span := s.startSpan(ctx, "CreateMatch", attribute.Int64("session_id", sessionID), attribute.Int("number", number))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetSession(ctx, sessionID); err != nil {
			return domain.FromStorage(err, domain.ErrSessionNotFound)
		}
		if _, err := tx.GetMatchByNumber(ctx, sessionID, number); err == nil {
			return duplicateMatchNumber(number)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		created, err := tx.PutMatch(ctx, storage.MatchRecord{
			SessionID: sessionID,
			Number:    number,
			Status:    storage.MatchScheduled,
			CreatedAt: s.clock(),
		})
		if errors.Is(err, storage.ErrConflict) {
			return duplicateMatchNumber(number)
		}
		if err != nil {
			return err
		}
		match = created
		return nil
	})
	return match, err
}

// GetMatch loads one match.
func (s *Service) GetMatch(ctx context.Context, matchID int64) (storage.MatchRecord, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return storage.MatchRecord{}, domain.FromStorage(err, domain.ErrMatchNotFound)
	}
	return match, nil
}

// ListMatches lists a session's matches by number.
func (s *Service) ListMatches(ctx context.Context, sessionID int64) ([]storage.MatchRecord, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, domain.FromStorage(err, domain.ErrSessionNotFound)
	}
	return s.store.ListMatches(ctx, sessionID)
}

// Draw drafts a scheduled match from the present players, applying the
// rotation rule, and moves it to in_progress.
func (s *Service) Draw(ctx context.Context, matchID int64) (result DrawResult, err error) {
	ctx, span := s.startSpan(ctx, "Draw", attribute.Int64("match_id", matchID))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		match, err := s.loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != storage.MatchScheduled || match.Number == storage.SummaryMatchNumber {
			return domain.InvalidState(match, "draw")
		}
		session, err := tx.GetSession(ctx, match.SessionID)
		if err != nil {
			return domain.FromStorage(err, domain.ErrSessionNotFound)
		}
		present, err := tx.ListPresentPlayers(ctx, session.ID)
		if err != nil {
			return err
		}
		decision, previous, err := s.decide(ctx, tx, match, session)
		if err != nil {
			return err
		}

		candidates := make([]draft.Candidate, 0, len(present))
		for _, player := range present {
			candidates = append(candidates, draft.Candidate{
				PlayerID:     player.PlayerID,
				Goalkeeper:   player.Goalkeeper,
				ArrivalOrder: player.ArrivalOrder,
			})
		}
		sitOut := rotation.SitOut(decision, previous)
		pool, applied := rotation.Eligible(candidates, sitOut, s.teamSize)
		if len(sitOut) > 0 && !applied {
			log.Printf("matchday: rotation skipped match=%d reason=%q sit_out=%d present=%d", match.ID, decision.Reason, len(sitOut), len(candidates))
		}
		drawn, err := draft.Draw(pool, s.teamSize, s.rng)
		if err != nil {
			return err
		}

		participants := drawn.Participants(match.ID)
		if err := tx.ReplaceParticipants(ctx, match.ID, participants); err != nil {
			return domain.FromStorage(err, nil)
		}
		now := s.clock()
		match.OrangeStreak = decision.OrangeStreak
		match.BlackStreak = decision.BlackStreak
		match.Status = storage.MatchInProgress
		match.StartedAt = &now
		if err := tx.UpdateMatch(ctx, match); err != nil {
			return domain.FromStorage(err, domain.ErrMatchNotFound)
		}

		result = DrawResult{
			Match:        match,
			Participants: participants,
			Decision:     decision,
		}
		for _, waiting := range drawn.Waiting {
			result.Waiting = append(result.Waiting, waiting.PlayerID)
		}
		if applied {
			result.SatOut = sortedIDs(sitOut)
		}
		return nil
	})
	if err != nil {
		return DrawResult{}, err
	}

	s.publish(ctx, live.Message{
		Kind:    live.KindStarted,
		MatchID: result.Match.ID,
		Payload: buildSnapshot(result.Match, result.Participants, nil),
	})
	return result, nil
}

// SetParticipants replaces the roster of an in-progress match and
// recomputes its streak counters. Goals already recorded are re-applied
// against the new roster so conceded counters follow the players on the
// pitch; the running score is kept.
func (s *Service) SetParticipants(ctx context.Context, matchID int64, orange, black []int64) (match storage.MatchRecord, participants []storage.ParticipantRecord, err error) {
	if err := validateRosters(orange, black); err != nil {
		return storage.MatchRecord{}, nil, err
	}
	ctx, span := s.startSpan(ctx, "SetParticipants", attribute.Int64("match_id", matchID))
	defer func() { endSpan(span, err) }()

	var events []storage.EventRecord
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		loaded, err := s.loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if loaded.Status != storage.MatchInProgress {
			return domain.InvalidState(loaded, "set participants")
		}
		session, err := tx.GetSession(ctx, loaded.SessionID)
		if err != nil {
			return domain.FromStorage(err, domain.ErrSessionNotFound)
		}

		next := make([]storage.ParticipantRecord, 0, len(orange)+len(black))
		for _, side := range []struct {
			team storage.Team
			ids  []int64
		}{{storage.TeamOrange, orange}, {storage.TeamBlack, black}} {
			for _, playerID := range side.ids {
				player, err := tx.GetPlayer(ctx, playerID)
				if err != nil {
					return domain.FromStorage(err, domain.ErrPlayerNotFound)
				}
				next = append(next, storage.ParticipantRecord{
					MatchID:    loaded.ID,
					PlayerID:   playerID,
					Team:       side.team,
					Goalkeeper: player.Goalkeeper,
				})
			}
		}

		oldRoster, err := ledger.LoadRoster(ctx, tx, loaded.ID)
		if err != nil {
			return err
		}
		events, err = tx.ListEvents(ctx, loaded.ID)
		if err != nil {
			return err
		}
		orangeScore, blackScore := loaded.OrangeScore, loaded.BlackScore
		for _, event := range events {
			if event.Type != storage.EventGoal {
				continue
			}
			if err := ledger.RevertGoal(ctx, tx, &loaded, event, oldRoster); err != nil {
				return domain.FromStorage(err, nil)
			}
		}
		if err := tx.ReplaceParticipants(ctx, loaded.ID, next); err != nil {
			return domain.FromStorage(err, nil)
		}
		newRoster := ledger.NewRoster(next)
		for _, event := range events {
			if event.Type != storage.EventGoal {
				continue
			}
			if err := ledger.ApplyGoal(ctx, tx, &loaded, event, newRoster); err != nil {
				return domain.FromStorage(err, nil)
			}
		}

		decision, _, err := s.decide(ctx, tx, loaded, session)
		if err != nil {
			return err
		}
		loaded.OrangeScore, loaded.BlackScore = orangeScore, blackScore
		loaded.OrangeStreak = decision.OrangeStreak
		loaded.BlackStreak = decision.BlackStreak
		if err := tx.UpdateMatch(ctx, loaded); err != nil {
			return domain.FromStorage(err, domain.ErrMatchNotFound)
		}
		match = loaded
		participants, err = tx.ListParticipants(ctx, loaded.ID)
		return err
	})
	if err != nil {
		return storage.MatchRecord{}, nil, err
	}

	s.publish(ctx, live.Message{
		Kind:    live.KindInit,
		MatchID: match.ID,
		Payload: buildSnapshot(match, participants, events),
	})
	return match, participants, nil
}

// Finish closes an in-progress match. Submitted scores that disagree with
// the ledger tally are replaced by it. Every player in played, or every
// rostered player when played is nil, is credited one game.
func (s *Service) Finish(ctx context.Context, matchID int64, orange, black int, played []int64) (result FinishResult, err error) {
	if orange < 0 || black < 0 {
		return FinishResult{}, domain.InvalidArgument("score", "scores cannot be negative")
	}
	ctx, span := s.startSpan(ctx, "Finish", attribute.Int64("match_id", matchID))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		match, err := s.loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != storage.MatchInProgress {
			return domain.InvalidState(match, "finish")
		}

		now := s.clock()
		match.OrangeScore, match.BlackScore = orange, black
		match.Winner = storage.WinnerFromScore(orange, black)
		match.Status = storage.MatchFinished
		match.FinishedAt = &now

		tallyOrange, tallyBlack, err := tx.GoalTally(ctx, match.ID)
		if err != nil {
			return err
		}
		if tallyOrange != orange || tallyBlack != black {
			log.Printf("matchday: finish reconciled match=%d submitted=%d-%d ledger=%d-%d", match.ID, orange, black, tallyOrange, tallyBlack)
			match.OrangeScore, match.BlackScore = tallyOrange, tallyBlack
			match.Winner = storage.WinnerFromScore(tallyOrange, tallyBlack)
			result.Reconciled = true
		}
		if err := tx.UpdateMatch(ctx, match); err != nil {
			return domain.FromStorage(err, domain.ErrMatchNotFound)
		}

		roster, err := ledger.LoadRoster(ctx, tx, match.ID)
		if err != nil {
			return err
		}
		credited, err := playedIDs(roster, played)
		if err != nil {
			return err
		}
		for _, playerID := range credited {
			if err := tx.AddPlayerCounters(ctx, playerID, storage.CounterDelta{GamesPlayed: 1}); err != nil {
				return domain.FromStorage(err, domain.ErrPlayerNotFound)
			}
		}
		if err := tx.MarkParticipantsPlayed(ctx, match.ID, credited); err != nil {
			return domain.FromStorage(err, nil)
		}
		result.Match = match
		return nil
	})
	if err != nil {
		return FinishResult{}, err
	}

	s.publish(ctx, live.Message{
		Kind:    live.KindFinish,
		MatchID: result.Match.ID,
		Payload: view.FromMatch(result.Match),
	})
	return result, nil
}

// AdjustScore overrides a match score in any status. A finished match gets
// its winner re-derived.
func (s *Service) AdjustScore(ctx context.Context, matchID int64, orange, black int) (match storage.MatchRecord, err error) {
	if orange < 0 || black < 0 {
		return storage.MatchRecord{}, domain.InvalidArgument("score", "scores cannot be negative")
	}
	ctx, span := s.startSpan(ctx, "AdjustScore", attribute.Int64("match_id", matchID))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		loaded, err := s.loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if loaded.Number == storage.SummaryMatchNumber {
			return domain.InvalidState(loaded, "adjust score")
		}
		match, err = setScore(ctx, tx, loaded, orange, black)
		return err
	})
	if err != nil {
		return storage.MatchRecord{}, err
	}
	s.publishScore(ctx, match)
	return match, nil
}

// SyncScore resets a match score to its ledger tally. Running it twice
// changes nothing.
func (s *Service) SyncScore(ctx context.Context, matchID int64) (match storage.MatchRecord, err error) {
	ctx, span := s.startSpan(ctx, "SyncScore", attribute.Int64("match_id", matchID))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		loaded, err := s.loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if loaded.Number == storage.SummaryMatchNumber {
			return domain.InvalidState(loaded, "sync score")
		}
		orange, black, err := tx.GoalTally(ctx, loaded.ID)
		if err != nil {
			return err
		}
		match, err = setScore(ctx, tx, loaded, orange, black)
		return err
	})
	if err != nil {
		return storage.MatchRecord{}, err
	}
	s.publishScore(ctx, match)
	return match, nil
}

// DeleteMatch reverses every counter effect of a match and removes it with
// its roster and ledger.
func (s *Service) DeleteMatch(ctx context.Context, matchID int64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteMatch", attribute.Int64("match_id", matchID))
	defer func() { endSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		match, err := s.loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		participants, err := tx.ListParticipants(ctx, match.ID)
		if err != nil {
			return err
		}
		roster := ledger.NewRoster(participants)
		events, err := tx.ListEvents(ctx, match.ID)
		if err != nil {
			return err
		}
		for _, event := range events {
			switch event.Type {
			case storage.EventGoal:
				if err := ledger.RevertGoal(ctx, tx, &match, event, roster); err != nil {
					return domain.FromStorage(err, nil)
				}
			case storage.EventSummaryGoal:
				if err := ledger.RevertSummaryGoal(ctx, tx, event); err != nil {
					return domain.FromStorage(err, nil)
				}
			}
		}
		for _, participant := range participants {
			if !participant.Played {
				continue
			}
			if err := tx.AddPlayerCounters(ctx, participant.PlayerID, storage.CounterDelta{GamesPlayed: -1}); err != nil {
				return domain.FromStorage(err, domain.ErrPlayerNotFound)
			}
		}
		if err := tx.DeleteMatch(ctx, match.ID); err != nil {
			return domain.FromStorage(err, domain.ErrMatchNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, live.Message{Kind: live.KindDeleted, MatchID: matchID})
	return nil
}

func (s *Service) publishScore(ctx context.Context, match storage.MatchRecord) {
	s.publish(ctx, live.Message{
		Kind:    live.KindScore,
		MatchID: match.ID,
		Payload: view.ScoreOf(match),
	})
}

func (s *Service) loadMatch(ctx context.Context, reader storage.Reader, matchID int64) (storage.MatchRecord, error) {
	match, err := reader.GetMatch(ctx, matchID)
	if err != nil {
		return storage.MatchRecord{}, domain.FromStorage(err, domain.ErrMatchNotFound)
	}
	return match, nil
}

// decide runs the rotation rule for match against the session's earlier
// finished matches and returns the previous match roster alongside.
func (s *Service) decide(ctx context.Context, tx storage.Tx, match storage.MatchRecord, session storage.SessionRecord) (rotation.Decision, []storage.ParticipantRecord, error) {
	outcomes, err := tx.RecentOutcomes(ctx, session.ID, match.Number, s.threshold)
	if err != nil {
		return rotation.Decision{}, nil, err
	}
	decision := rotation.Decide(outcomes, session.ManyPresentRule, s.threshold)
	if len(outcomes) == 0 {
		return decision, nil, nil
	}
	previous, err := tx.ListParticipants(ctx, outcomes[0].MatchID)
	if err != nil {
		return rotation.Decision{}, nil, err
	}
	return decision, previous, nil
}

func setScore(ctx context.Context, tx storage.Tx, match storage.MatchRecord, orange, black int) (storage.MatchRecord, error) {
	match.OrangeScore, match.BlackScore = orange, black
	if match.Status == storage.MatchFinished {
		match.Winner = storage.WinnerFromScore(orange, black)
	}
	if err := tx.UpdateMatch(ctx, match); err != nil {
		return storage.MatchRecord{}, domain.FromStorage(err, domain.ErrMatchNotFound)
	}
	return match, nil
}

func playedIDs(roster ledger.Roster, played []int64) ([]int64, error) {
	if played == nil {
		ids := append(roster.Players(storage.TeamOrange), roster.Players(storage.TeamBlack)...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	}
	seen := make(map[int64]struct{}, len(played))
	ids := make([]int64, 0, len(played))
	for _, playerID := range played {
		if _, ok := seen[playerID]; ok {
			continue
		}
		if !roster.On(playerID, storage.TeamOrange) && !roster.On(playerID, storage.TeamBlack) {
			return nil, domain.PlayerNotInMatch(playerID, "")
		}
		seen[playerID] = struct{}{}
		ids = append(ids, playerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func validateRosters(orange, black []int64) error {
	if len(orange) == 0 || len(black) == 0 {
		return domain.InvalidArgument("participants", "both teams need at least one player")
	}
	seen := make(map[int64]struct{}, len(orange)+len(black))
	for _, playerID := range append(append([]int64(nil), orange...), black...) {
		if _, ok := seen[playerID]; ok {
			return domain.InvalidArgument("participants", "player "+strconv.FormatInt(playerID, 10)+" is listed twice")
		}
		seen[playerID] = struct{}{}
	}
	return nil
}

func duplicateMatchNumber(number int) error {
	return apperrors.WithMetadata(
		apperrors.CodeDuplicateMatchNumber,
		"match number "+strconv.Itoa(number)+" already exists",
		map[string]string{"Number": strconv.Itoa(number)},
	)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
