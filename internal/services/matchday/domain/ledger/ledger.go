// Package ledger records match events and keeps scores and player counters
// in step with them.
//
// Every function runs against a storage.Tx supplied by the caller, so the
// ledger row, the match score and the player counters commit together.
// Forward and inverse effects live side by side in effects.go.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

var (
	// ErrMissingScorer indicates a goal with neither scorer nor own-goal flag.
	ErrMissingScorer = apperrors.New(apperrors.CodeMissingScorer, "goal requires a scorer or the own-goal flag")
	// ErrAssistIsScorer indicates a player assisting their own goal.
	ErrAssistIsScorer = apperrors.WithMetadata(apperrors.CodeInvalidArgument, "assist cannot be the scorer", map[string]string{"Field": "assist_id"})
)

// GoalInput describes one goal.
type GoalInput struct {
	MatchID  int64
	Team     storage.Team
	ScorerID *int64
	AssistID *int64
	Minute   *int
	OwnGoal  bool
	At       time.Time
}

// SubstitutionInput describes one player change.
type SubstitutionInput struct {
	MatchID     int64
	Team        storage.Team
	OutPlayerID int64
	InPlayerID  int64
	Minute      *int
	At          time.Time
}

// SummaryInput credits bulk goals and assists outside normal play.
type SummaryInput struct {
	SessionID int64
	PlayerID  int64
	Goals     int
	Assists   int
	At        time.Time
}

// Validate checks a goal without touching storage.
func (in GoalInput) Validate() error {
	if !in.Team.Valid() {
		return domain.InvalidArgument("team", "team must be orange or black")
	}
	if in.ScorerID == nil && !in.OwnGoal {
		return ErrMissingScorer
	}
	if in.ScorerID != nil && in.AssistID != nil && *in.ScorerID == *in.AssistID {
		return ErrAssistIsScorer
	}
	if in.Minute != nil && *in.Minute < 0 {
		return domain.InvalidArgument("minute", "minute cannot be negative")
	}
	return nil
}

// Validate checks a substitution without touching storage.
func (in SubstitutionInput) Validate() error {
	if !in.Team.Valid() {
		return domain.InvalidArgument("team", "team must be orange or black")
	}
	if in.OutPlayerID == 0 || in.InPlayerID == 0 {
		return domain.InvalidArgument("player_id", "both players are required")
	}
	if in.OutPlayerID == in.InPlayerID {
		return domain.InvalidArgument("in_player_id", "a player cannot replace themselves")
	}
	if in.Minute != nil && *in.Minute < 0 {
		return domain.InvalidArgument("minute", "minute cannot be negative")
	}
	return nil
}

// Validate checks a summary credit without touching storage.
func (in SummaryInput) Validate() error {
	if in.Goals < 0 || in.Assists < 0 {
		return domain.InvalidArgument("goals", "goals and assists cannot be negative")
	}
	if in.Goals == 0 && in.Assists == 0 {
		return domain.InvalidArgument("goals", "nothing to record")
	}
	return nil
}

// RecordGoal appends a goal to an in-progress match and applies its effects.
// Unless it is an own goal, scorer and assist must be on the scoring side.
func RecordGoal(ctx context.Context, tx storage.Tx, in GoalInput) (storage.EventRecord, storage.MatchRecord, error) {
	if err := in.Validate(); err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}
	match, err := loadMatch(ctx, tx, in.MatchID)
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}
	if match.Status != storage.MatchInProgress {
		return storage.EventRecord{}, storage.MatchRecord{}, domain.InvalidState(match, "record goal")
	}
	roster, err := LoadRoster(ctx, tx, match.ID)
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}
	if !in.OwnGoal {
		for _, playerID := range []*int64{in.ScorerID, in.AssistID} {
			if playerID != nil && !roster.On(*playerID, in.Team) {
				return storage.EventRecord{}, storage.MatchRecord{}, domain.PlayerNotInMatch(*playerID, in.Team)
			}
		}
	}

	event, err := tx.AppendEvent(ctx, storage.EventRecord{
		MatchID:   match.ID,
		Type:      storage.EventGoal,
		ScorerID:  in.ScorerID,
		AssistID:  in.AssistID,
		Team:      in.Team,
		Minute:    in.Minute,
		OwnGoal:   in.OwnGoal,
		CreatedAt: in.At,
	})
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, domain.FromStorage(err, nil)
	}
	if err := ApplyGoal(ctx, tx, &match, event, roster); err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, domain.FromStorage(err, nil)
	}
	return event, match, nil
}

// RecordSubstitution appends a substitution. It has no counter effects.
func RecordSubstitution(ctx context.Context, tx storage.Tx, in SubstitutionInput) (storage.EventRecord, error) {
	if err := in.Validate(); err != nil {
		return storage.EventRecord{}, err
	}
	match, err := loadMatch(ctx, tx, in.MatchID)
	if err != nil {
		return storage.EventRecord{}, err
	}
	if match.Status != storage.MatchInProgress {
		return storage.EventRecord{}, domain.InvalidState(match, "record substitution")
	}
	roster, err := LoadRoster(ctx, tx, match.ID)
	if err != nil {
		return storage.EventRecord{}, err
	}
	if !roster.On(in.OutPlayerID, in.Team) {
		return storage.EventRecord{}, domain.PlayerNotInMatch(in.OutPlayerID, in.Team)
	}
	if _, err := tx.GetPlayer(ctx, in.InPlayerID); err != nil {
		return storage.EventRecord{}, domain.FromStorage(err, domain.ErrPlayerNotFound)
	}

	event, err := tx.AppendEvent(ctx, storage.EventRecord{
		MatchID:     match.ID,
		Type:        storage.EventSubstitution,
		OutPlayerID: &in.OutPlayerID,
		InPlayerID:  &in.InPlayerID,
		Team:        in.Team,
		Minute:      in.Minute,
		CreatedAt:   in.At,
	})
	if err != nil {
		return storage.EventRecord{}, domain.FromStorage(err, nil)
	}
	return event, nil
}

// DeleteEvent reverts an event's effects and removes its row. It returns the
// removed row and the match as it stands afterwards.
func DeleteEvent(ctx context.Context, tx storage.Tx, eventID int64) (storage.EventRecord, storage.MatchRecord, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, domain.FromStorage(err, domain.ErrEventNotFound)
	}
	match, err := loadMatch(ctx, tx, event.MatchID)
	if err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, err
	}

	switch event.Type {
	case storage.EventGoal:
		roster, err := LoadRoster(ctx, tx, match.ID)
		if err != nil {
			return storage.EventRecord{}, storage.MatchRecord{}, err
		}
		if err := RevertGoal(ctx, tx, &match, event, roster); err != nil {
			return storage.EventRecord{}, storage.MatchRecord{}, domain.FromStorage(err, nil)
		}
	case storage.EventSummaryGoal:
		if err := RevertSummaryGoal(ctx, tx, event); err != nil {
			return storage.EventRecord{}, storage.MatchRecord{}, domain.FromStorage(err, nil)
		}
	}

	if err := tx.DeleteEvent(ctx, event.ID); err != nil {
		return storage.EventRecord{}, storage.MatchRecord{}, domain.FromStorage(err, domain.ErrEventNotFound)
	}
	return event, match, nil
}

// RecordTieDecider stores the nominal winner of a drawn match, replacing any
// earlier decision. Scores and counters are untouched.
func RecordTieDecider(ctx context.Context, tx storage.Tx, matchID int64, winner storage.Team, at time.Time) (storage.EventRecord, error) {
	if !winner.Valid() {
		return storage.EventRecord{}, domain.InvalidArgument("winner", "winner must be orange or black")
	}
	match, err := loadMatch(ctx, tx, matchID)
	if err != nil {
		return storage.EventRecord{}, err
	}
	if match.Number == storage.SummaryMatchNumber || match.Status != storage.MatchFinished || match.Winner != storage.WinnerDraw {
		return storage.EventRecord{}, domain.InvalidState(match, "record tie decider")
	}
	if err := tx.DeleteEventsByType(ctx, match.ID, storage.EventTieDecider); err != nil {
		return storage.EventRecord{}, err
	}
	event, err := tx.AppendEvent(ctx, storage.EventRecord{
		MatchID:   match.ID,
		Type:      storage.EventTieDecider,
		Team:      winner,
		CreatedAt: at,
	})
	if err != nil {
		return storage.EventRecord{}, domain.FromStorage(err, nil)
	}
	return event, nil
}

// RecordSummary credits goals and assists on the session's summary match,
// creating it on first use. Each goal and each assist is its own row so a
// single credit can be deleted later.
func RecordSummary(ctx context.Context, tx storage.Tx, in SummaryInput) (storage.MatchRecord, []storage.EventRecord, error) {
	if err := in.Validate(); err != nil {
		return storage.MatchRecord{}, nil, err
	}
	if _, err := tx.GetSession(ctx, in.SessionID); err != nil {
		return storage.MatchRecord{}, nil, domain.FromStorage(err, domain.ErrSessionNotFound)
	}
	if _, err := tx.GetPlayer(ctx, in.PlayerID); err != nil {
		return storage.MatchRecord{}, nil, domain.FromStorage(err, domain.ErrPlayerNotFound)
	}
	match, err := summaryMatch(ctx, tx, in.SessionID, in.At)
	if err != nil {
		return storage.MatchRecord{}, nil, err
	}

	playerID := in.PlayerID
	events := make([]storage.EventRecord, 0, in.Goals+in.Assists)
	appendRow := func(row storage.EventRecord) error {
		event, err := tx.AppendEvent(ctx, row)
		if err != nil {
			return domain.FromStorage(err, nil)
		}
		if err := ApplySummaryGoal(ctx, tx, event); err != nil {
			return err
		}
		events = append(events, event)
		return nil
	}
	for i := 0; i < in.Goals; i++ {
		if err := appendRow(storage.EventRecord{MatchID: match.ID, Type: storage.EventSummaryGoal, ScorerID: &playerID, CreatedAt: in.At}); err != nil {
			return storage.MatchRecord{}, nil, err
		}
	}
	for i := 0; i < in.Assists; i++ {
		if err := appendRow(storage.EventRecord{MatchID: match.ID, Type: storage.EventSummaryGoal, AssistID: &playerID, CreatedAt: in.At}); err != nil {
			return storage.MatchRecord{}, nil, err
		}
	}
	return match, events, nil
}

// Tally counts goal rows per side.
func Tally(events []storage.EventRecord) (orange, black int) {
	for _, event := range events {
		if event.Type != storage.EventGoal {
			continue
		}
		switch event.Team {
		case storage.TeamOrange:
			orange++
		case storage.TeamBlack:
			black++
		}
	}
	return orange, black
}

// Recompute rebuilds every player's counters from the ledger and played
// participants. Running it twice gives the same result.
func Recompute(ctx context.Context, tx storage.Tx) (int64, error) {
	updated, err := tx.RecomputePlayerCounters(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute counters: %w", err)
	}
	return updated, nil
}

func loadMatch(ctx context.Context, reader storage.Reader, matchID int64) (storage.MatchRecord, error) {
	match, err := reader.GetMatch(ctx, matchID)
	if err != nil {
		return storage.MatchRecord{}, domain.FromStorage(err, domain.ErrMatchNotFound)
	}
	return match, nil
}

func summaryMatch(ctx context.Context, tx storage.Tx, sessionID int64, at time.Time) (storage.MatchRecord, error) {
	match, err := tx.GetMatchByNumber(ctx, sessionID, storage.SummaryMatchNumber)
	if err == nil {
		return match, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.MatchRecord{}, err
	}
	record := storage.MatchRecord{
		SessionID: sessionID,
		Number:    storage.SummaryMatchNumber,
		Status:    storage.MatchFinished,
		CreatedAt: at,
	}
	if !at.IsZero() {
		record.FinishedAt = &at
	}
	match, err = tx.PutMatch(ctx, record)
	if err != nil {
		return storage.MatchRecord{}, domain.FromStorage(err, nil)
	}
	return match, nil
}
