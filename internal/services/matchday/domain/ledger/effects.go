package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

// Roster indexes a match's frozen participants by player.
type Roster struct {
	teams map[int64]storage.Team
}

// NewRoster builds a Roster from participant rows.
func NewRoster(participants []storage.ParticipantRecord) Roster {
	teams := make(map[int64]storage.Team, len(participants))
	for _, participant := range participants {
		teams[participant.PlayerID] = participant.Team
	}
	return Roster{teams: teams}
}

// LoadRoster reads the participants of matchID.
func LoadRoster(ctx context.Context, reader storage.Reader, matchID int64) (Roster, error) {
	participants, err := reader.ListParticipants(ctx, matchID)
	if err != nil {
		return Roster{}, fmt.Errorf("load roster: %w", err)
	}
	return NewRoster(participants), nil
}

// On reports whether playerID is rostered on team.
func (r Roster) On(playerID int64, team storage.Team) bool {
	got, ok := r.teams[playerID]
	return ok && got == team
}

// Players returns the player IDs on team in ascending order.
func (r Roster) Players(team storage.Team) []int64 {
	var ids []int64
	for playerID, got := range r.teams {
		if got == team {
			ids = append(ids, playerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of rostered players.
func (r Roster) Len() int {
	return len(r.teams)
}

// ApplyGoal adds one goal row's effects: the side's score, the scorer's
// goals (unless own goal), the assist, and a conceded goal for every player
// on the opposing roster.
func ApplyGoal(ctx context.Context, tx storage.Tx, match *storage.MatchRecord, event storage.EventRecord, roster Roster) error {
	return applyGoal(ctx, tx, match, event, roster, 1)
}

// RevertGoal removes exactly what ApplyGoal added. Stores clamp counters at
// zero and the score never drops below zero.
func RevertGoal(ctx context.Context, tx storage.Tx, match *storage.MatchRecord, event storage.EventRecord, roster Roster) error {
	return applyGoal(ctx, tx, match, event, roster, -1)
}

// ApplySummaryGoal credits a summary row's scorer and assist.
func ApplySummaryGoal(ctx context.Context, tx storage.Tx, event storage.EventRecord) error {
	return addDeltas(ctx, tx, summaryDeltas(event, 1))
}

// RevertSummaryGoal removes what ApplySummaryGoal credited.
func RevertSummaryGoal(ctx context.Context, tx storage.Tx, event storage.EventRecord) error {
	return addDeltas(ctx, tx, summaryDeltas(event, -1))
}

func applyGoal(ctx context.Context, tx storage.Tx, match *storage.MatchRecord, event storage.EventRecord, roster Roster, sign int) error {
	if event.Type != storage.EventGoal {
		return fmt.Errorf("event %d is %s, not a goal", event.ID, event.Type)
	}
	if !event.Team.Valid() {
		return fmt.Errorf("goal event %d has no team", event.ID)
	}
	if match == nil || match.ID != event.MatchID {
		return fmt.Errorf("goal event %d does not belong to the given match", event.ID)
	}

	switch event.Team {
	case storage.TeamOrange:
		match.OrangeScore = max(0, match.OrangeScore+sign)
	case storage.TeamBlack:
		match.BlackScore = max(0, match.BlackScore+sign)
	}
	if match.Status == storage.MatchFinished {
		match.Winner = storage.WinnerFromScore(match.OrangeScore, match.BlackScore)
	}
	if err := tx.UpdateMatch(ctx, *match); err != nil {
		return fmt.Errorf("update match score: %w", err)
	}
	return addDeltas(ctx, tx, goalDeltas(event, roster, sign))
}

func goalDeltas(event storage.EventRecord, roster Roster, sign int) map[int64]storage.CounterDelta {
	deltas := make(map[int64]storage.CounterDelta)
	if event.ScorerID != nil && !event.OwnGoal {
		d := deltas[*event.ScorerID]
		d.GoalsScored += sign
		deltas[*event.ScorerID] = d
	}
	if event.AssistID != nil {
		d := deltas[*event.AssistID]
		d.Assists += sign
		deltas[*event.AssistID] = d
	}
	for _, playerID := range roster.Players(event.Team.Opponent()) {
		d := deltas[playerID]
		d.GoalsConceded += sign
		deltas[playerID] = d
	}
	return deltas
}

func summaryDeltas(event storage.EventRecord, sign int) map[int64]storage.CounterDelta {
	deltas := make(map[int64]storage.CounterDelta)
	if event.ScorerID != nil {
		d := deltas[*event.ScorerID]
		d.GoalsScored += sign
		deltas[*event.ScorerID] = d
	}
	if event.AssistID != nil {
		d := deltas[*event.AssistID]
		d.Assists += sign
		deltas[*event.AssistID] = d
	}
	return deltas
}

func addDeltas(ctx context.Context, tx storage.Tx, deltas map[int64]storage.CounterDelta) error {
	ids := make([]int64, 0, len(deltas))
	for playerID := range deltas {
		ids = append(ids, playerID)
	}
	// Deterministic write order.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, playerID := range ids {
		if err := tx.AddPlayerCounters(ctx, playerID, deltas[playerID]); err != nil {
			return fmt.Errorf("player %d counters: %w", playerID, err)
		}
	}
	return nil
}
