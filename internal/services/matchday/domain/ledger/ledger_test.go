package ledger

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"github.com/louisbranch/matchday/internal/services/matchday/storage/sqlite"
)

var testNow = time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store   *sqlite.Store
	session storage.SessionRecord
	match   storage.MatchRecord
	orange  []int64
	black   []int64
	bench   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	f := &fixture{store: store}
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		session, err := tx.PutSession(ctx, storage.SessionRecord{Date: testNow})
		if err != nil {
			return err
		}
		f.session = session
		var participants []storage.ParticipantRecord
		for i := 0; i < 7; i++ {
			player, err := tx.PutPlayer(ctx, storage.PlayerRecord{Name: string(rune('A' + i))})
			if err != nil {
				return err
			}
			switch {
			case i < 3:
				f.orange = append(f.orange, player.ID)
				participants = append(participants, storage.ParticipantRecord{PlayerID: player.ID, Team: storage.TeamOrange})
			case i < 6:
				f.black = append(f.black, player.ID)
				participants = append(participants, storage.ParticipantRecord{PlayerID: player.ID, Team: storage.TeamBlack})
			default:
				f.bench = player.ID
			}
		}
		started := testNow
		match, err := tx.PutMatch(ctx, storage.MatchRecord{
			SessionID: session.ID,
			Number:    1,
			Status:    storage.MatchInProgress,
			StartedAt: &started,
		})
		if err != nil {
			return err
		}
		f.match = match
		return tx.ReplaceParticipants(ctx, match.ID, participants)
	})
	return f
}

func (f *fixture) run(t *testing.T, fn func(ctx context.Context, tx storage.Tx) error) {
	t.Helper()
	if err := f.store.RunTransaction(context.Background(), fn); err != nil {
		t.Fatalf("run transaction: %v", err)
	}
}

func (f *fixture) try(fn func(ctx context.Context, tx storage.Tx) error) error {
	return f.store.RunTransaction(context.Background(), fn)
}

func (f *fixture) players(t *testing.T) map[int64]storage.PlayerRecord {
	t.Helper()
	players, err := f.store.ListPlayers(context.Background())
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	out := make(map[int64]storage.PlayerRecord, len(players))
	for _, player := range players {
		out[player.ID] = player
	}
	return out
}

func (f *fixture) currentMatch(t *testing.T) storage.MatchRecord {
	t.Helper()
	match, err := f.store.GetMatch(context.Background(), f.match.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	return match
}

func ptr[T any](v T) *T { return &v }

func TestRecordGoalAppliesEffects(t *testing.T) {
	f := newFixture(t)
	scorer, assist := f.orange[0], f.orange[1]

	var event storage.EventRecord
	var match storage.MatchRecord
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		var err error
		event, match, err = RecordGoal(ctx, tx, GoalInput{
			MatchID: f.match.ID, Team: storage.TeamOrange,
			ScorerID: &scorer, AssistID: &assist, Minute: ptr(14), At: testNow,
		})
		return err
	})

	if event.ID == 0 || event.Type != storage.EventGoal {
		t.Fatalf("event = %+v", event)
	}
	if match.OrangeScore != 1 || match.BlackScore != 0 {
		t.Fatalf("returned score = %d-%d, want 1-0", match.OrangeScore, match.BlackScore)
	}
	if stored := f.currentMatch(t); stored.OrangeScore != 1 {
		t.Fatalf("stored orange score = %d, want 1", stored.OrangeScore)
	}

	players := f.players(t)
	if players[scorer].GoalsScored != 1 || players[assist].Assists != 1 {
		t.Fatalf("scorer/assist counters = %+v / %+v", players[scorer], players[assist])
	}
	for _, id := range f.black {
		if players[id].GoalsConceded != 1 {
			t.Fatalf("black player %d conceded = %d, want 1", id, players[id].GoalsConceded)
		}
	}
	for _, id := range f.orange {
		if players[id].GoalsConceded != 0 {
			t.Fatalf("orange player %d conceded = %d, want 0", id, players[id].GoalsConceded)
		}
	}
	if players[f.bench].GoalsConceded != 0 {
		t.Fatal("bench player should not concede")
	}
}

func TestRecordOwnGoalSkipsScorerCredit(t *testing.T) {
	f := newFixture(t)
	culprit := f.black[0]

	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		_, _, err := RecordGoal(ctx, tx, GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &culprit, OwnGoal: true})
		return err
	})

	players := f.players(t)
	if players[culprit].GoalsScored != 0 {
		t.Fatalf("own goal credited scorer: %+v", players[culprit])
	}
	if players[culprit].GoalsConceded != 1 {
		t.Fatalf("own goal scorer conceded = %d, want 1", players[culprit].GoalsConceded)
	}
	if got := f.currentMatch(t); got.OrangeScore != 1 {
		t.Fatalf("orange score = %d, want 1", got.OrangeScore)
	}
}

func TestRecordGoalValidation(t *testing.T) {
	f := newFixture(t)
	blackPlayer := f.black[0]
	orangePlayer := f.orange[0]

	tests := []struct {
		name string
		in   GoalInput
		want apperrors.Code
	}{
		{name: "missing scorer", in: GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange}, want: apperrors.CodeMissingScorer},
		{name: "scorer on other side", in: GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &blackPlayer}, want: apperrors.CodePlayerNotInMatch},
		{name: "assist on other side", in: GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &orangePlayer, AssistID: &blackPlayer}, want: apperrors.CodePlayerNotInMatch},
		{name: "bench scorer", in: GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &f.bench}, want: apperrors.CodePlayerNotInMatch},
		{name: "assist is scorer", in: GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &orangePlayer, AssistID: &orangePlayer}, want: apperrors.CodeInvalidArgument},
		{name: "bad team", in: GoalInput{MatchID: f.match.ID, Team: "green", ScorerID: &orangePlayer}, want: apperrors.CodeInvalidArgument},
		{name: "unknown match", in: GoalInput{MatchID: 9999, Team: storage.TeamOrange, ScorerID: &orangePlayer}, want: apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.try(func(ctx context.Context, tx storage.Tx) error {
				_, _, err := RecordGoal(ctx, tx, tt.in)
				return err
			})
			if got := apperrors.CodeOf(err); got != tt.want {
				t.Fatalf("code = %s (%v), want %s", got, err, tt.want)
			}
		})
	}

	if got := f.currentMatch(t); got.OrangeScore != 0 || got.BlackScore != 0 {
		t.Fatalf("failed goals changed score to %d-%d", got.OrangeScore, got.BlackScore)
	}
}

func TestRecordGoalRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		match := f.match
		match.Status = storage.MatchFinished
		return tx.UpdateMatch(ctx, match)
	})
	scorer := f.orange[0]
	err := f.try(func(ctx context.Context, tx storage.Tx) error {
		_, _, err := RecordGoal(ctx, tx, GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &scorer})
		return err
	})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidState {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}
}

func TestGoalsRoundTripInAnyOrder(t *testing.T) {
	f := newFixture(t)
	before := f.players(t)

	inputs := []GoalInput{
		{Team: storage.TeamOrange, ScorerID: &f.orange[0], AssistID: &f.orange[1]},
		{Team: storage.TeamBlack, ScorerID: &f.black[2]},
		{Team: storage.TeamOrange, ScorerID: &f.black[1], OwnGoal: true},
		{Team: storage.TeamBlack, ScorerID: &f.black[0], AssistID: &f.black[2], Minute: ptr(40)},
		{Team: storage.TeamOrange, ScorerID: &f.orange[0]},
	}
	var ids []int64
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		for _, in := range inputs {
			in.MatchID = f.match.ID
			event, _, err := RecordGoal(ctx, tx, in)
			if err != nil {
				return err
			}
			ids = append(ids, event.ID)
		}
		return nil
	})

	mid := f.currentMatch(t)
	if mid.OrangeScore != 3 || mid.BlackScore != 2 {
		t.Fatalf("score = %d-%d, want 3-2", mid.OrangeScore, mid.BlackScore)
	}
	events, err := f.store.ListEvents(context.Background(), f.match.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if orange, black := Tally(events); orange != mid.OrangeScore || black != mid.BlackScore {
		t.Fatalf("tally = %d-%d, score = %d-%d", orange, black, mid.OrangeScore, mid.BlackScore)
	}

	rand.New(rand.NewSource(3)).Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for _, id := range ids {
		f.run(t, func(ctx context.Context, tx storage.Tx) error {
			_, _, err := DeleteEvent(ctx, tx, id)
			return err
		})
	}

	after := f.players(t)
	for id, player := range before {
		got := after[id]
		if got.GoalsScored != player.GoalsScored || got.Assists != player.Assists ||
			got.GoalsConceded != player.GoalsConceded || got.GamesPlayed != player.GamesPlayed {
			t.Fatalf("player %d counters = %+v, want %+v", id, got, player)
		}
	}
	if final := f.currentMatch(t); final.OrangeScore != 0 || final.BlackScore != 0 {
		t.Fatalf("final score = %d-%d, want 0-0", final.OrangeScore, final.BlackScore)
	}
}

func TestDeleteGoalNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	scorer := f.orange[0]

	var eventID int64
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		event, _, err := RecordGoal(ctx, tx, GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &scorer})
		if err != nil {
			return err
		}
		eventID = event.ID
		// Simulate a manual correction that already removed the credit.
		if err := tx.AddPlayerCounters(ctx, scorer, storage.CounterDelta{GoalsScored: -1}); err != nil {
			return err
		}
		match, err := tx.GetMatch(ctx, f.match.ID)
		if err != nil {
			return err
		}
		match.OrangeScore = 0
		return tx.UpdateMatch(ctx, match)
	})
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		_, _, err := DeleteEvent(ctx, tx, eventID)
		return err
	})

	players := f.players(t)
	for id, player := range players {
		if player.GoalsScored < 0 || player.Assists < 0 || player.GoalsConceded < 0 || player.GamesPlayed < 0 {
			t.Fatalf("player %d has negative counters: %+v", id, player)
		}
	}
	if got := f.currentMatch(t); got.OrangeScore != 0 {
		t.Fatalf("orange score = %d, want 0", got.OrangeScore)
	}
}

func TestDeleteGoalOnFinishedMatchRederivesWinner(t *testing.T) {
	f := newFixture(t)
	scorer := f.orange[0]
	var eventID int64
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		event, match, err := RecordGoal(ctx, tx, GoalInput{MatchID: f.match.ID, Team: storage.TeamOrange, ScorerID: &scorer})
		if err != nil {
			return err
		}
		eventID = event.ID
		match.Status = storage.MatchFinished
		match.Winner = storage.WinnerOrange
		return tx.UpdateMatch(ctx, match)
	})

	var match storage.MatchRecord
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		var err error
		_, match, err = DeleteEvent(ctx, tx, eventID)
		return err
	})
	if match.Winner != storage.WinnerDraw {
		t.Fatalf("winner = %q, want draw", match.Winner)
	}
}

func TestDeleteEventNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.try(func(ctx context.Context, tx storage.Tx) error {
		_, _, err := DeleteEvent(ctx, tx, 12345)
		return err
	})
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestRecordSubstitution(t *testing.T) {
	f := newFixture(t)
	before := f.players(t)

	var event storage.EventRecord
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		var err error
		event, err = RecordSubstitution(ctx, tx, SubstitutionInput{
			MatchID: f.match.ID, Team: storage.TeamBlack, OutPlayerID: f.black[1], InPlayerID: f.bench, Minute: ptr(30),
		})
		return err
	})
	if event.OutPlayerID == nil || *event.OutPlayerID != f.black[1] || event.InPlayerID == nil || *event.InPlayerID != f.bench {
		t.Fatalf("substitution event = %+v", event)
	}
	after := f.players(t)
	for id := range before {
		if before[id] != after[id] {
			t.Fatalf("substitution changed player %d: %+v -> %+v", id, before[id], after[id])
		}
	}

	err := f.try(func(ctx context.Context, tx storage.Tx) error {
		_, err := RecordSubstitution(ctx, tx, SubstitutionInput{MatchID: f.match.ID, Team: storage.TeamOrange, OutPlayerID: f.black[1], InPlayerID: f.bench})
		return err
	})
	if apperrors.CodeOf(err) != apperrors.CodePlayerNotInMatch {
		t.Fatalf("wrong side err = %v, want PLAYER_NOT_IN_MATCH", err)
	}

	err = f.try(func(ctx context.Context, tx storage.Tx) error {
		_, err := RecordSubstitution(ctx, tx, SubstitutionInput{MatchID: f.match.ID, Team: storage.TeamOrange, OutPlayerID: f.orange[0], InPlayerID: 999})
		return err
	})
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("unknown in-player err = %v, want ErrPlayerNotFound", err)
	}
}

func TestRecordTieDeciderReplacesPrevious(t *testing.T) {
	f := newFixture(t)

	err := f.try(func(ctx context.Context, tx storage.Tx) error {
		_, err := RecordTieDecider(ctx, tx, f.match.ID, storage.TeamOrange, testNow)
		return err
	})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidState {
		t.Fatalf("in-progress tie decider err = %v, want INVALID_STATE", err)
	}

	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		match := f.match
		match.Status = storage.MatchFinished
		match.Winner = storage.WinnerDraw
		return tx.UpdateMatch(ctx, match)
	})
	for _, team := range []storage.Team{storage.TeamOrange, storage.TeamBlack} {
		f.run(t, func(ctx context.Context, tx storage.Tx) error {
			_, err := RecordTieDecider(ctx, tx, f.match.ID, team, testNow)
			return err
		})
	}

	events, err := f.store.ListEvents(context.Background(), f.match.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != storage.EventTieDecider || events[0].Team != storage.TeamBlack {
		t.Fatalf("events = %+v, want single black tie decider", events)
	}
	outcomes, err := f.store.RecentOutcomes(context.Background(), f.session.ID, 2, 3)
	if err != nil {
		t.Fatalf("recent outcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].TieDecider != storage.TeamBlack {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestRecordSummaryCreditsAndReverts(t *testing.T) {
	f := newFixture(t)
	player := f.bench

	var summary storage.MatchRecord
	var events []storage.EventRecord
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		var err error
		summary, events, err = RecordSummary(ctx, tx, SummaryInput{SessionID: f.session.ID, PlayerID: player, Goals: 2, Assists: 1, At: testNow})
		return err
	})
	if summary.Number != storage.SummaryMatchNumber || summary.Status != storage.MatchFinished {
		t.Fatalf("summary match = %+v", summary)
	}
	if len(events) != 3 {
		t.Fatalf("summary events = %d, want 3", len(events))
	}
	got := f.players(t)[player]
	if got.GoalsScored != 2 || got.Assists != 1 {
		t.Fatalf("counters = %+v, want 2 goals 1 assist", got)
	}

	// A second credit reuses the same summary match.
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		again, _, err := RecordSummary(ctx, tx, SummaryInput{SessionID: f.session.ID, PlayerID: player, Goals: 1})
		if err != nil {
			return err
		}
		if again.ID != summary.ID {
			t.Errorf("summary match id = %d, want %d", again.ID, summary.ID)
		}
		return nil
	})

	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		_, _, err := DeleteEvent(ctx, tx, events[0].ID)
		return err
	})
	got = f.players(t)[player]
	if got.GoalsScored != 2 || got.Assists != 1 {
		t.Fatalf("after delete counters = %+v, want 2 goals 1 assist", got)
	}

	err := f.try(func(ctx context.Context, tx storage.Tx) error {
		_, _, err := RecordSummary(ctx, tx, SummaryInput{SessionID: f.session.ID, PlayerID: player})
		return err
	})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("empty summary err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.run(t, func(ctx context.Context, tx storage.Tx) error {
		if _, _, err := RecordGoal(ctx, tx, GoalInput{MatchID: f.match.ID, Team: storage.TeamBlack, ScorerID: &f.black[0], AssistID: &f.black[1]}); err != nil {
			return err
		}
		if _, _, err := RecordSummary(ctx, tx, SummaryInput{SessionID: f.session.ID, PlayerID: f.orange[2], Goals: 1}); err != nil {
			return err
		}
		return tx.MarkParticipantsPlayed(ctx, f.match.ID, append(append([]int64{}, f.orange...), f.black...))
	})

	var first, second map[int64]storage.PlayerRecord
	for i := 0; i < 2; i++ {
		f.run(t, func(ctx context.Context, tx storage.Tx) error {
			_, err := Recompute(ctx, tx)
			return err
		})
		if i == 0 {
			first = f.players(t)
		} else {
			second = f.players(t)
		}
	}
	for id, player := range first {
		if second[id] != player {
			t.Fatalf("player %d changed between recomputes: %+v -> %+v", id, player, second[id])
		}
	}
	if first[f.black[0]].GoalsScored != 1 || first[f.orange[2]].GoalsScored != 1 {
		t.Fatalf("recomputed goals = %+v / %+v", first[f.black[0]], first[f.orange[2]])
	}
	if first[f.orange[0]].GoalsConceded != 1 || first[f.orange[0]].GamesPlayed != 1 {
		t.Fatalf("recomputed orange player = %+v", first[f.orange[0]])
	}
	if first[f.bench].GamesPlayed != 0 {
		t.Fatalf("bench games = %d, want 0", first[f.bench].GamesPlayed)
	}
}

func TestTallyIgnoresNonGoals(t *testing.T) {
	events := []storage.EventRecord{
		{Type: storage.EventGoal, Team: storage.TeamOrange},
		{Type: storage.EventGoal, Team: storage.TeamBlack},
		{Type: storage.EventGoal, Team: storage.TeamOrange},
		{Type: storage.EventSubstitution, Team: storage.TeamOrange},
		{Type: storage.EventTieDecider, Team: storage.TeamBlack},
		{Type: storage.EventSummaryGoal},
	}
	if orange, black := Tally(events); orange != 2 || black != 1 {
		t.Fatalf("tally = %d-%d, want 2-1", orange, black)
	}
}
