package draft

import (
	"errors"
	"math/rand"
	"testing"

	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

// fixedRand leaves slices in place and always picks the same index.
type fixedRand struct {
	pick int
}

func (fixedRand) Shuffle(int, func(i, j int)) {}

func (r fixedRand) Intn(int) int { return r.pick }

func TestDrawRejectsSmallPool(t *testing.T) {
	_, err := Draw(pool(5, 1), DefaultTeamSize, fixedRand{})
	if !errors.Is(err, ErrInsufficientPlayers) {
		t.Fatalf("err = %v, want ErrInsufficientPlayers", err)
	}
	domainErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected domain error, got %T", err)
	}
	if domainErr.Metadata["Present"] != "5" || domainErr.Metadata["Required"] != "6" {
		t.Fatalf("metadata = %v", domainErr.Metadata)
	}
}

func TestDrawRejectsTinyTeamSize(t *testing.T) {
	if _, err := Draw(pool(8, 0), 2, fixedRand{}); !errors.Is(err, ErrInvalidTeamSize) {
		t.Fatalf("err = %v, want ErrInvalidTeamSize", err)
	}
}

func TestDrawRejectsDuplicateCandidates(t *testing.T) {
	candidates := pool(6, 0)
	candidates[5].PlayerID = candidates[0].PlayerID
	if _, err := Draw(candidates, DefaultTeamSize, fixedRand{}); !errors.Is(err, ErrDuplicateCandidate) {
		t.Fatalf("err = %v, want ErrDuplicateCandidate", err)
	}
}

func TestDrawSizeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for size := MinPlayers; size <= 16; size++ {
		for keepers := 0; keepers <= 3; keepers++ {
			for teamSize := 3; teamSize <= 6; teamSize++ {
				for round := 0; round < 5; round++ {
					result, err := Draw(pool(size, keepers), teamSize, rng)
					if err != nil {
						t.Fatalf("draw size=%d keepers=%d k=%d: %v", size, keepers, teamSize, err)
					}
					assertDrawShape(t, result, size, keepers, teamSize)
				}
			}
		}
	}
}

func TestDrawSixPlayersOneGoalkeeper(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		result, err := Draw(pool(6, 1), DefaultTeamSize, rng)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if len(result.Orange) != 3 || len(result.Black) != 3 {
			t.Fatalf("rosters = %d/%d, want 3/3", len(result.Orange), len(result.Black))
		}
		if got := countKeepers(result.Orange) + countKeepers(result.Black); got != 1 {
			t.Fatalf("goalkeepers drawn = %d, want 1", got)
		}
	}
}

func TestDrawDealsShorterTeamFirst(t *testing.T) {
	// Player 1 is the only goalkeeper and pick 1 places the keeper on black.
	result, err := Draw(pool(7, 1), DefaultTeamSize, fixedRand{pick: 1})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	assertIDs(t, "orange", result.Orange, []int64{2, 3, 5, 7})
	assertIDs(t, "black", result.Black, []int64{1, 4, 6})
}

func TestDrawTwoGoalkeepersSplit(t *testing.T) {
	candidates := pool(10, 3)
	result, err := Draw(candidates, 4, fixedRand{})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !result.Orange[0].Goalkeeper || result.Orange[0].PlayerID != 1 {
		t.Fatalf("orange keeper = %+v, want player 1", result.Orange[0])
	}
	if !result.Black[0].Goalkeeper || result.Black[0].PlayerID != 2 {
		t.Fatalf("black keeper = %+v, want player 2", result.Black[0])
	}
	// The third keeper is dealt with the outfield but keeps the flag.
	for _, slot := range append(result.Orange[1:], result.Black[1:]...) {
		if slot.Goalkeeper != (slot.PlayerID == 3) {
			t.Fatalf("outfield slot %+v: goalkeeper flag should match the player", slot)
		}
	}
	for _, row := range result.Participants(1) {
		if row.PlayerID == 3 && !row.Goalkeeper {
			t.Fatalf("participant row for the third keeper lost its flag: %+v", row)
		}
	}
	if len(result.Waiting) != 2 {
		t.Fatalf("waiting = %d, want 2", len(result.Waiting))
	}
	if result.Waiting[0].ArrivalOrder > result.Waiting[1].ArrivalOrder {
		t.Fatalf("waiting not in arrival order: %+v", result.Waiting)
	}
}

func TestParticipantsTagsTeams(t *testing.T) {
	result := Result{
		Orange: []Slot{{PlayerID: 1, Goalkeeper: true}, {PlayerID: 2}},
		Black:  []Slot{{PlayerID: 3}},
	}
	rows := result.Participants(9)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Team != storage.TeamOrange || !rows[0].Goalkeeper || rows[0].MatchID != 9 {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[2].Team != storage.TeamBlack || rows[2].PlayerID != 3 {
		t.Fatalf("last row = %+v", rows[2])
	}
}

// pool builds size candidates; the first keepers are goalkeepers.
func pool(size, keepers int) []Candidate {
	candidates := make([]Candidate, size)
	for i := range candidates {
		candidates[i] = Candidate{
			PlayerID:     int64(i + 1),
			Goalkeeper:   i < keepers,
			ArrivalOrder: i + 1,
		}
	}
	return candidates
}

func assertDrawShape(t *testing.T, result Result, size, keepers, teamSize int) {
	t.Helper()
	if len(result.Orange) > teamSize || len(result.Black) > teamSize {
		t.Fatalf("roster over cap: %d/%d k=%d", len(result.Orange), len(result.Black), teamSize)
	}
	drawn := len(result.Orange) + len(result.Black)
	if want := min(size, 2*teamSize); drawn != want {
		t.Fatalf("drawn = %d, want %d (size=%d k=%d)", drawn, want, size, teamSize)
	}
	if drawn+len(result.Waiting) != size {
		t.Fatalf("drawn+waiting = %d, want %d", drawn+len(result.Waiting), size)
	}
	diff := len(result.Orange) - len(result.Black)
	if diff < -1 || diff > 1 {
		t.Fatalf("unbalanced rosters: %d/%d", len(result.Orange), len(result.Black))
	}
	orangeKeepers, blackKeepers := countKeepers(result.Orange), countKeepers(result.Black)
	switch {
	case keepers >= 2:
		if !result.Orange[0].Goalkeeper || !result.Black[0].Goalkeeper {
			t.Fatalf("rosters not led by keepers: %+v / %+v", result.Orange[0], result.Black[0])
		}
		waitingKeepers := 0
		for _, waiting := range result.Waiting {
			if waiting.Goalkeeper {
				waitingKeepers++
			}
		}
		if orangeKeepers+blackKeepers+waitingKeepers != keepers {
			t.Fatalf("keepers = %d/%d + %d waiting, want %d", orangeKeepers, blackKeepers, waitingKeepers, keepers)
		}
	case keepers == 1:
		if orangeKeepers+blackKeepers != 1 {
			t.Fatalf("keepers = %d/%d, want exactly one", orangeKeepers, blackKeepers)
		}
	default:
		if orangeKeepers+blackKeepers != 0 {
			t.Fatalf("keepers = %d/%d, want none", orangeKeepers, blackKeepers)
		}
	}
	seen := map[int64]bool{}
	for _, slot := range append(append([]Slot{}, result.Orange...), result.Black...) {
		if seen[slot.PlayerID] {
			t.Fatalf("player %d drawn twice", slot.PlayerID)
		}
		seen[slot.PlayerID] = true
	}
	for _, waiting := range result.Waiting {
		if seen[waiting.PlayerID] {
			t.Fatalf("player %d both drawn and waiting", waiting.PlayerID)
		}
	}
}

func countKeepers(slots []Slot) int {
	n := 0
	for _, slot := range slots {
		if slot.Goalkeeper {
			n++
		}
	}
	return n
}

func assertIDs(t *testing.T, label string, slots []Slot, want []int64) {
	t.Helper()
	if len(slots) != len(want) {
		t.Fatalf("%s roster = %d players, want %d", label, len(slots), len(want))
	}
	for i, slot := range slots {
		if slot.PlayerID != want[i] {
			t.Fatalf("%s[%d] = %d, want %d", label, i, slot.PlayerID, want[i])
		}
	}
}
