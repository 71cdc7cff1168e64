// Package draft splits the players present on a game day into two rosters.
//
// Draw is a pure function. Randomness comes from a Rand supplied by the
// caller so tests can inject a seeded source.
package draft

import (
	"sort"
	"strconv"

	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

const (
	// MinPlayers is the smallest pool that makes a match.
	MinPlayers = 6
	// DefaultTeamSize is the roster cap per team.
	DefaultTeamSize = 5
)

var (
	// ErrInsufficientPlayers indicates fewer than MinPlayers candidates.
	ErrInsufficientPlayers = apperrors.New(apperrors.CodeInsufficientPlayers, "not enough players present")
	// ErrInvalidTeamSize indicates a roster cap that cannot hold a minimum match.
	ErrInvalidTeamSize = apperrors.New(apperrors.CodeInvalidArgument, "team size must be at least 3")
	// ErrDuplicateCandidate indicates the same player was offered twice.
	ErrDuplicateCandidate = apperrors.New(apperrors.CodeInvalidArgument, "duplicate draw candidate")
)

// Rand is the randomness the draw needs. *math/rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
	Intn(n int) int
}

// Candidate is one present player.
type Candidate struct {
	PlayerID     int64
	Goalkeeper   bool
	ArrivalOrder int
}

// Slot is one drawn roster position. Goalkeeper mirrors the player's flag at
// draw time; the keeper in goal is the first slot of a roster.
type Slot struct {
	PlayerID   int64
	Goalkeeper bool
}

// Result holds both rosters plus the players left out of this draw.
type Result struct {
	Orange  []Slot
	Black   []Slot
	Waiting []Candidate
}

// Roster returns the slots for team.
func (r Result) Roster(team storage.Team) []Slot {
	if team == storage.TeamBlack {
		return r.Black
	}
	return r.Orange
}

// Participants flattens both rosters into storage rows for matchID.
func (r Result) Participants(matchID int64) []storage.ParticipantRecord {
	rows := make([]storage.ParticipantRecord, 0, len(r.Orange)+len(r.Black))
	for _, team := range []storage.Team{storage.TeamOrange, storage.TeamBlack} {
		for _, slot := range r.Roster(team) {
			rows = append(rows, storage.ParticipantRecord{
				MatchID:    matchID,
				PlayerID:   slot.PlayerID,
				Team:       team,
				Goalkeeper: slot.Goalkeeper,
			})
		}
	}
	return rows
}

// Draw assigns candidates to orange and black.
//
// With two or more goalkeepers, two are picked at random and split one per
// team; any others are dealt with the outfield and keep their flag. A
// single goalkeeper goes to a random team. Keepers in goal lead their roster.
// Outfield players are shuffled and dealt to whichever team is shorter,
// orange first on ties, until both hold teamSize or the pool runs out.
// Candidates beyond 2*teamSize are returned as Waiting in arrival order.
func Draw(candidates []Candidate, teamSize int, rng Rand) (Result, error) {
	if teamSize < MinPlayers/2 {
		return Result{}, ErrInvalidTeamSize
	}
	if len(candidates) < MinPlayers {
		return Result{}, apperrors.WrapWithMetadata(
			apperrors.CodeInsufficientPlayers,
			"not enough players present",
			map[string]string{
				"Required": strconv.Itoa(MinPlayers),
				"Present":  strconv.Itoa(len(candidates)),
			},
			ErrInsufficientPlayers,
		)
	}

	pool := make([]Candidate, len(candidates))
	copy(pool, candidates)
	sortByArrival(pool)

	seen := make(map[int64]struct{}, len(pool))
	var goalkeepers, outfield []Candidate
	for _, candidate := range pool {
		if _, ok := seen[candidate.PlayerID]; ok {
			return Result{}, ErrDuplicateCandidate
		}
		seen[candidate.PlayerID] = struct{}{}
		if candidate.Goalkeeper {
			goalkeepers = append(goalkeepers, candidate)
		} else {
			outfield = append(outfield, candidate)
		}
	}

	var result Result
	switch {
	case len(goalkeepers) >= 2:
		rng.Shuffle(len(goalkeepers), func(i, j int) {
			goalkeepers[i], goalkeepers[j] = goalkeepers[j], goalkeepers[i]
		})
		result.Orange = append(result.Orange, Slot{PlayerID: goalkeepers[0].PlayerID, Goalkeeper: true})
		result.Black = append(result.Black, Slot{PlayerID: goalkeepers[1].PlayerID, Goalkeeper: true})
		// Extra goalkeepers compete for outfield spots.
		outfield = append(outfield, goalkeepers[2:]...)
	case len(goalkeepers) == 1:
		slot := Slot{PlayerID: goalkeepers[0].PlayerID, Goalkeeper: true}
		if rng.Intn(2) == 0 {
			result.Orange = append(result.Orange, slot)
		} else {
			result.Black = append(result.Black, slot)
		}
	}

	rng.Shuffle(len(outfield), func(i, j int) {
		outfield[i], outfield[j] = outfield[j], outfield[i]
	})
	for _, candidate := range outfield {
		slot := Slot{PlayerID: candidate.PlayerID, Goalkeeper: candidate.Goalkeeper}
		switch {
		case len(result.Orange) >= teamSize && len(result.Black) >= teamSize:
			result.Waiting = append(result.Waiting, candidate)
		case len(result.Orange) >= teamSize:
			result.Black = append(result.Black, slot)
		case len(result.Black) >= teamSize:
			result.Orange = append(result.Orange, slot)
		case len(result.Black) < len(result.Orange):
			result.Black = append(result.Black, slot)
		default:
			result.Orange = append(result.Orange, slot)
		}
	}
	sortByArrival(result.Waiting)
	return result, nil
}

func sortByArrival(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ArrivalOrder < candidates[j].ArrivalOrder
	})
}
