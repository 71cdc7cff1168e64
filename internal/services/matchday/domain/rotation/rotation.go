// Package rotation decides which side sits out after a run of wins and what
// win-streak counters the next match starts with.
package rotation

import (
	"github.com/louisbranch/matchday/internal/services/matchday/domain/draft"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

// DefaultThreshold is the number of consecutive wins that forces a rotation.
const DefaultThreshold = 3

// Reason explains a Decision.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonFirstMatch  Reason = "first_match"
	ReasonWin         Reason = "win"
	ReasonStreak      Reason = "streak"
	ReasonDraw        Reason = "draw"
	ReasonTieDecider  Reason = "tie_decider"
	ReasonManyPresent Reason = "many_present"
)

// Decision is the rotation outcome for the next match.
type Decision struct {
	// Excluded lists the sides whose previous roster sits out.
	Excluded     []storage.Team
	OrangeStreak int
	BlackStreak  int
	Reason       Reason
}

// Streak returns the next-match counter for team.
func (d Decision) Streak(team storage.Team) int {
	if team == storage.TeamBlack {
		return d.BlackStreak
	}
	return d.OrangeStreak
}

// Excludes reports whether team's previous roster sits out.
func (d Decision) Excludes(team storage.Team) bool {
	for _, excluded := range d.Excluded {
		if excluded == team {
			return true
		}
	}
	return false
}

// Decide applies the rotation rule to recent finished outcomes, latest first.
//
// A side whose win would bring its counter to threshold, or that won each of
// the last threshold matches, is excluded and both counters reset. A draw
// excludes both sides when manyPresent is set; otherwise the tie-decider
// winner is excluded, and a draw without one excludes nobody. Excluded sides
// always restart at zero.
func Decide(outcomes []storage.Outcome, manyPresent bool, threshold int) Decision {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(outcomes) == 0 {
		return Decision{Reason: ReasonFirstMatch}
	}

	latest := outcomes[0]
	if latest.Winner == storage.WinnerDraw && manyPresent {
		return Decision{
			Excluded: []storage.Team{storage.TeamOrange, storage.TeamBlack},
			Reason:   ReasonManyPresent,
		}
	}

	winner := effectiveWinner(latest, manyPresent)
	if winner == "" {
		return Decision{Reason: ReasonDraw}
	}
	if latest.Winner == storage.WinnerDraw {
		// The tie-decider winner sits out; an excluded side never keeps a streak.
		return Decision{
			Excluded: []storage.Team{winner},
			Reason:   ReasonTieDecider,
		}
	}

	next := streakOf(latest, winner) + 1
	if next >= threshold || wonWindow(outcomes, winner, manyPresent, threshold) {
		return Decision{
			Excluded: []storage.Team{winner},
			Reason:   ReasonStreak,
		}
	}

	decision := Decision{Reason: ReasonWin}
	if winner == storage.TeamOrange {
		decision.OrangeStreak = next
	} else {
		decision.BlackStreak = next
	}
	return decision
}

// Eligible removes sitting-out players from the candidate pool. When that
// would leave fewer than two full rosters the pool is returned unchanged and
// applied is false.
func Eligible(candidates []draft.Candidate, sitOut map[int64]struct{}, teamSize int) (pool []draft.Candidate, applied bool) {
	if len(sitOut) == 0 {
		return candidates, false
	}
	filtered := make([]draft.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := sitOut[candidate.PlayerID]; ok {
			continue
		}
		filtered = append(filtered, candidate)
	}
	if len(filtered) < 2*teamSize {
		return candidates, false
	}
	return filtered, true
}

// SitOut collects the players of the excluded sides from the previous roster.
func SitOut(decision Decision, previous []storage.ParticipantRecord) map[int64]struct{} {
	if len(decision.Excluded) == 0 {
		return nil
	}
	sitOut := make(map[int64]struct{})
	for _, participant := range previous {
		if decision.Excludes(participant.Team) {
			sitOut[participant.PlayerID] = struct{}{}
		}
	}
	return sitOut
}

func effectiveWinner(outcome storage.Outcome, manyPresent bool) storage.Team {
	if team := outcome.Winner.Team(); team != "" {
		return team
	}
	if outcome.Winner == storage.WinnerDraw && !manyPresent && outcome.TieDecider.Valid() {
		return outcome.TieDecider
	}
	return ""
}

func wonWindow(outcomes []storage.Outcome, team storage.Team, manyPresent bool, threshold int) bool {
	if len(outcomes) < threshold {
		return false
	}
	for _, outcome := range outcomes[:threshold] {
		if effectiveWinner(outcome, manyPresent) != team {
			return false
		}
	}
	return true
}

func streakOf(outcome storage.Outcome, team storage.Team) int {
	if team == storage.TeamBlack {
		return outcome.BlackStreak
	}
	return outcome.OrangeStreak
}
