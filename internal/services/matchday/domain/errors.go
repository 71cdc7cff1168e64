// Package domain holds the match day rules shared by the draft, rotation,
// ledger and lifecycle packages.
//
// The subpackages are the source of truth for:
//   - how present players become two rosters (draft),
//   - who sits out after a run of wins (rotation),
//   - how ledger rows move scores and player counters (ledger),
//   - and which match transitions are allowed (lifecycle).
package domain

import (
	"errors"
	"strconv"

	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

var (
	// ErrMatchNotFound indicates a missing match.
	ErrMatchNotFound = apperrors.WithMetadata(apperrors.CodeNotFound, "match not found", map[string]string{"Resource": "match"})
	// ErrSessionNotFound indicates a missing game day.
	ErrSessionNotFound = apperrors.WithMetadata(apperrors.CodeNotFound, "session not found", map[string]string{"Resource": "session"})
	// ErrPlayerNotFound indicates a missing player.
	ErrPlayerNotFound = apperrors.WithMetadata(apperrors.CodeNotFound, "player not found", map[string]string{"Resource": "player"})
	// ErrEventNotFound indicates a missing ledger row.
	ErrEventNotFound = apperrors.WithMetadata(apperrors.CodeNotFound, "event not found", map[string]string{"Resource": "event"})
)

// InvalidState reports an operation attempted from the wrong match status.
func InvalidState(match storage.MatchRecord, op string) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvalidState,
		op+": match "+strconv.FormatInt(match.ID, 10)+" is "+string(match.Status),
		map[string]string{
			"MatchID": strconv.FormatInt(match.ID, 10),
			"Status":  string(match.Status),
		},
	)
}

// InvalidArgument reports a malformed request field.
func InvalidArgument(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, message, map[string]string{"Field": field})
}

// PlayerNotInMatch reports a player missing from the claimed roster.
func PlayerNotInMatch(playerID int64, team storage.Team) error {
	return apperrors.WithMetadata(
		apperrors.CodePlayerNotInMatch,
		"player "+strconv.FormatInt(playerID, 10)+" is not rostered on "+string(team),
		map[string]string{
			"PlayerID": strconv.FormatInt(playerID, 10),
			"Team":     string(team),
		},
	)
}

// FromStorage maps storage sentinels onto coded errors. notFound replaces
// storage.ErrNotFound so callers can say which record was missing.
func FromStorage(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, err.Error(), err)
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Wrap(apperrors.CodeConstraintViolation, err.Error(), err)
	default:
		return err
	}
}
