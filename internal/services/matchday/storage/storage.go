// Package storage defines the persistence contracts for match day state.
//
// The core never talks to a database directly. Every mutation runs through
// Store.RunTransaction with a Tx handle so multi-row effects (ledger row, match
// score, player counters) commit or roll back together.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with a uniqueness or reference constraint.
	ErrConflict = errors.New("record conflict")
	// ErrNestedTransaction indicates RunTransaction was called on a transaction handle.
	ErrNestedTransaction = errors.New("nested transactions are not supported")
)

// SummaryMatchNumber is reserved for the per-session manual summary pseudo-match.
const SummaryMatchNumber = 0

// Team identifies one side of a match.
type Team string

const (
	TeamOrange Team = "orange"
	TeamBlack  Team = "black"
)

// Valid reports whether t names a playing side.
func (t Team) Valid() bool {
	return t == TeamOrange || t == TeamBlack
}

// Opponent returns the other side.
func (t Team) Opponent() Team {
	switch t {
	case TeamOrange:
		return TeamBlack
	case TeamBlack:
		return TeamOrange
	default:
		return ""
	}
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
)

// Winner is the recorded result of a finished match. Empty means undecided.
type Winner string

const (
	WinnerNone   Winner = ""
	WinnerOrange Winner = "orange"
	WinnerBlack  Winner = "black"
	WinnerDraw   Winner = "draw"
)

// WinnerFromScore derives the result from two final scores.
func WinnerFromScore(orange, black int) Winner {
	switch {
	case orange > black:
		return WinnerOrange
	case black > orange:
		return WinnerBlack
	default:
		return WinnerDraw
	}
}

// Team returns the winning side, or "" for draws and undecided matches.
func (w Winner) Team() Team {
	switch w {
	case WinnerOrange:
		return TeamOrange
	case WinnerBlack:
		return TeamBlack
	default:
		return ""
	}
}

// EventType classifies ledger rows.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventSubstitution EventType = "substitution"
	EventTieDecider   EventType = "tie_decider"
	EventSummaryGoal  EventType = "summary_goal"
)

// PlayerRecord stores one player and their derived career counters.
type PlayerRecord struct {
	ID            int64
	Name          string
	Goalkeeper    bool
	GamesPlayed   int
	GoalsScored   int
	Assists       int
	GoalsConceded int
	CreatedAt     time.Time
}

// CounterDelta is a signed change to player counters. Stores clamp results at zero.
type CounterDelta struct {
	GamesPlayed   int
	GoalsScored   int
	Assists       int
	GoalsConceded int
}

// IsZero reports whether the delta changes nothing.
func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// Negate returns the inverse delta.
func (d CounterDelta) Negate() CounterDelta {
	return CounterDelta{
		GamesPlayed:   -d.GamesPlayed,
		GoalsScored:   -d.GoalsScored,
		Assists:       -d.Assists,
		GoalsConceded: -d.GoalsConceded,
	}
}

// SessionRecord stores one game day.
type SessionRecord struct {
	ID              int64
	Date            time.Time
	ManyPresentRule bool
	CreatedAt       time.Time
}

// AttendanceRecord stores one player's presence on a game day.
type AttendanceRecord struct {
	SessionID    int64
	PlayerID     int64
	Present      bool
	ArrivalOrder int
}

// PresentPlayer is a draw candidate: a present player with arrival order.
type PresentPlayer struct {
	PlayerID     int64
	Name         string
	Goalkeeper   bool
	ArrivalOrder int
}

// MatchRecord stores one match and its running totals.
type MatchRecord struct {
	ID           int64
	SessionID    int64
	Number       int
	OrangeScore  int
	BlackScore   int
	OrangeStreak int
	BlackStreak  int
	Status       MatchStatus
	Winner       Winner
	StartedAt    *time.Time
	FinishedAt   *time.Time
	CreatedAt    time.Time
}

// Score returns the running score for one side.
func (m MatchRecord) Score(team Team) int {
	if team == TeamBlack {
		return m.BlackScore
	}
	return m.OrangeScore
}

// ParticipantRecord stores one frozen roster slot.
type ParticipantRecord struct {
	MatchID    int64
	PlayerID   int64
	Team       Team
	Goalkeeper bool
	Played     bool
}

// EventRecord stores one ledger row. ID is monotonic and defines replay order.
type EventRecord struct {
	ID          int64
	MatchID     int64
	Type        EventType
	ScorerID    *int64
	AssistID    *int64
	OutPlayerID *int64
	InPlayerID  *int64
	Team        Team
	Minute      *int
	OwnGoal     bool
	CreatedAt   time.Time
}

// Outcome is the rotation-relevant view of one finished match.
type Outcome struct {
	MatchID      int64
	Number       int
	Winner       Winner
	OrangeStreak int
	BlackStreak  int
	TieDecider   Team
}

// SessionPlayerTotals aggregates one player's contribution within a session.
type SessionPlayerTotals struct {
	PlayerID      int64
	Name          string
	GamesPlayed   int
	GoalsScored   int
	Assists       int
	GoalsConceded int
}

// Reader exposes read queries shared by stores and transactions.
type Reader interface {
	GetPlayer(ctx context.Context, id int64) (PlayerRecord, error)
	ListPlayers(ctx context.Context) ([]PlayerRecord, error)

	GetSession(ctx context.Context, id int64) (SessionRecord, error)
	CurrentSession(ctx context.Context) (SessionRecord, error)
	ListPresentPlayers(ctx context.Context, sessionID int64) ([]PresentPlayer, error)

	GetMatch(ctx context.Context, id int64) (MatchRecord, error)
	GetMatchByNumber(ctx context.Context, sessionID int64, number int) (MatchRecord, error)
	ListMatches(ctx context.Context, sessionID int64) ([]MatchRecord, error)
	LatestInProgressMatch(ctx context.Context) (MatchRecord, error)
	// RecentOutcomes lists finished matches numbered below beforeNumber, latest first.
	RecentOutcomes(ctx context.Context, sessionID int64, beforeNumber int, limit int) ([]Outcome, error)

	ListParticipants(ctx context.Context, matchID int64) ([]ParticipantRecord, error)

	GetEvent(ctx context.Context, id int64) (EventRecord, error)
	ListEvents(ctx context.Context, matchID int64) ([]EventRecord, error)
	// GoalTally counts goal events per team for one match.
	GoalTally(ctx context.Context, matchID int64) (orange int, black int, err error)

	SessionTotals(ctx context.Context, sessionID int64) ([]SessionPlayerTotals, error)
}

// Writer exposes mutations. It is only reachable through a Tx.
type Writer interface {
	PutPlayer(ctx context.Context, record PlayerRecord) (PlayerRecord, error)
	// AddPlayerCounters applies delta, clamping every counter at zero.
	AddPlayerCounters(ctx context.Context, playerID int64, delta CounterDelta) error
	// RecomputePlayerCounters rebuilds every player's counters from ledger rows
	// and played participants.
	RecomputePlayerCounters(ctx context.Context) (int64, error)

	PutSession(ctx context.Context, record SessionRecord) (SessionRecord, error)
	// SetAttendance upserts presence. First insertion takes the next arrival order.
	SetAttendance(ctx context.Context, sessionID int64, playerID int64, present bool) (AttendanceRecord, error)

	PutMatch(ctx context.Context, record MatchRecord) (MatchRecord, error)
	UpdateMatch(ctx context.Context, record MatchRecord) error
	DeleteMatch(ctx context.Context, id int64) error

	ReplaceParticipants(ctx context.Context, matchID int64, participants []ParticipantRecord) error
	MarkParticipantsPlayed(ctx context.Context, matchID int64, playerIDs []int64) error

	AppendEvent(ctx context.Context, record EventRecord) (EventRecord, error)
	DeleteEvent(ctx context.Context, id int64) error
	DeleteEventsByType(ctx context.Context, matchID int64, eventType EventType) error
}

// Tx is a transactional handle.
type Tx interface {
	Reader
	Writer
}

// Store is the durable persistence boundary.
type Store interface {
	Reader
	// RunTransaction commits when fn returns nil and rolls back otherwise.
	// Calling it on a handle already inside a transaction returns ErrNestedTransaction.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
