// Package view holds the JSON shapes shared by the HTTP API and the live
// viewer transport.
package view

import (
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

// DateLayout is the wire format for session dates.
const DateLayout = "2006-01-02"

// Player is a player with career counters.
type Player struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Goalkeeper    bool   `json:"goalkeeper"`
	GamesPlayed   int    `json:"games_played"`
	GoalsScored   int    `json:"goals_scored"`
	Assists       int    `json:"assists"`
	GoalsConceded int    `json:"goals_conceded"`
}

// Session is a game day.
type Session struct {
	ID              int64  `json:"id"`
	Date            string `json:"date"`
	ManyPresentRule bool   `json:"many_present_rule"`
}

// Attendance is one player's presence on a game day.
type Attendance struct {
	SessionID    int64 `json:"session_id"`
	PlayerID     int64 `json:"player_id"`
	Present      bool  `json:"present"`
	ArrivalOrder int   `json:"arrival_order"`
}

// Match is a match with its running totals.
type Match struct {
	ID           int64      `json:"id"`
	SessionID    int64      `json:"session_id"`
	Number       int        `json:"number"`
	OrangeScore  int        `json:"orange_score"`
	BlackScore   int        `json:"black_score"`
	OrangeStreak int        `json:"orange_streak"`
	BlackStreak  int        `json:"black_streak"`
	Status       string     `json:"status"`
	Winner       string     `json:"winner,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Participant is one roster slot.
type Participant struct {
	PlayerID   int64  `json:"player_id"`
	Team       string `json:"team"`
	Goalkeeper bool   `json:"goalkeeper"`
	Played     bool   `json:"played"`
}

// Event is one ledger row.
type Event struct {
	ID          int64     `json:"id"`
	MatchID     int64     `json:"match_id"`
	Type        string    `json:"type"`
	Team        string    `json:"team,omitempty"`
	ScorerID    *int64    `json:"scorer_id,omitempty"`
	AssistID    *int64    `json:"assist_id,omitempty"`
	OutPlayerID *int64    `json:"out_player_id,omitempty"`
	InPlayerID  *int64    `json:"in_player_id,omitempty"`
	Minute      *int      `json:"minute,omitempty"`
	OwnGoal     bool      `json:"own_goal,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Score is the compact scoreboard pushed to viewers.
type Score struct {
	MatchID int64  `json:"match_id"`
	Orange  int    `json:"orange"`
	Black   int    `json:"black"`
	Status  string `json:"status"`
	Winner  string `json:"winner,omitempty"`
}

// FromPlayer converts a stored player.
func FromPlayer(record storage.PlayerRecord) Player {
	return Player{
		ID:            record.ID,
		Name:          record.Name,
		Goalkeeper:    record.Goalkeeper,
		GamesPlayed:   record.GamesPlayed,
		GoalsScored:   record.GoalsScored,
		Assists:       record.Assists,
		GoalsConceded: record.GoalsConceded,
	}
}

// FromPlayers converts a player list, never returning nil.
func FromPlayers(records []storage.PlayerRecord) []Player {
	players := make([]Player, 0, len(records))
	for _, record := range records {
		players = append(players, FromPlayer(record))
	}
	return players
}

// FromSession converts a stored session.
func FromSession(record storage.SessionRecord) Session {
	return Session{
		ID:              record.ID,
		Date:            record.Date.Format(DateLayout),
		ManyPresentRule: record.ManyPresentRule,
	}
}

// FromAttendance converts a stored attendance row.
func FromAttendance(record storage.AttendanceRecord) Attendance {
	return Attendance{
		SessionID:    record.SessionID,
		PlayerID:     record.PlayerID,
		Present:      record.Present,
		ArrivalOrder: record.ArrivalOrder,
	}
}

// FromMatch converts a stored match.
func FromMatch(record storage.MatchRecord) Match {
	return Match{
		ID:           record.ID,
		SessionID:    record.SessionID,
		Number:       record.Number,
		OrangeScore:  record.OrangeScore,
		BlackScore:   record.BlackScore,
		OrangeStreak: record.OrangeStreak,
		BlackStreak:  record.BlackStreak,
		Status:       string(record.Status),
		Winner:       string(record.Winner),
		StartedAt:    record.StartedAt,
		FinishedAt:   record.FinishedAt,
	}
}

// FromMatches converts a match list, never returning nil.
func FromMatches(records []storage.MatchRecord) []Match {
	matches := make([]Match, 0, len(records))
	for _, record := range records {
		matches = append(matches, FromMatch(record))
	}
	return matches
}

// FromParticipants converts a roster, never returning nil.
func FromParticipants(records []storage.ParticipantRecord) []Participant {
	participants := make([]Participant, 0, len(records))
	for _, record := range records {
		participants = append(participants, Participant{
			PlayerID:   record.PlayerID,
			Team:       string(record.Team),
			Goalkeeper: record.Goalkeeper,
			Played:     record.Played,
		})
	}
	return participants
}

// FromEvent converts a ledger row.
func FromEvent(record storage.EventRecord) Event {
	return Event{
		ID:          record.ID,
		MatchID:     record.MatchID,
		Type:        string(record.Type),
		Team:        string(record.Team),
		ScorerID:    record.ScorerID,
		AssistID:    record.AssistID,
		OutPlayerID: record.OutPlayerID,
		InPlayerID:  record.InPlayerID,
		Minute:      record.Minute,
		OwnGoal:     record.OwnGoal,
		CreatedAt:   record.CreatedAt,
	}
}

// FromEvents converts ledger rows, never returning nil.
func FromEvents(records []storage.EventRecord) []Event {
	events := make([]Event, 0, len(records))
	for _, record := range records {
		events = append(events, FromEvent(record))
	}
	return events
}

// ScoreOf extracts the scoreboard from a match.
func ScoreOf(record storage.MatchRecord) Score {
	return Score{
		MatchID: record.ID,
		Orange:  record.OrangeScore,
		Black:   record.BlackScore,
		Status:  string(record.Status),
		Winner:  string(record.Winner),
	}
}
