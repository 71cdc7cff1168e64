package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

const matchColumns = `id, session_id, match_number, orange_score, black_score, orange_streak, black_streak, status, winner, started_at, finished_at, created_at`

// PutMatch inserts a match. A duplicate (session, number) pair is a conflict.
func (s *Store) PutMatch(ctx context.Context, record storage.MatchRecord) (storage.MatchRecord, error) {
	if err := s.writable(ctx); err != nil {
		return storage.MatchRecord{}, err
	}
	if record.Status == "" {
		record.Status = storage.MatchScheduled
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	result, err := s.q.ExecContext(ctx, `
INSERT INTO matches (
    session_id, match_number, orange_score, black_score, orange_streak, black_streak,
    status, winner, started_at, finished_at, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.SessionID,
		record.Number,
		record.OrangeScore,
		record.BlackScore,
		record.OrangeStreak,
		record.BlackStreak,
		string(record.Status),
		string(record.Winner),
		toNullMillis(record.StartedAt),
		toNullMillis(record.FinishedAt),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return storage.MatchRecord{}, mapWriteError("put match", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.MatchRecord{}, fmt.Errorf("put match id: %w", err)
	}
	record.ID = id
	record.CreatedAt = fromMillis(toMillis(record.CreatedAt))
	return record, nil
}

// UpdateMatch overwrites scores, streaks, status, winner and timestamps.
func (s *Store) UpdateMatch(ctx context.Context, record storage.MatchRecord) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `
UPDATE matches SET
    orange_score = ?,
    black_score = ?,
    orange_streak = ?,
    black_streak = ?,
    status = ?,
    winner = ?,
    started_at = ?,
    finished_at = ?
WHERE id = ?
`,
		record.OrangeScore,
		record.BlackScore,
		record.OrangeStreak,
		record.BlackStreak,
		string(record.Status),
		string(record.Winner),
		toNullMillis(record.StartedAt),
		toNullMillis(record.FinishedAt),
		record.ID,
	)
	if err != nil {
		return mapWriteError("update match", err)
	}
	return requireAffected(result, "update match")
}

// DeleteMatch removes a match with its ledger rows and roster.
func (s *Store) DeleteMatch(ctx context.Context, id int64) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM match_events WHERE match_id = ?`, id); err != nil {
		return fmt.Errorf("delete match events: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = ?`, id); err != nil {
		return fmt.Errorf("delete match participants: %w", err)
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return mapWriteError("delete match", err)
	}
	return requireAffected(result, "delete match")
}

// GetMatch loads one match.
func (s *Store) GetMatch(ctx context.Context, id int64) (storage.MatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MatchRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	record, err := scanMatch(row.Scan)
	if err != nil {
		return storage.MatchRecord{}, mapNotFound("get match", err)
	}
	return record, nil
}

// GetMatchByNumber loads one match by its session sequence number.
func (s *Store) GetMatchByNumber(ctx context.Context, sessionID int64, number int) (storage.MatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MatchRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE session_id = ? AND match_number = ?`, sessionID, number)
	record, err := scanMatch(row.Scan)
	if err != nil {
		return storage.MatchRecord{}, mapNotFound("get match by number", err)
	}
	return record, nil
}

// ListMatches lists a session's matches by number.
func (s *Store) ListMatches(ctx context.Context, sessionID int64) ([]storage.MatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE session_id = ? ORDER BY match_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []storage.MatchRecord
	for rows.Next() {
		record, err := scanMatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		matches = append(matches, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match rows: %w", err)
	}
	return matches, nil
}

// LatestInProgressMatch loads the most recently started in-progress match.
func (s *Store) LatestInProgressMatch(ctx context.Context) (storage.MatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MatchRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `
SELECT `+matchColumns+` FROM matches
WHERE status = 'in_progress'
ORDER BY started_at DESC, id DESC
LIMIT 1
`)
	record, err := scanMatch(row.Scan)
	if err != nil {
		return storage.MatchRecord{}, mapNotFound("latest in-progress match", err)
	}
	return record, nil
}

// RecentOutcomes lists finished regular matches numbered below beforeNumber,
// latest first, with the surviving tie-decider result if any.
func (s *Store) RecentOutcomes(ctx context.Context, sessionID int64, beforeNumber int, limit int) ([]storage.Outcome, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
SELECT m.id, m.match_number, m.winner, m.orange_streak, m.black_streak,
    COALESCE((
        SELECT e.team FROM match_events e
        WHERE e.match_id = m.id AND e.event_type = 'tie_decider'
        ORDER BY e.id DESC LIMIT 1
    ), '')
FROM matches m
WHERE m.session_id = ?
  AND m.status = 'finished'
  AND m.match_number > 0
  AND m.match_number < ?
ORDER BY m.match_number DESC
LIMIT ?
`, sessionID, beforeNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []storage.Outcome
	for rows.Next() {
		var outcome storage.Outcome
		var winner, tieDecider string
		if err := rows.Scan(&outcome.MatchID, &outcome.Number, &winner, &outcome.OrangeStreak, &outcome.BlackStreak, &tieDecider); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		outcome.Winner = storage.Winner(winner)
		outcome.TieDecider = storage.Team(tieDecider)
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return outcomes, nil
}

// ReplaceParticipants swaps a match roster for a new one.
func (s *Store) ReplaceParticipants(ctx context.Context, matchID int64, participants []storage.ParticipantRecord) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	for _, participant := range participants {
		if !participant.Team.Valid() {
			return fmt.Errorf("participant %d: invalid team %q", participant.PlayerID, participant.Team)
		}
		if _, err := s.q.ExecContext(ctx, `
INSERT INTO match_participants (match_id, player_id, team, goalkeeper, played)
VALUES (?, ?, ?, ?, ?)
`, matchID, participant.PlayerID, string(participant.Team), boolToInt(participant.Goalkeeper), boolToInt(participant.Played)); err != nil {
			return mapWriteError("put participant", err)
		}
	}
	return nil
}

// MarkParticipantsPlayed flags roster slots as played.
func (s *Store) MarkParticipantsPlayed(ctx context.Context, matchID int64, playerIDs []int64) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	for _, playerID := range playerIDs {
		result, err := s.q.ExecContext(ctx, `
UPDATE match_participants SET played = 1 WHERE match_id = ? AND player_id = ?
`, matchID, playerID)
		if err != nil {
			return fmt.Errorf("mark participant played: %w", err)
		}
		if err := requireAffected(result, "mark participant played"); err != nil {
			return err
		}
	}
	return nil
}

// ListParticipants lists a match roster, orange first.
func (s *Store) ListParticipants(ctx context.Context, matchID int64) ([]storage.ParticipantRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
SELECT match_id, player_id, team, goalkeeper, played
FROM match_participants
WHERE match_id = ?
ORDER BY CASE team WHEN 'orange' THEN 0 ELSE 1 END, goalkeeper DESC, player_id
`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []storage.ParticipantRecord
	for rows.Next() {
		var participant storage.ParticipantRecord
		var team string
		var goalkeeper, played int
		if err := rows.Scan(&participant.MatchID, &participant.PlayerID, &team, &goalkeeper, &played); err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		participant.Team = storage.Team(team)
		participant.Goalkeeper = goalkeeper == 1
		participant.Played = played == 1
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows: %w", err)
	}
	return participants, nil
}

func scanMatch(scan scanner) (storage.MatchRecord, error) {
	var record storage.MatchRecord
	var status, winner string
	var startedAt, finishedAt sql.NullInt64
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.SessionID,
		&record.Number,
		&record.OrangeScore,
		&record.BlackScore,
		&record.OrangeStreak,
		&record.BlackStreak,
		&status,
		&winner,
		&startedAt,
		&finishedAt,
		&createdAt,
	); err != nil {
		return storage.MatchRecord{}, err
	}
	record.Status = storage.MatchStatus(status)
	record.Winner = storage.Winner(winner)
	record.StartedAt = fromNullMillis(startedAt)
	record.FinishedAt = fromNullMillis(finishedAt)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
