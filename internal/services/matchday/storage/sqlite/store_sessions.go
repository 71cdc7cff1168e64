package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

const sessionColumns = `id, session_date, many_present_rule, created_at`

// PutSession inserts a game day. Dates are unique.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) (storage.SessionRecord, error) {
	if err := s.writable(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	if record.Date.IsZero() {
		return storage.SessionRecord{}, fmt.Errorf("session date is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	date := record.Date.UTC().Format(sessionDateLayout)

	result, err := s.q.ExecContext(ctx, `
INSERT INTO sessions (session_date, many_present_rule, created_at)
VALUES (?, ?, ?)
`, date, boolToInt(record.ManyPresentRule), toMillis(record.CreatedAt))
	if err != nil {
		return storage.SessionRecord{}, mapWriteError("put session", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("put session id: %w", err)
	}
	record.ID = id
	record.Date, _ = time.Parse(sessionDateLayout, date)
	record.CreatedAt = fromMillis(toMillis(record.CreatedAt))
	return record, nil
}

// GetSession loads one game day.
func (s *Store) GetSession(ctx context.Context, id int64) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	record, err := scanSession(row.Scan)
	if err != nil {
		return storage.SessionRecord{}, mapNotFound("get session", err)
	}
	return record, nil
}

// CurrentSession loads the latest game day by date.
func (s *Store) CurrentSession(ctx context.Context) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY session_date DESC, id DESC LIMIT 1`)
	record, err := scanSession(row.Scan)
	if err != nil {
		return storage.SessionRecord{}, mapNotFound("current session", err)
	}
	return record, nil
}

// SetAttendance upserts presence. A player returning after being marked absent
// moves to the back of the arrival queue.
func (s *Store) SetAttendance(ctx context.Context, sessionID int64, playerID int64, present bool) (storage.AttendanceRecord, error) {
	if err := s.writable(ctx); err != nil {
		return storage.AttendanceRecord{}, err
	}
	if _, err := s.q.ExecContext(ctx, `
INSERT INTO attendance (session_id, player_id, present, arrival_order)
VALUES (?1, ?2, ?3, (SELECT COALESCE(MAX(arrival_order), 0) + 1 FROM attendance WHERE session_id = ?1))
ON CONFLICT(session_id, player_id) DO UPDATE SET
    arrival_order = CASE
        WHEN attendance.present = 0 AND excluded.present = 1 THEN excluded.arrival_order
        ELSE attendance.arrival_order
    END,
    present = excluded.present
`, sessionID, playerID, boolToInt(present)); err != nil {
		return storage.AttendanceRecord{}, mapWriteError("set attendance", err)
	}

	record := storage.AttendanceRecord{SessionID: sessionID, PlayerID: playerID}
	var presentValue int
	if err := s.q.QueryRowContext(ctx, `
SELECT present, arrival_order FROM attendance WHERE session_id = ? AND player_id = ?
`, sessionID, playerID).Scan(&presentValue, &record.ArrivalOrder); err != nil {
		return storage.AttendanceRecord{}, mapNotFound("load attendance", err)
	}
	record.Present = presentValue == 1
	return record, nil
}

// ListPresentPlayers lists present players in arrival order.
func (s *Store) ListPresentPlayers(ctx context.Context, sessionID int64) ([]storage.PresentPlayer, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
SELECT p.id, p.name, p.goalkeeper, a.arrival_order
FROM attendance a
JOIN players p ON p.id = a.player_id
WHERE a.session_id = ? AND a.present = 1
ORDER BY a.arrival_order, p.id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list present players: %w", err)
	}
	defer rows.Close()

	var players []storage.PresentPlayer
	for rows.Next() {
		var player storage.PresentPlayer
		var goalkeeper int
		if err := rows.Scan(&player.PlayerID, &player.Name, &goalkeeper, &player.ArrivalOrder); err != nil {
			return nil, fmt.Errorf("scan present player row: %w", err)
		}
		player.Goalkeeper = goalkeeper == 1
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate present player rows: %w", err)
	}
	return players, nil
}

// SessionTotals aggregates per-player contributions across one game day.
func (s *Store) SessionTotals(ctx context.Context, sessionID int64) ([]storage.SessionPlayerTotals, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
SELECT pl.id, pl.name,
    (SELECT COUNT(1) FROM match_participants p JOIN matches m ON m.id = p.match_id
        WHERE m.session_id = ?1 AND p.player_id = pl.id AND p.played = 1) AS games_played,
    (SELECT COUNT(1) FROM match_events e JOIN matches m ON m.id = e.match_id
        WHERE m.session_id = ?1 AND e.scorer_id = pl.id AND e.own_goal = 0
          AND e.event_type IN ('goal', 'summary_goal')) AS goals_scored,
    (SELECT COUNT(1) FROM match_events e JOIN matches m ON m.id = e.match_id
        WHERE m.session_id = ?1 AND e.assist_id = pl.id
          AND e.event_type IN ('goal', 'summary_goal')) AS assists,
    (SELECT COUNT(1) FROM match_events e
        JOIN matches m ON m.id = e.match_id
        JOIN match_participants p ON p.match_id = e.match_id
        WHERE m.session_id = ?1 AND e.event_type = 'goal'
          AND p.player_id = pl.id AND p.team <> e.team) AS goals_conceded
FROM players pl
WHERE EXISTS (SELECT 1 FROM attendance a WHERE a.session_id = ?1 AND a.player_id = pl.id)
   OR EXISTS (SELECT 1 FROM match_participants p JOIN matches m ON m.id = p.match_id
        WHERE m.session_id = ?1 AND p.player_id = pl.id)
ORDER BY goals_scored DESC, assists DESC, pl.name, pl.id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session totals: %w", err)
	}
	defer rows.Close()

	var totals []storage.SessionPlayerTotals
	for rows.Next() {
		var row storage.SessionPlayerTotals
		if err := rows.Scan(&row.PlayerID, &row.Name, &row.GamesPlayed, &row.GoalsScored, &row.Assists, &row.GoalsConceded); err != nil {
			return nil, fmt.Errorf("scan session totals row: %w", err)
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session totals rows: %w", err)
	}
	return totals, nil
}

func scanSession(scan scanner) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var date string
	var manyPresent int
	var createdAt int64
	if err := scan(&record.ID, &date, &manyPresent, &createdAt); err != nil {
		return storage.SessionRecord{}, err
	}
	parsed, err := time.Parse(sessionDateLayout, date)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("parse session date %q: %w", date, err)
	}
	record.Date = parsed
	record.ManyPresentRule = manyPresent == 1
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
