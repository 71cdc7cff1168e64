package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

const eventColumns = `id, match_id, event_type, scorer_id, assist_id, out_player_id, in_player_id, team, minute, own_goal, created_at`

// AppendEvent appends one ledger row and returns it with its assigned ID.
func (s *Store) AppendEvent(ctx context.Context, record storage.EventRecord) (storage.EventRecord, error) {
	if err := s.writable(ctx); err != nil {
		return storage.EventRecord{}, err
	}
	if record.Type == "" {
		return storage.EventRecord{}, fmt.Errorf("event type is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	var minute sql.NullInt64
	if record.Minute != nil {
		minute = sql.NullInt64{Int64: int64(*record.Minute), Valid: true}
	}

	result, err := s.q.ExecContext(ctx, `
INSERT INTO match_events (
    match_id, event_type, scorer_id, assist_id, out_player_id, in_player_id, team, minute, own_goal, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.MatchID,
		string(record.Type),
		toNullID(record.ScorerID),
		toNullID(record.AssistID),
		toNullID(record.OutPlayerID),
		toNullID(record.InPlayerID),
		string(record.Team),
		minute,
		boolToInt(record.OwnGoal),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return storage.EventRecord{}, mapWriteError("append event", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.EventRecord{}, fmt.Errorf("append event id: %w", err)
	}
	record.ID = id
	record.CreatedAt = fromMillis(toMillis(record.CreatedAt))
	return record, nil
}

// GetEvent loads one ledger row.
func (s *Store) GetEvent(ctx context.Context, id int64) (storage.EventRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.EventRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM match_events WHERE id = ?`, id)
	record, err := scanEvent(row.Scan)
	if err != nil {
		return storage.EventRecord{}, mapNotFound("get event", err)
	}
	return record, nil
}

// ListEvents lists a match's ledger rows in append order.
func (s *Store) ListEvents(ctx context.Context, matchID int64) ([]storage.EventRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `SELECT `+eventColumns+` FROM match_events WHERE match_id = ? ORDER BY id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []storage.EventRecord
	for rows.Next() {
		record, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// DeleteEvent removes one ledger row.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM match_events WHERE id = ?`, id)
	if err != nil {
		return mapWriteError("delete event", err)
	}
	return requireAffected(result, "delete event")
}

// DeleteEventsByType removes every row of one type for a match.
func (s *Store) DeleteEventsByType(ctx context.Context, matchID int64, eventType storage.EventType) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM match_events WHERE match_id = ? AND event_type = ?`, matchID, string(eventType)); err != nil {
		return fmt.Errorf("delete events by type: %w", err)
	}
	return nil
}

// GoalTally counts live goal rows per team.
func (s *Store) GoalTally(ctx context.Context, matchID int64) (int, int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, 0, err
	}
	var orange, black int
	if err := s.q.QueryRowContext(ctx, `
SELECT
    COALESCE(SUM(CASE WHEN team = 'orange' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN team = 'black' THEN 1 ELSE 0 END), 0)
FROM match_events
WHERE match_id = ? AND event_type = 'goal'
`, matchID).Scan(&orange, &black); err != nil {
		return 0, 0, fmt.Errorf("goal tally: %w", err)
	}
	return orange, black, nil
}

func scanEvent(scan scanner) (storage.EventRecord, error) {
	var record storage.EventRecord
	var eventType, team string
	var scorerID, assistID, outPlayerID, inPlayerID, minute sql.NullInt64
	var ownGoal int
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.MatchID,
		&eventType,
		&scorerID,
		&assistID,
		&outPlayerID,
		&inPlayerID,
		&team,
		&minute,
		&ownGoal,
		&createdAt,
	); err != nil {
		return storage.EventRecord{}, err
	}
	record.Type = storage.EventType(eventType)
	record.ScorerID = fromNullID(scorerID)
	record.AssistID = fromNullID(assistID)
	record.OutPlayerID = fromNullID(outPlayerID)
	record.InPlayerID = fromNullID(inPlayerID)
	record.Team = storage.Team(team)
	if minute.Valid {
		m := int(minute.Int64)
		record.Minute = &m
	}
	record.OwnGoal = ownGoal == 1
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
