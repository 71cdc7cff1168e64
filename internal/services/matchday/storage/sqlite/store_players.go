package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/matchday/internal/services/matchday/storage"
)

const playerColumns = `id, name, goalkeeper, games_played, goals_scored, assists, goals_conceded, created_at`

// PutPlayer inserts a player with zeroed counters.
func (s *Store) PutPlayer(ctx context.Context, record storage.PlayerRecord) (storage.PlayerRecord, error) {
	if err := s.writable(ctx); err != nil {
		return storage.PlayerRecord{}, err
	}
	record.Name = strings.TrimSpace(record.Name)
	if record.Name == "" {
		return storage.PlayerRecord{}, fmt.Errorf("player name is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.GamesPlayed, record.GoalsScored, record.Assists, record.GoalsConceded = 0, 0, 0, 0

	result, err := s.q.ExecContext(ctx, `
INSERT INTO players (name, goalkeeper, created_at)
VALUES (?, ?, ?)
`, record.Name, boolToInt(record.Goalkeeper), toMillis(record.CreatedAt))
	if err != nil {
		return storage.PlayerRecord{}, mapWriteError("put player", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.PlayerRecord{}, fmt.Errorf("put player id: %w", err)
	}
	record.ID = id
	record.CreatedAt = fromMillis(toMillis(record.CreatedAt))
	return record, nil
}

// GetPlayer loads one player.
func (s *Store) GetPlayer(ctx context.Context, id int64) (storage.PlayerRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PlayerRecord{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	record, err := scanPlayer(row.Scan)
	if err != nil {
		return storage.PlayerRecord{}, mapNotFound("get player", err)
	}
	return record, nil
}

// ListPlayers lists all players by name.
func (s *Store) ListPlayers(ctx context.Context) ([]storage.PlayerRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []storage.PlayerRecord
	for rows.Next() {
		record, err := scanPlayer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan player row: %w", err)
		}
		players = append(players, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player rows: %w", err)
	}
	return players, nil
}

// AddPlayerCounters applies a signed delta with a zero floor on every counter.
func (s *Store) AddPlayerCounters(ctx context.Context, playerID int64, delta storage.CounterDelta) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	result, err := s.q.ExecContext(ctx, `
UPDATE players SET
    games_played = MAX(0, games_played + ?),
    goals_scored = MAX(0, goals_scored + ?),
    assists = MAX(0, assists + ?),
    goals_conceded = MAX(0, goals_conceded + ?)
WHERE id = ?
`, delta.GamesPlayed, delta.GoalsScored, delta.Assists, delta.GoalsConceded, playerID)
	if err != nil {
		return mapWriteError("add player counters", err)
	}
	return requireAffected(result, "add player counters")
}

// RecomputePlayerCounters rebuilds counters from ledger rows and played participants.
func (s *Store) RecomputePlayerCounters(ctx context.Context) (int64, error) {
	if err := s.writable(ctx); err != nil {
		return 0, err
	}
	result, err := s.q.ExecContext(ctx, `
UPDATE players SET
    goals_scored = (
        SELECT COUNT(1) FROM match_events e
        WHERE e.scorer_id = players.id
          AND e.own_goal = 0
          AND e.event_type IN ('goal', 'summary_goal')
    ),
    assists = (
        SELECT COUNT(1) FROM match_events e
        WHERE e.assist_id = players.id
          AND e.event_type IN ('goal', 'summary_goal')
    ),
    goals_conceded = (
        SELECT COUNT(1) FROM match_events e
        JOIN match_participants p ON p.match_id = e.match_id
        WHERE e.event_type = 'goal'
          AND p.player_id = players.id
          AND p.team <> e.team
    ),
    games_played = (
        SELECT COUNT(1) FROM match_participants p
        WHERE p.player_id = players.id AND p.played = 1
    )
`)
	if err != nil {
		return 0, fmt.Errorf("recompute player counters: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recompute player counters rows affected: %w", err)
	}
	return affected, nil
}

func scanPlayer(scan scanner) (storage.PlayerRecord, error) {
	var record storage.PlayerRecord
	var goalkeeper int
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.Name,
		&goalkeeper,
		&record.GamesPlayed,
		&record.GoalsScored,
		&record.Assists,
		&record.GoalsConceded,
		&createdAt,
	); err != nil {
		return storage.PlayerRecord{}, err
	}
	record.Goalkeeper = goalkeeper == 1
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
