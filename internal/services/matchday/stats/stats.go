// Package stats serves aggregate read models: the career leaderboard and
// per-session summaries. Reads go through a short TTL cache; live score and
// event streams never do.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/domain"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"github.com/louisbranch/matchday/internal/services/matchday/view"
)

// Order selects the leaderboard ranking counter.
type Order string

const (
	OrderGoals    Order = "goals"
	OrderAssists  Order = "assists"
	OrderGames    Order = "games"
	OrderConceded Order = "conceded"
)

// ParseOrder reads an order name; empty means goals.
func ParseOrder(raw string) (Order, error) {
	switch order := Order(strings.ToLower(strings.TrimSpace(raw))); order {
	case "":
		return OrderGoals, nil
	case OrderGoals, OrderAssists, OrderGames, OrderConceded:
		return order, nil
	default:
		return "", domain.InvalidArgument("order", fmt.Sprintf("unknown leaderboard order %q", raw))
	}
}

// Reader is the slice of the store aggregate reads need.
type Reader interface {
	ListPlayers(ctx context.Context) ([]storage.PlayerRecord, error)
	GetSession(ctx context.Context, id int64) (storage.SessionRecord, error)
	ListMatches(ctx context.Context, sessionID int64) ([]storage.MatchRecord, error)
	SessionTotals(ctx context.Context, sessionID int64) ([]storage.SessionPlayerTotals, error)
}

// Row is one ranked leaderboard line.
type Row struct {
	Rank int `json:"rank"`
	view.Player
	GoalsPerGame float64 `json:"goals_per_game"`
}

// Query filters a leaderboard.
type Query struct {
	Order Order
	// MinGames hides players with fewer games played.
	MinGames int
	// Limit caps the rows returned; zero means all.
	Limit int
}

// SessionSummary aggregates one game day.
type SessionSummary struct {
	Session     view.Session  `json:"session"`
	Matches     int           `json:"matches"`
	Finished    int           `json:"finished"`
	OrangeWins  int           `json:"orange_wins"`
	BlackWins   int           `json:"black_wins"`
	Draws       int           `json:"draws"`
	Goals       int           `json:"goals"`
	TopScorerID *int64        `json:"top_scorer_id,omitempty"`
	Players     []PlayerTotal `json:"players"`
}

// PlayerTotal is one player's contribution within a session.
type PlayerTotal struct {
	PlayerID      int64  `json:"player_id"`
	Name          string `json:"name"`
	GamesPlayed   int    `json:"games_played"`
	GoalsScored   int    `json:"goals_scored"`
	Assists       int    `json:"assists"`
	GoalsConceded int    `json:"goals_conceded"`
}

// Config tunes the service.
type Config struct {
	TTL   time.Duration
	Clock func() time.Time
}

// Service answers aggregate reads.
type Service struct {
	reader   Reader
	players  *slot[[]storage.PlayerRecord]
	sessions *slot[SessionSummary]
}

// NewService builds a stats service. A zero TTL uses DefaultTTL; a negative
// one disables caching.
func NewService(reader Reader, config Config) *Service {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Service{
		reader:   reader,
		players:  newSlot[[]storage.PlayerRecord](config.TTL, config.Clock),
		sessions: newSlot[SessionSummary](config.TTL, config.Clock),
	}
}

// Leaderboard ranks players by the requested counter. Equal counters share a
// rank and are listed by name.
func (s *Service) Leaderboard(ctx context.Context, query Query) ([]Row, error) {
	if query.Order == "" {
		query.Order = OrderGoals
	}
	if query.MinGames < 0 || query.Limit < 0 {
		return nil, domain.InvalidArgument("query", "min_games and limit cannot be negative")
	}
	players, err := s.players.get(ctx, "players", s.reader.ListPlayers)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	rows := make([]Row, 0, len(players))
	for _, player := range players {
		if player.GamesPlayed < query.MinGames {
			continue
		}
		row := Row{Player: view.FromPlayer(player)}
		if player.GamesPlayed > 0 {
			row.GoalsPerGame = float64(player.GoalsScored) / float64(player.GamesPlayed)
		}
		rows = append(rows, row)
	}

	key := rankKey(query.Order)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		if a != b {
			return a > b
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID < rows[j].ID
	})
	for i := range rows {
		if i > 0 && key(rows[i]) == key(rows[i-1]) {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
	if query.Limit > 0 && len(rows) > query.Limit {
		rows = rows[:query.Limit]
	}
	return rows, nil
}

// SessionSummary totals a session's matches and per-player contributions.
func (s *Service) SessionSummary(ctx context.Context, sessionID int64) (SessionSummary, error) {
	return s.sessions.get(ctx, strconv.FormatInt(sessionID, 10), func(ctx context.Context) (SessionSummary, error) {
		return s.loadSessionSummary(ctx, sessionID)
	})
}

func (s *Service) loadSessionSummary(ctx context.Context, sessionID int64) (SessionSummary, error) {
	session, err := s.reader.GetSession(ctx, sessionID)
	if err != nil {
		return SessionSummary{}, domain.FromStorage(err, domain.ErrSessionNotFound)
	}
	matches, err := s.reader.ListMatches(ctx, sessionID)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("load matches: %w", err)
	}
	totals, err := s.reader.SessionTotals(ctx, sessionID)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("load session totals: %w", err)
	}

	summary := SessionSummary{
		Session: view.FromSession(session),
		Players: make([]PlayerTotal, 0, len(totals)),
	}
	for _, match := range matches {
		if match.Number == storage.SummaryMatchNumber {
			continue
		}
		summary.Matches++
		summary.Goals += match.OrangeScore + match.BlackScore
		if match.Status != storage.MatchFinished {
			continue
		}
		summary.Finished++
		switch match.Winner {
		case storage.WinnerOrange:
			summary.OrangeWins++
		case storage.WinnerBlack:
			summary.BlackWins++
		case storage.WinnerDraw:
			summary.Draws++
		}
	}
	for _, total := range totals {
		summary.Players = append(summary.Players, PlayerTotal(total))
		if total.GoalsScored == 0 {
			continue
		}
		if summary.TopScorerID == nil {
			id := total.PlayerID
			summary.TopScorerID = &id
		}
	}
	return summary, nil
}

func rankKey(order Order) func(Row) int {
	switch order {
	case OrderAssists:
		return func(r Row) int { return r.Assists }
	case OrderGames:
		return func(r Row) int { return r.GamesPlayed }
	case OrderConceded:
		return func(r Row) int { return r.GoalsConceded }
	default:
		return func(r Row) int { return r.GoalsScored }
	}
}
