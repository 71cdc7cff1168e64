// Package matchday serves the match day JSON/HTTP API and the websocket
// viewer endpoints.
package matchday

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/ledger"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/lifecycle"
	"github.com/louisbranch/matchday/internal/services/matchday/live"
	"github.com/louisbranch/matchday/internal/services/matchday/stats"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"github.com/rs/cors"
)

// Lifecycle is the match day write and read surface the API calls.
type Lifecycle interface {
	CreatePlayer(ctx context.Context, name string, goalkeeper bool) (storage.PlayerRecord, error)
	ListPlayers(ctx context.Context) ([]storage.PlayerRecord, error)
	CreateSession(ctx context.Context, date time.Time, manyPresentRule bool) (storage.SessionRecord, error)
	CurrentSession(ctx context.Context) (storage.SessionRecord, error)
	SetAttendance(ctx context.Context, sessionID, playerID int64, present bool) (storage.AttendanceRecord, error)
	PresentPlayers(ctx context.Context, sessionID int64) ([]storage.PresentPlayer, error)

	CreateMatch(ctx context.Context, sessionID int64, number int) (storage.MatchRecord, error)
	ListMatches(ctx context.Context, sessionID int64) ([]storage.MatchRecord, error)
	MatchSnapshot(ctx context.Context, matchID int64) (live.Snapshot, error)
	Draw(ctx context.Context, matchID int64) (lifecycle.DrawResult, error)
	SetParticipants(ctx context.Context, matchID int64, orange, black []int64) (storage.MatchRecord, []storage.ParticipantRecord, error)
	Finish(ctx context.Context, matchID int64, orange, black int, played []int64) (lifecycle.FinishResult, error)
	AdjustScore(ctx context.Context, matchID int64, orange, black int) (storage.MatchRecord, error)
	SyncScore(ctx context.Context, matchID int64) (storage.MatchRecord, error)
	DeleteMatch(ctx context.Context, matchID int64) error

	RecordGoal(ctx context.Context, in ledger.GoalInput) (storage.EventRecord, storage.MatchRecord, error)
	RecordSubstitution(ctx context.Context, in ledger.SubstitutionInput) (storage.EventRecord, error)
	RecordTieDecider(ctx context.Context, matchID int64, winner storage.Team) (storage.EventRecord, error)
	RecordSummary(ctx context.Context, in ledger.SummaryInput) (storage.MatchRecord, []storage.EventRecord, error)
	DeleteEvent(ctx context.Context, eventID int64) (storage.EventRecord, storage.MatchRecord, error)
	ListEvents(ctx context.Context, matchID int64) ([]storage.EventRecord, error)
	RecomputeStats(ctx context.Context) (int64, error)
}

// Stats answers aggregate reads.
type Stats interface {
	Leaderboard(ctx context.Context, query stats.Query) ([]stats.Row, error)
	SessionSummary(ctx context.Context, sessionID int64) (stats.SessionSummary, error)
}

// Viewers hands out websocket handlers for live viewers.
type Viewers interface {
	MatchHandler(matchID int64) http.Handler
	TickerHandler() http.Handler
}

// Config wires the handler dependencies.
type Config struct {
	Lifecycle Lifecycle
	Stats     Stats
	Viewers   Viewers
	// AllowedOrigins lists CORS origins; empty allows any.
	AllowedOrigins []string
}

// Handler routes API requests.
type Handler struct {
	lifecycle Lifecycle
	stats     Stats
	viewers   Viewers
	origins   []string
}

// NewHandler builds the API handler.
func NewHandler(config Config) *Handler {
	return &Handler{
		lifecycle: config.Lifecycle,
		stats:     config.Stats,
		viewers:   config.Viewers,
		origins:   config.AllowedOrigins,
	}
}

// Routes returns the HTTP handler with every route mounted behind CORS.
func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/up", h.handleUp).Methods(http.MethodGet)

	router.HandleFunc("/players", h.handleCreatePlayer).Methods(http.MethodPost)
	router.HandleFunc("/players", h.handleListPlayers).Methods(http.MethodGet)

	router.HandleFunc("/sessions", h.handleCreateSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/current", h.handleCurrentSession).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id:[0-9]+}/attendance", h.handlePresentPlayers).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id:[0-9]+}/attendance/{player:[0-9]+}", h.handleSetAttendance).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{id:[0-9]+}/matches", h.handleCreateMatch).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id:[0-9]+}/matches", h.handleListMatches).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id:[0-9]+}/summary", h.handleRecordSummary).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id:[0-9]+}/stats", h.handleSessionStats).Methods(http.MethodGet)

	router.HandleFunc("/matches/{id:[0-9]+}", h.handleGetMatch).Methods(http.MethodGet)
	router.HandleFunc("/matches/{id:[0-9]+}", h.handleDeleteMatch).Methods(http.MethodDelete)
	router.HandleFunc("/matches/{id:[0-9]+}/draw", h.handleDraw).Methods(http.MethodPost)
	router.HandleFunc("/matches/{id:[0-9]+}/participants", h.handleSetParticipants).Methods(http.MethodPut)
	router.HandleFunc("/matches/{id:[0-9]+}/goals", h.handleRecordGoal).Methods(http.MethodPost)
	router.HandleFunc("/matches/{id:[0-9]+}/substitutions", h.handleRecordSubstitution).Methods(http.MethodPost)
	router.HandleFunc("/matches/{id:[0-9]+}/tie-decider", h.handleRecordTieDecider).Methods(http.MethodPost)
	router.HandleFunc("/matches/{id:[0-9]+}/finish", h.handleFinish).Methods(http.MethodPost)
	router.HandleFunc("/matches/{id:[0-9]+}/score", h.handleAdjustScore).Methods(http.MethodPut)
	router.HandleFunc("/matches/{id:[0-9]+}/sync-score", h.handleSyncScore).Methods(http.MethodPost)
	router.HandleFunc("/matches/{id:[0-9]+}/events", h.handleListEvents).Methods(http.MethodGet)
	router.HandleFunc("/matches/{id:[0-9]+}/live", h.handleMatchLive).Methods(http.MethodGet)

	router.HandleFunc("/events/{id:[0-9]+}", h.handleDeleteEvent).Methods(http.MethodDelete)
	router.HandleFunc("/admin/recompute", h.handleRecompute).Methods(http.MethodPost)
	router.HandleFunc("/stats/leaderboard", h.handleLeaderboard).Methods(http.MethodGet)
	router.HandleFunc("/live", h.handleTicker).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "route not found"})
	})

	return cors.New(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept-Language"},
	}).Handler(router)
}

func (h *Handler) handleUp(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) handleMatchLive(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.viewers.MatchHandler(matchID).ServeHTTP(w, r)
}

func (h *Handler) handleTicker(w http.ResponseWriter, r *http.Request) {
	h.viewers.TickerHandler().ServeHTTP(w, r)
}
