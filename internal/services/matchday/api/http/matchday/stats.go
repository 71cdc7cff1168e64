package matchday

import (
	"net/http"

	"github.com/louisbranch/matchday/internal/services/matchday/stats"
)

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	order, err := stats.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	minGames, ok := queryInt(w, r, "min_games")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	rows, err := h.stats.Leaderboard(r.Context(), stats.Query{Order: order, MinGames: minGames, Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type recomputeResponse struct {
	Updated int64 `json:"updated"`
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	updated, err := h.lifecycle.RecomputeStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Updated: updated})
}
