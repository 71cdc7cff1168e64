package matchday

import (
	"net/http"

	"github.com/louisbranch/matchday/internal/services/matchday/domain/ledger"
	"github.com/louisbranch/matchday/internal/services/matchday/storage"
	"github.com/louisbranch/matchday/internal/services/matchday/view"
)

type drawResponse struct {
	Match        view.Match         `json:"match"`
	Participants []view.Participant `json:"participants"`
	Waiting      []int64            `json:"waiting"`
	SatOut       []int64            `json:"sat_out"`
	Excluded     []string           `json:"excluded"`
	Reason       string             `json:"reason,omitempty"`
}

type rosterResponse struct {
	Match        view.Match         `json:"match"`
	Participants []view.Participant `json:"participants"`
}

type finishResponse struct {
	Match      view.Match `json:"match"`
	Reconciled bool       `json:"reconciled"`
}

type eventResponse struct {
	Event view.Event `json:"event"`
	Score view.Score `json:"score"`
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	snapshot, err := h.lifecycle.MatchSnapshot(r.Context(), matchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.lifecycle.Draw(r.Context(), matchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := drawResponse{
		Match:        view.FromMatch(result.Match),
		Participants: view.FromParticipants(result.Participants),
		Waiting:      nonNil(result.Waiting),
		SatOut:       nonNil(result.SatOut),
		Excluded:     make([]string, 0, len(result.Decision.Excluded)),
		Reason:       string(result.Decision.Reason),
	}
	for _, team := range result.Decision.Excluded {
		resp.Excluded = append(resp.Excluded, string(team))
	}
	writeJSON(w, http.StatusOK, resp)
}

type participantsRequest struct {
	Orange []int64 `json:"orange"`
	Black  []int64 `json:"black"`
}

func (h *Handler) handleSetParticipants(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req participantsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	match, participants, err := h.lifecycle.SetParticipants(r.Context(), matchID, req.Orange, req.Black)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rosterResponse{Match: view.FromMatch(match), Participants: view.FromParticipants(participants)})
}

type finishRequest struct {
	Orange int `json:"orange"`
	Black  int `json:"black"`
	// Played limits games-played credit; omitted means the whole roster.
	PlayedIDs []int64 `json:"played_ids"`
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req finishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.lifecycle.Finish(r.Context(), matchID, req.Orange, req.Black, req.PlayedIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse{Match: view.FromMatch(result.Match), Reconciled: result.Reconciled})
}

type scoreRequest struct {
	Orange int `json:"orange"`
	Black  int `json:"black"`
}

func (h *Handler) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	match, err := h.lifecycle.AdjustScore(r.Context(), matchID, req.Orange, req.Black)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromMatch(match))
}

func (h *Handler) handleSyncScore(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	match, err := h.lifecycle.SyncScore(r.Context(), matchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromMatch(match))
}

func (h *Handler) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.lifecycle.DeleteMatch(r.Context(), matchID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type goalRequest struct {
	Team     string `json:"team"`
	ScorerID *int64 `json:"scorer_id"`
	AssistID *int64 `json:"assist_id"`
	Minute   *int   `json:"minute"`
	OwnGoal  bool   `json:"own_goal"`
}

func (h *Handler) handleRecordGoal(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, match, err := h.lifecycle.RecordGoal(r.Context(), ledger.GoalInput{
		MatchID:  matchID,
		Team:     storage.Team(req.Team),
		ScorerID: req.ScorerID,
		AssistID: req.AssistID,
		Minute:   req.Minute,
		OwnGoal:  req.OwnGoal,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventResponse{Event: view.FromEvent(event), Score: view.ScoreOf(match)})
}

type substitutionRequest struct {
	Team        string `json:"team"`
	OutPlayerID int64  `json:"out_player_id"`
	InPlayerID  int64  `json:"in_player_id"`
	Minute      *int   `json:"minute"`
}

func (h *Handler) handleRecordSubstitution(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req substitutionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.lifecycle.RecordSubstitution(r.Context(), ledger.SubstitutionInput{
		MatchID:     matchID,
		Team:        storage.Team(req.Team),
		OutPlayerID: req.OutPlayerID,
		InPlayerID:  req.InPlayerID,
		Minute:      req.Minute,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view.FromEvent(event))
}

type tieDeciderRequest struct {
	Winner string `json:"winner"`
}

func (h *Handler) handleRecordTieDecider(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req tieDeciderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.lifecycle.RecordTieDecider(r.Context(), matchID, storage.Team(req.Winner))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view.FromEvent(event))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	events, err := h.lifecycle.ListEvents(r.Context(), matchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromEvents(events))
}

func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	event, match, err := h.lifecycle.DeleteEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Event: view.FromEvent(event), Score: view.ScoreOf(match)})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
