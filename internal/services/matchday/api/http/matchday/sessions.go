package matchday

import (
	"net/http"
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/domain/ledger"
	"github.com/louisbranch/matchday/internal/services/matchday/view"
)

type createPlayerRequest struct {
	Name       string `json:"name"`
	Goalkeeper bool   `json:"goalkeeper"`
}

func (h *Handler) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	player, err := h.lifecycle.CreatePlayer(r.Context(), req.Name, req.Goalkeeper)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view.FromPlayer(player))
}

func (h *Handler) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.lifecycle.ListPlayers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromPlayers(players))
}

type createSessionRequest struct {
	Date            string `json:"date"`
	ManyPresentRule bool   `json:"many_present_rule"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := time.Parse(view.DateLayout, req.Date)
	if err != nil {
		badRequest(w, r, "date", "date must be YYYY-MM-DD")
		return
	}
	session, err := h.lifecycle.CreateSession(r.Context(), date, req.ManyPresentRule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view.FromSession(session))
}

func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.lifecycle.CurrentSession(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromSession(session))
}

type attendanceRequest struct {
	Present *bool `json:"present"`
}

func (h *Handler) handleSetAttendance(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "player")
	if !ok {
		return
	}
	var req attendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	present := true
	if req.Present != nil {
		present = *req.Present
	}
	record, err := h.lifecycle.SetAttendance(r.Context(), sessionID, playerID, present)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromAttendance(record))
}

type presentPlayer struct {
	PlayerID     int64  `json:"player_id"`
	Name         string `json:"name"`
	Goalkeeper   bool   `json:"goalkeeper"`
	ArrivalOrder int    `json:"arrival_order"`
}

func (h *Handler) handlePresentPlayers(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	present, err := h.lifecycle.PresentPlayers(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]presentPlayer, 0, len(present))
	for _, player := range present {
		resp = append(resp, presentPlayer(player))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createMatchRequest struct {
	Number int `json:"number"`
}

func (h *Handler) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req createMatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	match, err := h.lifecycle.CreateMatch(r.Context(), sessionID, req.Number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view.FromMatch(match))
}

func (h *Handler) handleListMatches(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	matches, err := h.lifecycle.ListMatches(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.FromMatches(matches))
}

type summaryRequest struct {
	PlayerID int64 `json:"player_id"`
	Goals    int   `json:"goals"`
	Assists  int   `json:"assists"`
}

type summaryResponse struct {
	Match  view.Match   `json:"match"`
	Events []view.Event `json:"events"`
}

func (h *Handler) handleRecordSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req summaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	match, events, err := h.lifecycle.RecordSummary(r.Context(), ledger.SummaryInput{
		SessionID: sessionID,
		PlayerID:  req.PlayerID,
		Goals:     req.Goals,
		Assists:   req.Assists,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summaryResponse{Match: view.FromMatch(match), Events: view.FromEvents(events)})
}

func (h *Handler) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.stats.SessionSummary(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
