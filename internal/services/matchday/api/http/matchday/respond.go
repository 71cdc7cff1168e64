package matchday

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	apperrors "github.com/louisbranch/matchday/internal/platform/errors"
	"github.com/louisbranch/matchday/internal/platform/errors/i18n"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError renders err in the caller's language. Uncoded errors are logged
// and reported as internal without leaking details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		log.Printf("matchday: request failed method=%s path=%s err=%v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    string(apperrors.CodeUnknown),
			Message: apperrors.New(apperrors.CodeUnknown, "").Localize(i18n.MatchAcceptLanguage(r.Header.Get("Accept-Language"))),
		})
		return
	}
	writeJSON(w, appErr.Code.HTTPStatus(), errorResponse{
		Code:     string(appErr.Code),
		Message:  appErr.Localize(i18n.MatchAcceptLanguage(r.Header.Get("Accept-Language"))),
		Metadata: appErr.Metadata,
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, field, message string) {
	writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument, message, map[string]string{"Field": field}))
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, r, "body", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, r, name, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(w, r, name, "invalid "+name)
		return 0, false
	}
	return value, true
}
