package ledger

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"momentkey/internal/domain"
	"momentkey/internal/logging"
	"momentkey/internal/metrics"
)

const maxBody = 64 << 10

type errorBody struct {
	Error string `json:"error"`
}

// NewHandler exposes l over HTTP:
//
//	POST /commitments              commit, 201 with the receipt
//	GET  /commitments/{moment_id}  list
//	GET  /health
//	GET  /metrics                  when m is not nil
func NewHandler(l domain.Ledger, m *metrics.Metrics, log *slog.Logger) *mux.Router {
	log = logging.OrDiscard(log)
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/commitments", func(w http.ResponseWriter, req *http.Request) {
		dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBody))
		dec.DisallowUnknownFields()
		var c domain.LedgerCommitment
		if err := dec.Decode(&c); err != nil {
			if strings.Contains(err.Error(), "unknown field") {
				writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		rc, err := l.Commit(req.Context(), c)
		if errors.Is(err, domain.ErrPolicyViolation) {
			log.Warn("commitment rejected", "moment_id", c.MomentID, "err", err)
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "commit failed"})
			return
		}
		log.Info("commitment accepted", "moment_id", c.MomentID, "receipt", rc.ReceiptID)
		writeJSON(w, http.StatusCreated, rc)
	}).Methods(http.MethodPost)

	r.HandleFunc("/commitments/{moment_id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := domain.ParseMomentID(mux.Vars(req)["moment_id"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		list, err := l.Commitments(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, list)
	}).Methods(http.MethodGet)

	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
