package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/covid19india/pkg/logger"
)

// Route variable names.
const (
	stateIDVar    = "stateId"
	districtIDVar = "districtId"
)

// StatesHandler handles state requests.
type StatesHandler struct {
	deps StateDependencies
	log  logger.Logger
}

// NewStatesHandler creates a new states handler.
func NewStatesHandler(deps StateDependencies, log logger.Logger) *StatesHandler {
	return &StatesHandler{deps: deps, log: log}
}

// HandleListStates handles GET /states/ requests.
func (h *StatesHandler) HandleListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.deps.ListStates(r.Context())
	if err != nil {
		writeStoreError(r.Context(), h.log, w, "list_states", err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// HandleGetState handles GET /states/{stateId}/ requests.
func (h *StatesHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, stateIDVar)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	state, err := h.deps.GetState(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), h.log, w, "get_state", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleStateStats handles GET /states/{stateId}/stats/ requests.
// A state without districts yields null totals, never 404.
func (h *StatesHandler) HandleStateStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, stateIDVar)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	stats, err := h.deps.StateStats(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), h.log, w, "state_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// pathID parses a base-10 integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidID, name, raw)
	}
	return id, nil
}
