package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/covid19india/internal/domain/model"
	"github.com/okian/covid19india/pkg/logger"
)

// Plain-text confirmations returned by mutating endpoints.
const (
	msgDistrictAdded   = "District Successfully Added"
	msgDistrictRemoved = "District Removed"
	msgDistrictUpdated = "District Details Updated"
)

const maxBodyBytes = 1 << 20

// DistrictsHandler handles district requests.
type DistrictsHandler struct {
	deps DistrictDependencies
	log  logger.Logger
}

// NewDistrictsHandler creates a new districts handler.
func NewDistrictsHandler(deps DistrictDependencies, log logger.Logger) *DistrictsHandler {
	return &DistrictsHandler{deps: deps, log: log}
}

// HandleAddDistrict handles POST /districts/ requests.
func (h *DistrictsHandler) HandleAddDistrict(w http.ResponseWriter, r *http.Request) {
	in, err := decodeDistrict(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	id, err := h.deps.AddDistrict(r.Context(), in)
	if err != nil {
		writeStoreError(r.Context(), h.log, w, "add_district", err)
		return
	}
	w.Header().Set("Location", "/districts/"+strconv.FormatInt(id, 10)+"/")
	writeText(w, http.StatusOK, msgDistrictAdded)
}

// HandleGetDistrict handles GET /districts/{districtId}/ requests.
func (h *DistrictsHandler) HandleGetDistrict(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, districtIDVar)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	d, err := h.deps.GetDistrict(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), h.log, w, "get_district", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleUpdateDistrict handles PUT /districts/{districtId}/ requests.
// The confirmation is sent even when no row matched.
func (h *DistrictsHandler) HandleUpdateDistrict(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, districtIDVar)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	in, err := decodeDistrict(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if err := h.deps.UpdateDistrict(r.Context(), id, in); err != nil {
		writeStoreError(r.Context(), h.log, w, "update_district", err)
		return
	}
	writeText(w, http.StatusOK, msgDistrictUpdated)
}

// HandleDeleteDistrict handles DELETE /districts/{districtId}/ requests.
// The confirmation is sent even when no row matched.
func (h *DistrictsHandler) HandleDeleteDistrict(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, districtIDVar)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if err := h.deps.DeleteDistrict(r.Context(), id); err != nil {
		writeStoreError(r.Context(), h.log, w, "delete_district", err)
		return
	}
	writeText(w, http.StatusOK, msgDistrictRemoved)
}

// HandleDistrictDetails handles GET /districts/{districtId}/details/ requests.
func (h *DistrictsHandler) HandleDistrictDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, districtIDVar)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	details, err := h.deps.DistrictStateName(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), h.log, w, "district_state_name", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// decodeDistrict reads the six mutable fields. Missing fields stay zero and an
// empty body counts as {}; a client-supplied districtId is ignored.
func decodeDistrict(w http.ResponseWriter, r *http.Request) (model.DistrictInput, error) {
	var in model.DistrictInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		return model.DistrictInput{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return in, nil
}
