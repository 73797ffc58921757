// Package httpapi exposes internal/ingest's transport-neutral Ingest API
// table (spec §6) over plain HTTP with JSON bodies. No authentication or
// transport encryption is applied here (spec §1 Non-goals); callers are
// expected to sit behind a reverse proxy that handles both.
package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/ingest"
	"github.com/zidek-labs/bellrock/internal/model"
)

// NewMux builds the HTTP routing table for svc, one handler per Ingest API
// call, using Go's pattern-matching ServeMux (method + path, no router
// dependency — nothing in the retrieved pack ships a generated stub to
// imitate for this transport).
func NewMux(svc *ingest.Service, log *zap.Logger) *http.ServeMux {
	h := &handler{svc: svc, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/users", h.registerUser)
	mux.HandleFunc("POST /v1/users/batch", h.registerUsers)
	mux.HandleFunc("POST /v1/users/{uid}/renew-key", h.renewKey)
	mux.HandleFunc("DELETE /v1/users/{uid}", h.deleteUser)
	mux.HandleFunc("POST /v1/peers", h.addPeer)
	mux.HandleFunc("DELETE /v1/peers", h.deletePeer)
	mux.HandleFunc("POST /v1/locations", h.addLocation)
	mux.HandleFunc("POST /v1/locations/batch", h.addLocations)
	mux.HandleFunc("POST /v1/locations/prune", h.pruneLocations)
	mux.HandleFunc("POST /v1/observations", h.submitObservations)
	return mux
}

type handler struct {
	svc *ingest.Service
	log *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrIntegrity):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func uidHex(u model.UID) string { return hex.EncodeToString(u[:]) }

func keyHex(k model.Key) string { return hex.EncodeToString(k[:]) }

func parseUID(s string) (model.UID, error) {
	var uid model.UID
	if err := decodeFixed(uid[:], s); err != nil {
		return model.UID{}, fmt.Errorf("malformed uid: %w", err)
	}
	return uid, nil
}

func parseAID(s string) (model.AID, error) {
	var aid model.AID
	if err := decodeFixed(aid[:], s); err != nil {
		return model.AID{}, fmt.Errorf("malformed aid: %w", err)
	}
	return aid, nil
}

// decodeFixed hex-decodes s into dst, requiring an exact length match —
// encoding/hex.Decode alone permits a short src to leave dst's tail zeroed.
func decodeFixed(dst []byte, s string) error {
	if len(s) != len(dst)*2 {
		return errors.New("wrong length")
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

type registerUserResponse struct {
	UID string `json:"uid"`
	Key string `json:"key"`
}

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	uid, key, err := h.svc.RegisterUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerUserResponse{UID: uidHex(uid), Key: keyHex(key)})
}

func (h *handler) registerUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	uids, keys, err := h.svc.RegisterUsers(r.Context(), req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]registerUserResponse, len(uids))
	for i := range uids {
		resp[i] = registerUserResponse{UID: uidHex(uids[i]), Key: keyHex(keys[i])}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) renewKey(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUID(r.PathValue("uid"))
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := h.svc.RenewKey(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": keyHex(key)})
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUID(r.PathValue("uid"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.DeleteUser(r.Context(), uid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type peerRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (h *handler) addPeer(w http.ResponseWriter, r *http.Request) {
	h.peerOp(w, r, h.svc.AddPeer, http.StatusCreated)
}

func (h *handler) deletePeer(w http.ResponseWriter, r *http.Request) {
	h.peerOp(w, r, h.svc.DeletePeer, http.StatusNoContent)
}

func (h *handler) peerOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, a, b model.UID) error, okStatus int) {
	var req peerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	a, err := parseUID(req.A)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := parseUID(req.B)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(r.Context(), a, b); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(okStatus)
}

type locationRequest struct {
	UID       string  `json:"uid"`
	Start     int64   `json:"start_unix"`
	End       int64   `json:"end_unix"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	CellTower uint64  `json:"cell_tower,omitempty"`
}

func toUserLocation(req locationRequest) (model.UserLocation, error) {
	uid, err := parseUID(req.UID)
	if err != nil {
		return model.UserLocation{}, err
	}
	precise := model.PreciseLocation{Lat: req.Lat, Lon: req.Lon}
	return model.UserLocation{
		UID:       uid,
		Start:     time.Unix(req.Start, 0).UTC(),
		End:       time.Unix(req.End, 0).UTC(),
		Coarse:    precise.ToCoarse(),
		CellTower: model.CellTowerID(req.CellTower),
	}, nil
}

func (h *handler) addLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	loc, err := toUserLocation(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.AddLocation(r.Context(), loc); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handler) addLocations(w http.ResponseWriter, r *http.Request) {
	var reqs []locationRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, err)
		return
	}
	locs := make([]model.UserLocation, 0, len(reqs))
	for _, req := range reqs {
		loc, err := toUserLocation(req)
		if err != nil {
			writeError(w, err)
			return
		}
		locs = append(locs, loc)
	}
	if err := h.svc.AddLocations(r.Context(), locs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// pruneLocations triggers the retention sweep (spec §3's "pruned on UID
// deletion or retention sweep"): every stored location interval that ended
// before the given cutoff is deleted. Nothing calls this on a schedule —
// the sweep is operator-triggered, not a background job (spec §1 Non-goals:
// no scheduled anything beyond what the spec names).
func (h *handler) pruneLocations(w http.ResponseWriter, r *http.Request) {
	beforeStr := r.URL.Query().Get("before_unix")
	before, err := strconv.ParseInt(beforeStr, 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("malformed before_unix: %w", err))
		return
	}
	n, err := h.svc.PruneLocations(r.Context(), time.Unix(before, 0).UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"pruned": n})
}

type observationRequest struct {
	AID          string  `json:"aid"`
	TimeUnix     int64   `json:"time_unix"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	LocationName string  `json:"location_name,omitempty"`
}

type submitObservationsRequest struct {
	Observer     string               `json:"observer"`
	Observations []observationRequest `json:"observations"`
}

func (h *handler) submitObservations(w http.ResponseWriter, r *http.Request) {
	var req submitObservationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	observer, err := parseUID(req.Observer)
	if err != nil {
		writeError(w, err)
		return
	}

	list := make([]model.Observation, 0, len(req.Observations))
	for _, o := range req.Observations {
		aid, err := parseAID(o.AID)
		if err != nil {
			writeError(w, err)
			return
		}
		list = append(list, model.Observation{
			Observer:     observer,
			AID:          aid,
			Time:         time.Unix(o.TimeUnix, 0).UTC(),
			Location:     model.PreciseLocation{Lat: o.Lat, Lon: o.Lon},
			LocationName: o.LocationName,
		})
	}

	batch := &model.Observations{Observer: observer, List: list}
	resolved, err := h.svc.SubmitObservations(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"resolved": resolved})
}
