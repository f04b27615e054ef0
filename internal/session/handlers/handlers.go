package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/prefs"
	"livemap/internal/selection"
	"livemap/internal/session"
	"livemap/internal/shared/errors"
	"livemap/internal/shared/response"
)

const maxBody = 1 << 20

type SessionHandler struct {
	session *session.Session
}

func NewSessionHandler(s *session.Session) *SessionHandler {
	return &SessionHandler{session: s}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.WrapValidation("invalid JSON in request body", err)
	}
	return nil
}

func (h *SessionHandler) Entities(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "entities")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	fc, err := h.session.Snapshot(r.Context())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, fc)
}

func (h *SessionHandler) Viewport(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "viewport")

	switch r.Method {
	case http.MethodGet:
		v, err := h.session.Viewport(r.Context())
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, v)

	case http.MethodPut:
		var v session.Viewport
		if err := decode(w, r, &v); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		report, err := h.session.SetViewport(r.Context(), v)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, report)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *SessionHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "preferences")

	switch r.Method {
	case http.MethodGet:
		p, err := h.session.Preferences(r.Context())
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, p)

	case http.MethodPut:
		var p prefs.Preferences
		if err := decode(w, r, &p); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		saved, err := h.session.UpdatePreferences(r.Context(), p)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, saved)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *SessionHandler) Scout(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "scout")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	c, err := h.session.Scout(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, c)
}

func (h *SessionHandler) Hide(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "hide_creature")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	if err := h.session.HideCreature(r.Context(), r.PathValue("id")); err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.NoContent(w)
}

func (h *SessionHandler) Location(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "location")

	switch r.Method {
	case http.MethodGet:
		p, err := h.session.Location(r.Context())
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, p)

	case http.MethodPost:
		var p geo.LatLng
		if err := decode(w, r, &p); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		loc, err := h.session.ChangeLocation(r.Context(), p)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, loc)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

type searchRequest struct {
	Running bool `json:"running"`
}

func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "search")

	switch r.Method {
	case http.MethodGet:
		st, err := h.session.SearchStatus(r.Context())
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, st)

	case http.MethodPost:
		var req searchRequest
		if err := decode(w, r, &req); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		st, err := h.session.SetSearch(r.Context(), req.Running)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, st)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *SessionHandler) PointHistory(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "point_history")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	history, err := h.session.PointHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, history)
}

// AreaHistory accepts optional swLat, swLng, neLat and neLng query
// parameters; without them the current viewport is used.
func (h *SessionHandler) AreaHistory(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "area_history")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	b, err := parseBounds(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	points, err := h.session.AreaHistory(r.Context(), b)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, points)
}

func parseBounds(r *http.Request) (geo.Bounds, error) {
	q := r.URL.Query()
	names := []string{"swLat", "swLng", "neLat", "neLng"}
	if q.Get(names[0]) == "" {
		return geo.Bounds{}, nil
	}

	var v [4]float64
	for i, name := range names {
		f, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			return geo.Bounds{}, errors.Validationf("query parameter %s must be a number", name)
		}
		v[i] = f
	}
	b := geo.NewBounds(geo.LatLng{Lat: v[0], Lng: v[1]}, geo.LatLng{Lat: v[2], Lng: v[3]})
	if b.IsEmpty() {
		return geo.Bounds{}, errors.Validation("bounds are empty")
	}
	return b, nil
}

func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "stats")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	sum, err := h.session.Stats(r.Context())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, sum)
}

type selectRequest struct {
	Category entity.Category `json:"category"`
	Key      string          `json:"key"`
	Event    string          `json:"event"`
}

type selectResponse struct {
	State   string `json:"state"`
	Visible bool   `json:"visible"`
}

func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "select")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req selectRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}
	ev, err := selection.ParseEvent(req.Event)
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid selection event", err))
		return
	}

	state, err := h.session.Select(r.Context(), req.Category, req.Key, ev)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, selectResponse{State: state.String(), Visible: state.Visible()})
}

func (h *SessionHandler) Notices(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "notices")

	switch r.Method {
	case http.MethodGet:
		notices, err := h.session.Notices(r.Context())
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusOK, notices)

	case http.MethodDelete:
		if err := h.session.DismissNotice(r.Context(), r.PathValue("id")); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.NoContent(w)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "sync")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	st, err := h.session.SyncState(r.Context())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, st)
}
