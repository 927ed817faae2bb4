package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// ProfileStore reads and writes clinic profiles.
type ProfileStore interface {
	GetOrDefault(ctx context.Context, orgID string, fallback Profile) (Profile, error)
	Set(ctx context.Context, p *Profile) error
}

// Handler provides HTTP endpoints for clinic profile management.
type Handler struct {
	store    ProfileStore
	fallback Profile
	logger   *logging.Logger
}

// NewHandler creates a new clinic profile HTTP handler. fallback is served for
// orgs with no stored profile.
func NewHandler(store ProfileStore, fallback Profile, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		fallback: fallback,
		logger:   logger,
	}
}

// Routes returns a chi router with clinic admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{orgID}/profile", h.GetProfile)
	r.Put("/{orgID}/profile", h.UpdateProfile)
	return r
}

// GetProfile returns the clinic profile for an org.
// GET /admin/clinics/{orgID}/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org_id required"}`, http.StatusBadRequest)
		return
	}

	p, err := h.lookup(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to get clinic profile", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, p)
}

// UpdateProfileRequest is the request body for updating a clinic profile.
// Empty fields keep their current value.
type UpdateProfileRequest struct {
	Name            string `json:"name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	Address         string `json:"address,omitempty"`
	Hours           string `json:"hours,omitempty"`
	OutreachMessage string `json:"outreach_message,omitempty"`
	MapURL          string `json:"map_url,omitempty"`
	ContactPath     string `json:"contact_path,omitempty"`
}

// UpdateProfile creates or updates the clinic profile for an org.
// PUT /admin/clinics/{orgID}/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org_id required"}`, http.StatusBadRequest)
		return
	}
	if h.store == nil {
		http.Error(w, `{"error": "profile storage not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	current, err := h.lookup(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to get clinic profile", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	updated := current.Merge(Profile{
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		Address:         req.Address,
		Hours:           req.Hours,
		OutreachMessage: req.OutreachMessage,
		MapURL:          req.MapURL,
		ContactPath:     req.ContactPath,
	})
	updated.OrgID = orgID

	if err := h.store.Set(r.Context(), &updated); err != nil {
		if errors.Is(err, ErrInvalidProfile) {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("failed to save clinic profile", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "failed to save profile"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic profile updated", "org_id", orgID, "name", updated.Name)
	writeJSON(w, h.logger, http.StatusOK, updated)
}

func (h *Handler) lookup(ctx context.Context, orgID string) (Profile, error) {
	if h.store == nil {
		p := h.fallback
		p.OrgID = orgID
		return p, nil
	}
	return h.store.GetOrDefault(ctx, orgID, h.fallback)
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
