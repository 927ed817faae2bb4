package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// KnowledgeStore reads and replaces clinic knowledge bases.
type KnowledgeStore interface {
	Get(ctx context.Context, orgID string) ([]KnowledgeEntry, error)
	Replace(ctx context.Context, orgID string, entries []KnowledgeEntry) (int64, error)
	Version(ctx context.Context, orgID string) (int64, error)
	Delete(ctx context.Context, orgID string) error
}

// KnowledgeHandler exposes admin endpoints for clinic knowledge bases.
type KnowledgeHandler struct {
	store    KnowledgeStore
	fallback *KnowledgeBase
	logger   *logging.Logger

	// Replacements must render against the clinic's profile.
	profiles        ProfileSource
	fallbackProfile *clinic.Profile
}

// NewKnowledgeHandler creates the handler. fallback is reported for clinics
// without a stored knowledge base; nil means DefaultKnowledge.
func NewKnowledgeHandler(store KnowledgeStore, fallback *KnowledgeBase, logger *logging.Logger) *KnowledgeHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if fallback == nil {
		kb, err := NewKnowledgeBase(DefaultKnowledge())
		if err != nil {
			panic(err)
		}
		fallback = kb
	}
	return &KnowledgeHandler{store: store, fallback: fallback, logger: logger}
}

// WithProfiles makes replacements render against the clinic's stored profile,
// or fallback when none is stored. Without it the built-in profile is used.
func (h *KnowledgeHandler) WithProfiles(profiles ProfileSource, fallback clinic.Profile) *KnowledgeHandler {
	h.profiles = profiles
	h.fallbackProfile = &fallback
	return h
}

func (h *KnowledgeHandler) profile(ctx context.Context, orgID string) (clinic.Profile, error) {
	fallback := clinic.DefaultProfile(orgID)
	if h.fallbackProfile != nil {
		fallback = *h.fallbackProfile
		fallback.OrgID = orgID
	}
	if h.profiles == nil {
		return fallback, nil
	}
	return h.profiles.GetOrDefault(ctx, orgID, fallback)
}

// Routes returns a chi router with knowledge admin routes.
func (h *KnowledgeHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{orgID}", h.GetKnowledge)
	r.Put("/{orgID}", h.ReplaceKnowledge)
	r.Delete("/{orgID}", h.DeleteKnowledge)
	return r
}

// KnowledgeResponse describes a clinic's active knowledge base.
type KnowledgeResponse struct {
	OrgID    string           `json:"org_id"`
	Source   string           `json:"source"` // "stored" or "default"
	Version  int64            `json:"version"`
	Topics   []KnowledgeEntry `json:"topics"`
	Shadowed []Shadow         `json:"shadowed,omitempty"`
}

// ReplaceKnowledgeRequest is the body of PUT /admin/knowledge/{orgID}.
type ReplaceKnowledgeRequest struct {
	Topics []KnowledgeEntry `json:"topics"`
}

// GetKnowledge returns the active topics for an org.
// GET /admin/knowledge/{orgID}
func (h *KnowledgeHandler) GetKnowledge(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	resp := KnowledgeResponse{OrgID: orgID, Source: "default"}
	kb := h.fallback

	if h.store != nil {
		entries, err := h.store.Get(r.Context(), orgID)
		switch {
		case err == nil:
			stored, verr := NewKnowledgeBase(entries)
			if verr != nil {
				h.logger.Warn("stored knowledge invalid", "org_id", orgID, "error", verr)
				break
			}
			kb = stored
			resp.Source = "stored"
		case errors.Is(err, ErrKnowledgeNotFound):
		default:
			h.logger.Error("failed to get knowledge", "org_id", orgID, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			return
		}
		if version, err := h.store.Version(r.Context(), orgID); err == nil {
			resp.Version = version
		}
	}

	resp.Topics = kb.Entries()
	resp.Shadowed = kb.Shadowed()
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// ReplaceKnowledge validates and stores a new knowledge base for an org.
// PUT /admin/knowledge/{orgID}
func (h *KnowledgeHandler) ReplaceKnowledge(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if h.store == nil {
		http.Error(w, `{"error": "knowledge storage not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req ReplaceKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	kb, err := NewKnowledgeBase(req.Topics)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	profile, err := h.profile(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to get clinic profile", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if _, err := kb.Bind(profile); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	version, err := h.store.Replace(r.Context(), orgID, req.Topics)
	if err != nil {
		if errors.Is(err, ErrInvalidKnowledge) {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("failed to replace knowledge", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "failed to save knowledge"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("knowledge replaced", "org_id", orgID, "version", version, "topics", kb.Len())
	writeJSON(w, h.logger, http.StatusOK, KnowledgeResponse{
		OrgID:    orgID,
		Source:   "stored",
		Version:  version,
		Topics:   kb.Entries(),
		Shadowed: kb.Shadowed(),
	})
}

// DeleteKnowledge drops an org's stored knowledge base.
// DELETE /admin/knowledge/{orgID}
func (h *KnowledgeHandler) DeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if h.store == nil {
		http.Error(w, `{"error": "knowledge storage not configured"}`, http.StatusServiceUnavailable)
		return
	}
	if err := h.store.Delete(r.Context(), orgID); err != nil {
		h.logger.Error("failed to delete knowledge", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "failed to delete knowledge"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
