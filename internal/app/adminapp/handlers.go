package adminapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
	modsvc "github.com/ivankudzin/wolfpost/internal/services/moderators"
)

// ModeratorDirectory is the slice of the moderators service the admin
// handlers consume.
type ModeratorDirectory interface {
	Add(ctx context.Context, telegramID int64, username, firstName string) (model.Moderator, error)
	Remove(ctx context.Context, telegramID int64) error
	SetActive(ctx context.Context, telegramID int64, active bool) error
	Get(ctx context.Context, telegramID int64) (model.Moderator, error)
	ListAll(ctx context.Context) ([]model.Moderator, error)
	Stats(ctx context.Context, telegramID int64) (pgrepo.ModeratorStats, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

type ModeratorHandler struct {
	moderators ModeratorDirectory
}

func NewModeratorHandler(moderators ModeratorDirectory) *ModeratorHandler {
	return &ModeratorHandler{moderators: moderators}
}

type moderatorResponse struct {
	TelegramID      int64     `json:"telegram_id"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	Active          bool      `json:"active"`
	AddedAt         time.Time `json:"added_at"`
	ModerationCount int       `json:"moderation_count"`
}

func moderatorToResponse(m model.Moderator) moderatorResponse {
	return moderatorResponse{
		TelegramID:      m.TelegramID,
		Username:        m.Username,
		FirstName:       m.FirstName,
		Active:          m.Active,
		AddedAt:         m.AddedAt,
		ModerationCount: m.ModerationCount,
	}
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *ModeratorHandler) List(w http.ResponseWriter, r *http.Request) {
	roster, err := h.moderators.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list moderators")
		return
	}
	out := make([]moderatorResponse, 0, len(roster))
	for _, m := range roster {
		out = append(out, moderatorToResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"moderators": out})
}

type createModeratorRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}

func (h *ModeratorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createModeratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TelegramID <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "telegram_id must be positive")
		return
	}

	created, err := h.moderators.Add(r.Context(), req.TelegramID, req.Username, req.FirstName)
	if err != nil {
		switch {
		case errors.Is(err, modsvc.ErrValidation):
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid moderator data")
		case errors.Is(err, modsvc.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "ALREADY_EXISTS", "moderator already registered")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to add moderator")
		}
		return
	}
	writeJSON(w, http.StatusCreated, moderatorToResponse(created))
}

func (h *ModeratorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := telegramIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid telegram id")
		return
	}
	if err := h.moderators.Remove(r.Context(), telegramID); err != nil {
		switch {
		case errors.Is(err, modsvc.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "moderator not found")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to remove moderator")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *ModeratorHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *ModeratorHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *ModeratorHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	telegramID, ok := telegramIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid telegram id")
		return
	}
	if err := h.moderators.SetActive(r.Context(), telegramID, active); err != nil {
		switch {
		case errors.Is(err, modsvc.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "moderator not found")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update moderator")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "active": active})
}

func (h *ModeratorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := telegramIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid telegram id")
		return
	}

	mod, err := h.moderators.Get(r.Context(), telegramID)
	if err != nil {
		switch {
		case errors.Is(err, modsvc.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "moderator not found")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load moderator")
		}
		return
	}

	stats, err := h.moderators.Stats(r.Context(), telegramID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load moderator stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"moderator": moderatorToResponse(mod),
		"stats": map[string]any{
			"total_decisions": stats.TotalDecisions,
			"approved":        stats.Approved,
			"rejected":        stats.Rejected,
			"blocked":         stats.Blocked,
		},
	})
}

func (h *ModeratorHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="moderators.csv"`)
	if err := h.moderators.ExportCSV(r.Context(), w); err != nil {
		// Headers are already out, the body may be partial.
		return
	}
}

func telegramIDFromRequest(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "telegramID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
