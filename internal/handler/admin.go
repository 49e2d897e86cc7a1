package handler

import (
	"net/http"
	"strings"

	appI18n "github.com/pavelanni/careercompass/internal/i18n"
	"github.com/pavelanni/careercompass/internal/model"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type explorationsResponse struct {
	model.ExplorationExport
	Summary string `json:"summary"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	id, user, err := h.identity.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user.Role != model.UserRoleAdmin {
		_ = h.identity.SignOut(r.Context(), id.Token)
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Code: "forbidden"})
		return
	}

	h.setSessionCookie(w, id.Token)
	writeJSON(w, http.StatusOK, map[string]string{
		"displayName": id.DisplayName,
		"next":        h.path("/admin/explorations"),
	})
}

func (h *Handler) handleAdminExplorations(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportExplorations(r.URL.Query().Get("stream"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explorationsResponse{
		ExplorationExport: export,
		Summary:           appI18n.Tp(r.Context(), "ExplorationsRecorded", export.Count),
	})
}
