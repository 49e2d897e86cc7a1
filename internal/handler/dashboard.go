package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/careercompass/internal/dashboard"
	appI18n "github.com/pavelanni/careercompass/internal/i18n"
	"github.com/pavelanni/careercompass/internal/locator"
	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/report"
	"github.com/pavelanni/careercompass/internal/roadmap"

	"github.com/go-chi/chi/v5"
)

type dashboardResponse struct {
	dashboard.View
	Greeting string `json:"greeting"`
}

type streamRequest struct {
	Stream string `json:"stream"`
}

type chooseRequest struct {
	Option string `json:"option"`
}

type feedbackRequest struct {
	Feedback model.Feedback `json:"feedback"`
}

func greeting(r *http.Request, name string) string {
	return appI18n.Greeting(r.Context(), name)
}

func (h *Handler) dashboardFor(r *http.Request) *dashboard.Dashboard {
	user := model.UserFromContext(r.Context())
	return h.dashboards.Get(model.Identity{UserID: user.ID, DisplayName: user.DisplayName})
}

// respond writes the view, or the error with the view's status mapping.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v dashboard.View, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{View: v, Greeting: greeting(r, v.DisplayName)})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v, err := h.dashboardFor(r).Open(r.Context())
	h.respond(w, r, v, err)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	d := h.dashboardFor(r)
	if d.Phase() == model.DashboardLoading {
		if _, err := d.Open(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	v, err := d.Analyze(r.Context())
	h.respond(w, r, v, err)
}

func (h *Handler) handleSelectStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	v, err := h.dashboardFor(r).SelectStream(req.Stream)
	h.respond(w, r, v, err)
}

func (h *Handler) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	stream := chi.URLParam(r, "stream")
	rm, ok := roadmap.Lookup(stream)
	if !ok {
		h.writeError(w, r, model.ErrUnknownStream)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (h *Handler) handleBeginSimulation(w http.ResponseWriter, r *http.Request) {
	v, err := h.dashboardFor(r).BeginSimulation(r.Context())
	h.respond(w, r, v, err)
}

func (h *Handler) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req chooseRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	v, err := h.dashboardFor(r).Choose(r.Context(), req.Option)
	h.respond(w, r, v, err)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	v, err := h.dashboardFor(r).SetFeedback(r.Context(), req.Feedback)
	h.respond(w, r, v, err)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	v, err := h.dashboardFor(r).Report(r.Context())
	h.respond(w, r, v, err)
}

func (h *Handler) handleReportChart(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := h.dashboardFor(r).LastReport()
	if !ok {
		h.writeError(w, r, model.ErrWrongPhase)
		return
	}
	png, err := report.Chart(rep)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		slog.Error("write chart", "error", err)
	}
}

func (h *Handler) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	stream, rep, ok := h.dashboardFor(r).LastReport()
	if !ok {
		h.writeError(w, r, model.ErrWrongPhase)
		return
	}
	png, err := report.Chart(rep)
	if err != nil {
		// The page is still useful without the chart.
		slog.Warn("chart rendering failed", "error", err)
		png = nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(stream)))
	if err := report.Page(stream, rep, png).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func reportFilename(stream string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(stream))
	return "career-report-" + strings.Trim(slug, "-") + ".html"
}

func (h *Handler) handleColleges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, err := h.locator.Nearby(locator.ParsePoint(q.Get("lat"), q.Get("lng")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	err := h.dashboardFor(r).Exit(r.Context(), sessionToken(r))
	h.clearSessionCookie(w)
	if err != nil {
		var ae *model.AuthError
		if errors.As(err, &ae) {
			h.writeError(w, r, err)
			return
		}
		slog.Error("exit cleanup failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"next": h.path("/")})
}
