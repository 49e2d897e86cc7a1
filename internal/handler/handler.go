package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pavelanni/careercompass/internal/dashboard"
	appI18n "github.com/pavelanni/careercompass/internal/i18n"
	"github.com/pavelanni/careercompass/internal/identity"
	"github.com/pavelanni/careercompass/internal/locator"
	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/quiz"
	"github.com/pavelanni/careercompass/internal/store"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Deps are the services the HTTP layer needs.
type Deps struct {
	Store      *store.Store
	Identity   *identity.Provider
	Results    *store.QuizResults
	Dashboards *dashboard.Registry
	Locator    *locator.Locator
	// Now is the quiz clock; nil means time.Now.
	Now func() time.Time
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	identity   *identity.Provider
	results    *store.QuizResults
	dashboards *dashboard.Registry
	locator    *locator.Locator
	now        func() time.Time
	config     model.AppConfig

	mu      sync.Mutex
	quizzes map[string]*quiz.Session
}

// New creates a new Handler. Quiz sessions are dropped when their user
// signs out.
func New(d Deps, cfg model.AppConfig) (*Handler, error) {
	if d.Store == nil || d.Identity == nil || d.Results == nil || d.Dashboards == nil {
		return nil, errors.New("handler: store, identity, results and dashboards are required")
	}
	if d.Locator == nil {
		d.Locator = locator.New("")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{
		store:      d.Store,
		identity:   d.Identity,
		results:    d.Results,
		dashboards: d.Dashboards,
		locator:    d.Locator,
		now:        d.Now,
		config:     cfg,
		quizzes:    make(map[string]*quiz.Session),
	}
	d.Identity.OnAuthStateChange(func(e identity.Event) {
		if !e.SignedIn {
			h.dropQuiz(e.UserID)
		}
	})
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)

		r.Get("/auth/csrf", h.handleCSRF)
		r.Post("/auth/signin", h.handleSignIn)
		r.Post("/auth/signout", h.handleSignOut)
		r.Post("/admin/login", h.handleAdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/quiz/start", h.handleQuizStart)
			r.Get("/quiz", h.handleQuizCurrent)
			r.Post("/quiz/answer", h.handleQuizAnswer)
			r.Post("/quiz/back", h.handleQuizBack)

			r.Group(func(r chi.Router) {
				r.Use(h.abandonQuiz)

				r.Get("/dashboard", h.handleDashboard)
				r.Post("/dashboard/analyze", h.handleAnalyze)
				r.Post("/dashboard/stream", h.handleSelectStream)
				r.Get("/dashboard/roadmap/{stream}", h.handleRoadmap)
				r.Post("/dashboard/simulation/begin", h.handleBeginSimulation)
				r.Post("/dashboard/simulation/choose", h.handleChoose)
				r.Post("/dashboard/simulation/feedback", h.handleFeedback)
				r.Post("/dashboard/report", h.handleReport)
				r.Get("/dashboard/report/download", h.handleReportDownload)
				r.Get("/dashboard/report/chart.png", h.handleReportChart)
				r.Get("/dashboard/colleges", h.handleColleges)
				r.Post("/dashboard/exit", h.handleExit)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/admin/explorations", h.handleAdminExplorations)
			})
		})
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the body of every non-2xx JSON answer.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// failureMessages maps gateway operations to their user-facing message.
var failureMessages = map[string]string{
	"analyze":  "AnalysisFailed",
	"simulate": "SimulationFailed",
	"report":   "ReportFailed",
}

// writeError maps a domain error to a status and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		me *model.ModelError
		ae *model.AuthError
		ce *model.ConfigurationError
		se *model.StateError
	)

	switch {
	case errors.As(err, &me):
		msg, ok := failureMessages[me.Op]
		if !ok {
			msg = "AnalysisFailed"
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: appI18n.T(ctx, msg), Code: string(me.Kind), Retryable: true,
		})
	case errors.As(err, &ae):
		msg := "AuthFailed"
		if errors.Is(err, identity.ErrBadPassword) {
			msg = "LoginError"
		}
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: appI18n.T(ctx, msg), Code: "auth", Redirect: h.path("/"),
		})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: appI18n.T(ctx, "LocatorDisabled"), Code: "not_configured",
		})
	case errors.Is(err, model.ErrNoQuizResult):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: appI18n.T(ctx, "QuizRequired"), Code: "no_quiz_result", Redirect: h.path("/quiz"),
		})
	case errors.Is(err, model.ErrCallPending):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: appI18n.T(ctx, "RequestPending"), Code: "pending", Retryable: true,
		})
	case errors.Is(err, model.ErrUnknownStream):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: appI18n.T(ctx, "UnknownStream"), Code: "unknown_stream",
		})
	case errors.Is(err, model.ErrDashboardClosed):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: appI18n.T(ctx, "SignInRequired"), Code: "closed", Redirect: h.path("/"),
		})
	case errors.As(err, &se), errors.Is(err, quiz.ErrNotStarted), errors.Is(err, quiz.ErrQuizComplete):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: appI18n.T(ctx, "ActionNotAllowed"), Code: "state",
		})
	case errors.Is(err, quiz.ErrBadOption):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: appI18n.T(ctx, "ActionNotAllowed"), Code: "bad_option",
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: err.Error(), Code: "cancelled", Retryable: true,
		})
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
}
