package handler

import (
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/careercompass/internal/i18n"
	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/quiz"
)

type quizView struct {
	Question quiz.Question `json:"question"`
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Progress string        `json:"progress"`
}

type quizAnswerRequest struct {
	Option string `json:"option"`
	Skip   bool   `json:"skip"`
}

type quizDoneResponse struct {
	Done    bool             `json:"done"`
	Message string           `json:"message"`
	Result  model.QuizResult `json:"result"`
	Next    string           `json:"next"`
}

func (h *Handler) quizFor(userID string) *quiz.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.quizzes[userID]
}

func (h *Handler) dropQuiz(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.quizzes, userID)
}

// questionView snapshots the current question. Callers hold h.mu.
func questionView(r *http.Request, s *quiz.Session) quizView {
	return quizView{
		Question: s.Current(),
		Index:    s.Index(),
		Total:    quiz.Size,
		Progress: appI18n.Td(r.Context(), "QuestionProgress", map[string]any{
			"Current": s.Index() + 1,
			"Total":   quiz.Size,
		}),
	}
}

// abandonQuiz discards the user's unfinished quiz when they leave it for
// another page. A later GET /quiz answers ErrNotStarted until /quiz/start.
func (h *Handler) abandonQuiz(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := model.UserFromContext(r.Context()); user != nil {
			h.dropQuiz(user.ID)
		}
		next.ServeHTTP(w, r)
	})
}

// handleQuizStart replaces any running quiz with a fresh one at question 1.
func (h *Handler) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	s := quiz.New(h.now)

	h.mu.Lock()
	h.quizzes[user.ID] = s
	s.Start()
	view := questionView(r, s)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleQuizCurrent(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	s := h.quizFor(user.ID)
	if s == nil {
		h.writeError(w, r, quiz.ErrNotStarted)
		return
	}

	h.mu.Lock()
	done := s.Done()
	view := questionView(r, s)
	h.mu.Unlock()

	if done {
		h.writeError(w, r, quiz.ErrQuizComplete)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	var req quizAnswerRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if !req.Skip && req.Option == "" {
		badRequest(w, errors.New("option or skip is required"))
		return
	}

	user := model.UserFromContext(r.Context())
	s := h.quizFor(user.ID)
	if s == nil {
		h.writeError(w, r, quiz.ErrNotStarted)
		return
	}

	h.mu.Lock()
	if h.quizzes[user.ID] != s {
		h.mu.Unlock()
		h.writeError(w, r, quiz.ErrNotStarted)
		return
	}
	var (
		result *model.QuizResult
		err    error
	)
	if req.Skip {
		result, err = s.Skip()
	} else {
		result, err = s.Answer(req.Option)
	}
	if err != nil {
		h.mu.Unlock()
		h.writeError(w, r, err)
		return
	}
	if result == nil {
		view := questionView(r, s)
		h.mu.Unlock()
		writeJSON(w, http.StatusOK, view)
		return
	}
	delete(h.quizzes, user.ID)
	h.mu.Unlock()

	if err := h.results.Save(user.ID, *result); err != nil {
		h.writeError(w, r, err)
		return
	}
	// A new result starts a new dashboard.
	h.dashboards.Reset(model.Identity{UserID: user.ID, DisplayName: user.DisplayName})
	slog.Info("quiz completed", "user_id", user.ID, "time_taken", result.TimeTaken)

	writeJSON(w, http.StatusOK, quizDoneResponse{
		Done:    true,
		Message: appI18n.T(r.Context(), "QuizComplete"),
		Result:  *result,
		Next:    h.path("/dashboard"),
	})
}

func (h *Handler) handleQuizBack(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	s := h.quizFor(user.ID)
	if s == nil {
		h.writeError(w, r, quiz.ErrNotStarted)
		return
	}

	h.mu.Lock()
	done := s.Done()
	if !done {
		s.Back()
	}
	view := questionView(r, s)
	h.mu.Unlock()

	if done {
		h.writeError(w, r, quiz.ErrQuizComplete)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
