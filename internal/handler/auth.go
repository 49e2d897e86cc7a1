package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/pavelanni/careercompass/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return r, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(csrfHeaderName, token)
	return r.WithContext(model.ContextWithCSRFToken(r.Context(), token)), true
}

// csrfMiddleware implements double-submit tokens: safe requests get a fresh
// cookie, unsafe ones must echo the cookie in the X-CSRF-Token header or a
// csrf_token form field.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			r, ok := h.setCSRFCookie(w, r)
			if ok {
				next.ServeHTTP(w, r)
			}
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "csrf token missing", Code: "csrf"})
			return
		}

		sent := r.Header.Get(csrfHeaderName)
		if sent == "" {
			sent = r.FormValue("csrf_token")
		}
		if sent == "" {
			slog.Warn("CSRF request token missing")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "csrf token missing", Code: "csrf"})
			return
		}
		if len(sent) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "invalid csrf token", Code: "csrf"})
			return
		}

		r, ok := h.setCSRFCookie(w, r)
		if ok {
			next.ServeHTTP(w, r)
		}
	})
}

// requireAuth is middleware that resolves the session cookie to a user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		token := ""
		if err == nil {
			token = cookie.Value
		}
		user, err := h.identity.Resolve(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "auth"})
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Code: "forbidden"})
		})
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": model.CSRFTokenFromContext(r.Context())})
}

type signInRequest struct {
	Name string `json:"name"`
}

type signInResponse struct {
	model.Identity
	Greeting string `json:"greeting"`
	Next     string `json:"next"`
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	id, err := h.identity.SignIn(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, id.Token)
	writeJSON(w, http.StatusOK, signInResponse{
		Identity: id,
		Greeting: greeting(r, id.DisplayName),
		Next:     h.path("/quiz"),
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.identity.SignOut(r.Context(), token); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"next": h.path("/")})
}
