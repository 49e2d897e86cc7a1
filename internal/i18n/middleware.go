package i18n

import "net/http"

// Middleware injects a localizer into every request context. The ?lang=
// query parameter wins over Accept-Language; both fall back to the
// configured language.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := Negotiate(r.Header.Get("Accept-Language"))
			if q := r.URL.Query().Get("lang"); q != "" {
				lang = Negotiate(q)
			}
			w.Header().Set("Content-Language", lang)
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
