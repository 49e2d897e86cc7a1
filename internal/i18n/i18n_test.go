package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "AppTitle", "Career Compass"},
		{"en", "Explorer", "Explorer"},
		{"hi", "AppTitle", "करियर कम्पास"},
		{"hi", "Explorer", "खोजकर्ता"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestGreeting(t *testing.T) {
	ctx := initLang(t, "en")

	got := Greeting(ctx, "Asha")
	if got != "Welcome, Asha. Here is your personalized path forward." {
		t.Errorf("Greeting(Asha) = %q", got)
	}

	got = Greeting(ctx, "  ")
	if got != "Welcome, Explorer. Here is your personalized path forward." {
		t.Errorf("Greeting(blank) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "ExplorationsRecorded", 1); got != "1 exploration recorded." {
		t.Errorf("Tp(ExplorationsRecorded, 1) = %q", got)
	}
	if got := Tp(ctx, "ExplorationsRecorded", 5); got != "5 explorations recorded." {
		t.Errorf("Tp(ExplorationsRecorded, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuestionProgress", map[string]any{"Current": 3, "Total": 8})
	if got != "Question 3 of 8" {
		t.Errorf("Td(QuestionProgress) = %q, want 'Question 3 of 8'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNegotiate(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"hi-IN,hi;q=0.9,en;q=0.8", "hi"},
		{"en-GB", "en"},
		{"fr-FR", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := Negotiate(tt.header); got != tt.want {
				t.Errorf("Negotiate(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Explorer")
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=hi", nil)
	req.Header.Set("Accept-Language", "en")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "खोजकर्ता" {
		t.Errorf("translated = %q, want Hindi", got)
	}
	if rec.Header().Get("Content-Language") != "hi" {
		t.Errorf("Content-Language = %q", rec.Header().Get("Content-Language"))
	}
}
