package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/careercompass/internal/dashboard"
	"github.com/pavelanni/careercompass/internal/handler"
	appI18n "github.com/pavelanni/careercompass/internal/i18n"
	"github.com/pavelanni/careercompass/internal/identity"
	"github.com/pavelanni/careercompass/internal/llm"
	"github.com/pavelanni/careercompass/internal/locator"
	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/store"
)

// envAliases are extra environment names accepted for a key, after the
// COMPASS_ prefixed one.
var envAliases = map[string][]string{
	"llm-key":   {"GEMINI_API_KEY"},
	"llm-model": {"GENKIT_MODEL"},
	"maps-key":  {"GEOAPIFY_API_KEY", "NEXT_PUBLIC_GEOAPIFY_API_KEY"},
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "compass",
		Short: "Career Compass: aptitude quiz, career simulation and reports",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `compass --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "compass.db", "SQLite database path")
	f.String("llm-url", llm.DefaultBaseURL, "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM (or GEMINI_API_KEY); empty disables AI features")
	f.String("llm-model", llm.DefaultModel, "LLM model name (or GENKIT_MODEL)")
	f.String("maps-key", "", "Geoapify API key for the college map (or GEOAPIFY_API_KEY)")
	f.Int("final-turn", llm.DefaultFinalTurn, "Model turns after which a simulation concludes")
	f.Duration("transient-ttl", time.Hour, "How long a finished quiz waits for the dashboard")
	f.Duration("session-ttl", identity.DefaultSessionTTL, "How long a sign-in stays valid")
	f.StringP("lang", "l", "en", "Fallback UI language (en, hi)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /compass)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set COMPASS_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export finished explorations as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "compass.db", "SQLite database path")
	f.String("stream", "", "Only export this career stream")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper
// instance. A .env file in the working directory is loaded first; it never
// overrides variables already set.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error reading .env", "error", err)
	}

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COMPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		if cmd.Flags().Lookup(key) == nil {
			continue
		}
		names := append([]string{"COMPASS_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))}, aliases...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	v.SetConfigName("compass")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/compass")
	v.AddConfigPath("/etc/compass")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredTransient(); err != nil {
		slog.Warn("failed to clean up transient entries", "error", err)
	}
	if n, err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up sessions", "error", err)
	} else if n > 0 {
		slog.Info("removed expired sessions", "count", n)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient, err := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetInt("final-turn"),
	)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if err := llmClient.Configured(); err != nil {
		slog.Warn("AI features disabled", "error", err)
	} else if err := pingLLM(llmClient); err != nil {
		slog.Warn("LLM health check failed", "url", v.GetString("llm-url"), "model", llmClient.Model(), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", llmClient.Model())
	}

	maps := locator.New(v.GetString("maps-key"))
	if err := maps.Configured(); err != nil {
		slog.Warn("college map disabled", "error", err)
	}

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		TransientTTL:  v.GetDuration("transient-ttl"),
	}

	provider := identity.New(db, v.GetDuration("session-ttl"))
	results := store.NewQuizResults(db, cfg.TransientTTL)
	registry := dashboard.NewRegistry(dashboard.Deps{
		Gateway:      llmClient,
		Results:      results,
		Explorations: db,
		Identity:     provider,
	})
	defer registry.Watch(provider)()

	h, err := handler.New(handler.Deps{
		Store:      db,
		Identity:   provider,
		Results:    results,
		Dashboards: registry,
		Locator:    maps,
	}, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", llmClient.Model(),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"languages", appI18n.Languages(),
		"final_turn", llmClient.FinalTurn(),
		"transient_ttl", cfg.TransientTTL,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func pingLLM(c *llm.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Ping(ctx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportExplorations(v.GetString("stream"))
	if err != nil {
		return fmt.Errorf("export explorations: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported explorations", "count", export.Count, "output", outPath)
	return nil
}

// seedAdmin creates the admin account on first start. Without a password
// the admin surface stays unavailable; students are unaffected.
func seedAdmin(db *store.Store, password string) error {
	count, err := db.CountUsersByRole(model.UserRoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		slog.Warn("no admin account: set --admin-password or COMPASS_ADMIN_PASSWORD to create one")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
