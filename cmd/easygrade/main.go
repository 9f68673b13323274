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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrbobgradebook/easygrade/internal/handler"
	appI18n "github.com/mrbobgradebook/easygrade/internal/i18n"
	"github.com/mrbobgradebook/easygrade/internal/llm"
	"github.com/mrbobgradebook/easygrade/internal/model"
	"github.com/mrbobgradebook/easygrade/internal/store"
	appSync "github.com/mrbobgradebook/easygrade/internal/sync"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "easygrade",
		Short: "Elementary school gradebook with weighted grading",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `easygrade --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gradebook server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "easygrade.db", "SQLite database path")
	f.StringSliceP("subjects", "s", model.DefaultSubjects, "Subject columns (repeatable)")
	f.Int("max-students", model.DefaultMaxStudents, "Roster size limit")
	f.Int("summative-weight", 0, "Summative percent for new gradebooks (0 = default 40)")
	f.Duration("save-delay", 2*time.Second, "Quiet period before edits are saved")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("llm-url", "", "OpenAI-compatible API base URL for comment drafts (empty = disabled)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set EASYGRADE_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a teacher's gradebook as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "easygrade.db", "SQLite database path")
	f.StringP("user", "u", "admin", "Username whose gradebook to export")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a teacher's gradebook from a JSON backup",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "easygrade.db", "SQLite database path")
	f.StringP("user", "u", "admin", "Username whose gradebook to replace")
	f.StringP("input", "i", "", "Backup file path (required)")
	f.StringSliceP("subjects", "s", model.DefaultSubjects, "Subject columns (repeatable)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("input")

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

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EASYGRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("easygrade")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/easygrade")
	v.AddConfigPath("/etc/easygrade")
	v.AddConfigPath("/data")
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

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	subjects := v.GetStringSlice("subjects")
	if len(subjects) == 0 {
		subjects = model.DefaultSubjects
	}

	cfg := model.Config{
		Subjects:      subjects,
		MaxStudents:   v.GetInt("max-students"),
		SaveDebounce:  v.GetDuration("save-delay"),
		SecureCookies: v.GetBool("secure-cookies"),
		Lang:          lang,

		DefaultSummative: v.GetInt("summative-weight"),
	}

	// Comment drafting is optional; without an endpoint the server runs
	// with the feature disabled.
	var llmClient *llm.Client
	if url := v.GetString("llm-url"); url != "" {
		llmClient = llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
		if err := llmClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
	}

	sessions := appSync.NewManager(db, cfg)
	defer sessions.Close()

	h := handler.New(db, sessions, llmClient, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"subjects", subjects,
		"max_students", cfg.MaxStudents,
		"save_delay", cfg.SaveDebounce,
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userID, err := resolveUser(db, v.GetString("user"))
	if err != nil {
		return err
	}

	payload, err := db.LoadDocument(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no gradebook stored for user %q", v.GetString("user"))
		}
		return fmt.Errorf("load gradebook: %w", err)
	}

	// Re-indent for a readable backup file.
	var ds model.Dataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		return fmt.Errorf("parse stored gradebook: %w", err)
	}
	data, err := json.MarshalIndent(ds, "", "  ")
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

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(v.GetString("input"))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	ds, err := model.ParseBackup(data)
	if err != nil {
		return fmt.Errorf("parse backup: %w", err)
	}

	subjects := v.GetStringSlice("subjects")
	if len(subjects) == 0 {
		subjects = model.DefaultSubjects
	}
	ds.Normalize(subjects)
	ds.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userID, err := resolveUser(db, v.GetString("user"))
	if err != nil {
		return err
	}

	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal gradebook: %w", err)
	}
	if err := db.SaveDocument(userID, payload); err != nil {
		return fmt.Errorf("save gradebook: %w", err)
	}

	slog.Info("restored gradebook",
		"user", v.GetString("user"),
		"students", len(ds.Students),
		"assignments", len(ds.Assignments),
	)
	return nil
}

func resolveUser(db *store.Store, username string) (string, error) {
	user, err := db.GetUserByUsername(username)
	if err != nil {
		return "", fmt.Errorf("look up user %q: %w", username, err)
	}
	if user == nil {
		return "", fmt.Errorf("no such user %q", username)
	}
	return fmt.Sprintf("%d", user.ID), nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EASYGRADE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
