package main

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	sillogicroot "github.com/sillogic-labs/sillogic"
	"github.com/sillogic-labs/sillogic/internal/config"
	"github.com/sillogic-labs/sillogic/internal/domain"
	"github.com/sillogic-labs/sillogic/internal/repository"
	"github.com/sillogic-labs/sillogic/internal/service"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Snapshot store
	store, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to build snapshot store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Workspace defaults
	models := make([]domain.ModelID, 0, len(cfg.DefaultModels))
	for _, raw := range cfg.DefaultModels {
		id := domain.ModelID(raw)
		if !id.Valid() {
			slog.Error("unknown model in DEFAULT_MODELS", "model", raw)
			os.Exit(1)
		}
		models = append(models, id)
	}

	registry := service.NewRegistry(store, models, domain.FieldGeneral, domain.TaskDeepSearch)

	// Model backend: OpenRouter when a key is configured, scripted otherwise
	var invoker domain.ModelInvoker
	if cfg.OpenRouterKey != "" {
		invoker = service.NewOpenRouterService(cfg.OpenRouterKey)
	} else {
		slog.Info("no OPENROUTER_API_KEY set, using scripted backend")
		invoker = service.NewScriptedInvoker()
	}

	engine := service.NewEngine(registry, invoker,
		service.WithCallTimeout(cfg.StreamTimeout),
		service.WithTemperature(cfg.Temperature),
		service.WithSearch(cfg.EnableSearch),
		service.WithChunkListener(func(ev service.ChunkEvent) {
			fmt.Printf("[%s] %s", ev.Model.DisplayName(), ev.Text)
		}),
	)

	// Resume the last selected session or start a fresh workspace
	sessionID := registry.Selected()
	if sessionID == "" {
		sessionID = registry.Create().ID
	}
	if sess, err := registry.Get(sessionID); err == nil {
		fmt.Printf("── %s ──\n", sess.Title)
	}

	fmt.Println("Commands: /new, /sessions, /select <id>, /fork <message-id>, /models, /use <model>, /drop <model>, /attach <path>, /export, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if line == "/quit" {
				break
			}
			sessionID = handleCommand(ctx, registry, invoker, sessionID, line)
			continue
		}

		if _, err := engine.Submit(ctx, sessionID, line, nil); err != nil {
			slog.Error("submit failed", "error", err)
			continue
		}
		fmt.Println()

		if ctx.Err() != nil {
			break
		}
	}

	slog.Info("stopped gracefully")
}

func handleCommand(ctx context.Context, registry *service.Registry, invoker domain.ModelInvoker, sessionID, line string) string {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/new":
		s := registry.Create()
		fmt.Printf("── %s ──\n", s.Title)
		return s.ID

	case "/sessions":
		for _, s := range registry.List() {
			marker := " "
			if s.ID == registry.Selected() {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  (%d messages)\n", marker, s.ID, s.Title, len(s.Messages))
		}

	case "/select":
		if err := registry.Select(arg); err != nil {
			fmt.Println("select:", err)
			return sessionID
		}
		return arg

	case "/fork":
		fork, err := registry.Fork(sessionID, arg)
		if err != nil {
			fmt.Println("fork:", err)
			return sessionID
		}
		fmt.Printf("forked into %s\n", fork.ID)

	case "/models":
		listModels(ctx, registry, invoker, sessionID)

	case "/use":
		id := domain.ModelID(arg)
		if !id.Valid() {
			fmt.Println("unknown model:", arg)
			return sessionID
		}
		added, err := registry.AddModel(sessionID, id)
		if err != nil {
			fmt.Println("use:", err)
		} else if !added {
			fmt.Println("not added: already active or at the 3-model limit")
		}

	case "/drop":
		removed, err := registry.RemoveModel(sessionID, domain.ModelID(arg))
		if err != nil {
			fmt.Println("drop:", err)
		} else if !removed {
			fmt.Println("not removed: not active or last remaining model")
		}

	case "/attach":
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Println("attach:", err)
			return sessionID
		}
		mimeType := mime.TypeByExtension(filepath.Ext(arg))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		att := domain.Attachment{Name: filepath.Base(arg), MIMEType: mimeType, Data: data}
		if err := registry.AddAttachment(sessionID, att); err != nil {
			fmt.Println("attach:", err)
			return sessionID
		}
		fmt.Printf("attached %s (%s)\n", att.Name, mimeType)

	case "/export":
		s, err := registry.SelectedSession()
		if err != nil {
			fmt.Println("export:", err)
			return sessionID
		}
		fmt.Println(service.ExportTranscript(s))

	default:
		fmt.Println("unknown command:", cmd)
	}
	return sessionID
}

// listModels prints the catalog with live pricing when the backend exposes a
// directory, falling back to the static catalog otherwise.
func listModels(ctx context.Context, registry *service.Registry, invoker domain.ModelInvoker, sessionID string) {
	active := map[domain.ModelID]bool{}
	if s, err := registry.Get(sessionID); err == nil {
		for _, m := range s.ActiveModels {
			active[m] = true
		}
	}
	marker := func(id domain.ModelID) string {
		if active[id] {
			return "*"
		}
		return " "
	}

	if dir, ok := invoker.(domain.ModelDirectory); ok {
		infos, err := dir.ListModels(ctx)
		if err == nil {
			for _, m := range infos {
				price := fmt.Sprintf("$%s/$%s per 1M tokens", m.PromptPrice.StringFixed(2), m.CompletionPrice.StringFixed(2))
				if m.IsFree() {
					price = "free"
				}
				fmt.Printf("%s %-30s %-22s %s\n", marker(m.ID), m.ID, m.ID.DisplayName(), price)
			}
			return
		}
		slog.Warn("model listing failed, using static catalog", "error", err)
	}
	for _, id := range domain.SupportedModels() {
		fmt.Printf("%s %-30s %s\n", marker(id), id, id.DisplayName())
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (repository.SnapshotStore, error) {
	switch cfg.SnapshotBackend {
	case "file":
		return repository.NewFileStore(cfg.SnapshotPath), nil

	case "memory":
		return repository.NewMemoryStore(), nil

	case "sqlite":
		return repository.NewSQLiteStore(cfg.SnapshotPath, config.SnapshotNamespace)

	case "postgres":
		migrationsFS, err := fs.Sub(sillogicroot.MigrationsFS, "migrations")
		if err != nil {
			return nil, fmt.Errorf("load embedded migrations: %w", err)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(pool, config.SnapshotNamespace), nil

	case "redis":
		return repository.NewRedisStore(cfg.RedisURL, config.SnapshotNamespace)

	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}
