package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/rowstream/internal/config"
	"github.com/JonMunkholm/rowstream/internal/core"
	_ "github.com/JonMunkholm/rowstream/internal/core/tables" // Register built-in tables
	"github.com/JonMunkholm/rowstream/internal/csv"
	"github.com/JonMunkholm/rowstream/internal/logging"
	"github.com/JonMunkholm/rowstream/internal/store"
	"github.com/JonMunkholm/rowstream/internal/web"
)

func main() {
	reset := flag.Bool("reset", false, "truncate every registered table and the import history, then exit")
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"api_key_required", cfg.Security.RequireAPIKey,
	)

	// Extra tables from the schema file
	if cfg.Decode.SchemaFile != "" {
		defs, err := core.LoadTablesFile(cfg.Decode.SchemaFile)
		if err != nil {
			slog.Error("failed to load schema file", "path", cfg.Decode.SchemaFile, "error", err)
			os.Exit(1)
		}
		for _, def := range defs {
			core.Register(def)
		}
		slog.Info("schema file loaded", "path", cfg.Decode.SchemaFile, "tables", len(defs))
	}

	slog.Info("tables registered",
		"count", core.TableCount(),
		"groups", len(core.Groups()),
	)
	for _, group := range core.Groups() {
		tables := core.ByGroup(group)
		slog.Debug("table group", "group", group, "tables", len(tables))
	}

	ctx := context.Background()

	// Without a database the server runs in decode-only mode
	var sink core.Sink
	if cfg.Database.Enabled() {
		st, err := store.Open(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer st.Close()

		if *reset {
			if err := st.Reset(ctx, core.All()); err != nil {
				slog.Error("reset failed", "error", err)
				os.Exit(1)
			}
			slog.Info("tables reset", "count", core.TableCount())
			return
		}

		if err := st.EnsureTables(ctx, core.All()); err != nil {
			slog.Error("failed to create tables", "error", err)
			os.Exit(1)
		}
		sink = st
	} else {
		if *reset {
			slog.Error("reset requires DATABASE_URL")
			os.Exit(1)
		}
		slog.Warn("no database configured, imports are disabled")
	}

	service := core.NewService(sink, core.Options{
		Dialect:       csv.Dialect{Comma: cfg.Decode.Comma(), HasHeader: cfg.Decode.HasHeader},
		Charset:       cfg.Decode.Charset,
		BatchSize:     cfg.Import.BatchSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	})

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active imports to complete (with timeout)
		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
