// Package main is the entrypoint for the waq gateway server.
// The gateway manages the data source catalog, resolves chat messages to
// triggers and executes their queries against the configured backends.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"         // PostgreSQL driver
	_ "modernc.org/sqlite"        // SQLite driver

	"github.com/hansduf/WA-Integrasi-sub000/internal/audit"
	"github.com/hansduf/WA-Integrasi-sub000/internal/auth"
	"github.com/hansduf/WA-Integrasi-sub000/internal/backend/relational"
	"github.com/hansduf/WA-Integrasi-sub000/internal/backend/timeseries"
	"github.com/hansduf/WA-Integrasi-sub000/internal/bootstrap"
	"github.com/hansduf/WA-Integrasi-sub000/internal/config"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/plugin"
	"github.com/hansduf/WA-Integrasi-sub000/internal/server"
	"github.com/hansduf/WA-Integrasi-sub000/internal/status"
	"github.com/hansduf/WA-Integrasi-sub000/internal/storage"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = flag.String("config", "", "config file path")
		addr          = flag.String("addr", "", "HTTP listen address (overrides config)")
		token         = flag.String("token", "", "Static auth token")
		bootstrapPath = flag.String("bootstrap", "", "declarative bootstrap file (optional)")
		devMode       = flag.Bool("dev", false, "Development mode (in-memory repository, no auth required)")
		showVer       = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("waq-gateway %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr == "" {
		*addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	if *token == "" {
		*token = cfg.Auth.Token
	}
	if *token == "" {
		*token = os.Getenv("WAQ_TOKEN")
	}
	if *token == "" && !*devMode {
		return fmt.Errorf("auth token required: use -token, auth.token config or WAQ_TOKEN env var (use -dev for development mode)")
	}

	// Repository selection. Production requires a real catalog store.
	var (
		repo storage.Repository
		db   *sql.DB
	)
	switch {
	case *devMode && cfg.Database.Driver == "memory":
		log.Println("WARNING: Development mode - using in-memory repository (not for production)")
		repo = storage.NewMemoryRepository()
	default:
		driver := cfg.Database.Driver
		if driver == "memory" {
			return fmt.Errorf("in-memory repository requires -dev mode")
		}
		if driver == "" {
			driver = "sqlite"
		}
		db, err = sql.Open(driverName(driver), cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open %s catalog store: %w", driver, err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("%s connectivity check failed: %w", driver, err)
		}

		log.Println("Running database migrations...")
		if err := storage.NewMigrationRunner(db).Run(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Println("Database migrations completed")

		repo = storage.NewSQLRepository(db)
		log.Printf("Connected to %s catalog store", driver)
	}

	// Static plugin registration. Both backend families ship built in.
	registry := plugin.NewRegistry()
	registry.Register(datasource.PluginRelational, relational.Descriptor())
	registry.Register(datasource.PluginTimeseries, timeseries.Descriptor())
	log.Printf("Registered plugins: %v", registry.Types())

	// Audit sink: SQL-backed when a store exists, JSON lines otherwise.
	var recorder audit.Recorder
	if db != nil {
		recorder = audit.NewSQLRecorder(db)
	} else {
		recorder = audit.NewJSONRecorder(os.Stdout)
	}
	summary := status.NewSummaryRecorder(recorder)

	queryTimeout, _ := time.ParseDuration(cfg.Query.Timeout)
	connectTimeout, _ := time.ParseDuration(cfg.Query.ConnectTimeout)
	schemaTTL, _ := time.ParseDuration(cfg.Query.SchemaCacheTTL)

	manager := datasource.NewManager(registry, repo, datasource.ManagerConfig{
		QueryTimeout:   queryTimeout,
		ConnectTimeout: connectTimeout,
		SchemaCacheTTL: schemaTTL,
		Recorder:       summary,
	})
	defer manager.Close()

	store := trigger.NewStore(repo)
	engine := trigger.NewEngine(store, manager, trigger.Defaults{
		Interval:       cfg.Triggers.DefaultInterval,
		MaxDisplayRows: cfg.Triggers.MaxDisplayRows,
	}, summary)

	// Auth wiring. Dev mode without a token runs the API open.
	var (
		authenticator auth.Authenticator
		authorizer    *auth.AuthorizationService
	)
	if *token != "" {
		static := auth.NewStaticTokenAuthenticator()
		static.RegisterToken(*token, &auth.User{
			ID:    "default-user",
			Name:  "Default User",
			Roles: []string{"admin"},
		})
		authenticator = static

		authorizer = auth.NewAuthorizationService()
		authorizer.GrantAll("admin")
	}

	// Apply the declarative bootstrap before connecting anything.
	if *bootstrapPath != "" {
		bs, err := bootstrap.LoadFile(*bootstrapPath)
		if err != nil {
			return err
		}
		if err := bs.Validate(); err != nil {
			return fmt.Errorf("bootstrap validation failed: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = bs.Apply(ctx, manager, store, authorizer)
		cancel()
		if err != nil {
			return err
		}
		log.Printf("Applied bootstrap file %s", *bootstrapPath)
	}

	// Connect everything up front so the first message does not pay the
	// connect latency. Failures are reported and retried lazily.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		report, err := manager.LoadAndConnectAll(ctx)
		cancel()
		if err != nil {
			return err
		}
		log.Printf("Connected %d data sources, %d failed", len(report.Connected), len(report.Failed))
		for _, failed := range report.Failed {
			log.Printf("  %s: %s", failed.ID, failed.Error)
		}
	}

	if cfg.Health.Enabled {
		interval, _ := time.ParseDuration(cfg.Health.Interval)
		manager.StartHealthCheck(interval)
		log.Printf("Health checker started (interval %s)", cfg.Health.Interval)
	}

	var connectivity status.ConnectivityChecker
	if sqlRepo, ok := repo.(*storage.SQLRepository); ok {
		connectivity = sqlRepo
	}
	checker := status.NewChecker(connectivity, manager, store, version)

	handler := server.New(server.Config{
		Sources:       manager,
		Triggers:      store,
		Engine:        engine,
		Status:        checker,
		Summary:       summary,
		Authenticator: authenticator,
		Authorizer:    authorizer,
		LogWriter:     os.Stdout,
	})

	readTimeout, _ := time.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.Server.WriteTimeout)
	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down gateway...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		close(done)
	}()

	log.Printf("waq gateway starting on %s", *addr)
	log.Printf("Version: %s, Commit: %s", version, commit)
	log.Printf("Health check: http://localhost%s/health", *addr)
	log.Printf("Readiness: http://localhost%s/ready", *addr)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

func driverName(driver string) string {
	if driver == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
