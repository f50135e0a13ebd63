package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fgrust/zero-liquid/internal/api"
	"github.com/fgrust/zero-liquid/internal/authority"
	"github.com/fgrust/zero-liquid/internal/config"
	"github.com/fgrust/zero-liquid/internal/database"
	"github.com/fgrust/zero-liquid/internal/export"
	"github.com/fgrust/zero-liquid/internal/identity"
	"github.com/fgrust/zero-liquid/internal/sale"
	"github.com/fgrust/zero-liquid/internal/settlement"
	"github.com/fgrust/zero-liquid/internal/store"
	"github.com/fgrust/zero-liquid/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// app bundles everything a command needs after wiring.
type app struct {
	cfg      config.Config
	store    store.Store
	registry *sale.Registry
	engine   *settlement.Engine
	closure  *settlement.ClosureManager
	handler  *api.Handler
	export   *export.Service
	writers  []export.Writer
	cleanup  func()
}

func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	var (
		st      store.Store
		cleanup = func() {}
	)
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory ledger (state is lost on restart)")
		st = store.NewMemory()
	} else {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		migrationsSub, err := fs.Sub(migrationsFS, "migrations")
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		st = store.NewPg(pool)
		cleanup = pool.Close
	}

	auth, err := authority.New()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("deriving program authority: %w", err)
	}

	registry := sale.NewRegistry(st, sale.NewAllowanceGuard(auth.Address()))
	closure, err := settlement.NewClosureManager(st, cfg.CloseCreditPolicy)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("configuring closure: %w", err)
	}
	engine := settlement.NewEngine(st, auth, closure)

	var verifier api.SignerVerifier
	if cfg.IdentityURL != "" {
		verifier = identity.NewClient(cfg.IdentityURL, cfg.IdentityRetryMax, cfg.IdentityRetryBaseDelay)
	} else {
		slog.Warn("IDENTITY_URL not set, signer attestations are not verified")
	}

	exportSvc := export.NewService(st)
	var writers []export.Writer
	if cfg.ReportDir != "" {
		writers = append(writers, export.NewXLSXWriter(cfg.ReportDir))
	}
	if cfg.SheetsSpreadsheetID != "" && cfg.GoogleCredentialsJSON != "" {
		sheets, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.GoogleCredentialsJSON)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("creating sheets writer: %w", err)
		}
		writers = append(writers, sheets)
	}

	return &app{
		cfg:      cfg,
		store:    st,
		registry: registry,
		engine:   engine,
		closure:  closure,
		handler:  api.NewHandler(registry, engine, closure, verifier, auth.Nonce()),
		export:   exportSvc,
		writers:  writers,
		cleanup:  cleanup,
	}, nil
}

func serve(c *cli.Context) error {
	ctx := c.Context

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	sweepWorker := worker.NewSweepWorker(a.registry, a.closure, a.cfg.SweeperAddress, a.cfg.SweepWorkerInterval)
	go sweepWorker.Run(ctx)

	if len(a.writers) > 0 {
		reportWorker := worker.NewReportWorker(a.export, a.cfg.ReportWorkerInterval, a.writers...)
		go reportWorker.Run(ctx)
	}

	if a.cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, report endpoint is unprotected")
	}

	srv := api.NewServer(a.cfg.HTTPPort, a.handler, api.NewReportHandler(a.export, a.writers...), a.cfg.AdminAPIKey)

	errc := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func sweepOnce(c *cli.Context) error {
	a, err := buildApp(c.Context)
	if err != nil {
		return err
	}
	defer a.cleanup()

	w := worker.NewSweepWorker(a.registry, a.closure, a.cfg.SweeperAddress, 0)
	closed, err := w.Sweep(c.Context)
	if err != nil {
		return fmt.Errorf("sweeping: %w", err)
	}
	log.Printf("Closed %d exhausted sales", closed)
	return nil
}

func reportOnce(c *cli.Context) error {
	a, err := buildApp(c.Context)
	if err != nil {
		return err
	}
	defer a.cleanup()

	date := time.Now().UTC()
	if arg := c.String("date"); arg != "" {
		date, err = time.Parse("2006-01-02", arg)
		if err != nil {
			return fmt.Errorf("parsing date %q: %w", arg, err)
		}
	}

	report, err := a.export.Generate(c.Context, date)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	for _, w := range a.writers {
		if err := w.Write(c.Context, report); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	log.Printf("Report for %s: %d fills", report.Date.Format("2006-01-02"), len(report.Rows))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:           "escrowd",
		Usage:          "delegated token sale escrow service",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: serve,
			},
			{
				Name:   "sweep",
				Usage:  "close all sales whose backing allowance was revoked, then exit",
				Action: sweepOnce,
			},
			{
				Name:  "report",
				Usage: "generate a daily fill report, then exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "report date (YYYY-MM-DD), defaults to today"},
				},
				Action: reportOnce,
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
