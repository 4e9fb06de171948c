package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/xtrntr/auctionhouse/internal/api"
	"github.com/xtrntr/auctionhouse/internal/auction"
	"github.com/xtrntr/auctionhouse/internal/auth"
	"github.com/xtrntr/auctionhouse/internal/config"
	"github.com/xtrntr/auctionhouse/internal/db"
	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/logging"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a .toml or .yaml config file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error (overrides the config file)",
	}
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "listen address (overrides the config file)",
	}
)

func main() {
	app := cli.App{
		Name:   "auction-server",
		Usage:  "escrow auction service",
		Flags:  []cli.Flag{configFlag, logLevelFlag, listenFlag},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if v := c.String(logLevelFlag.Name); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String(listenFlag.Name); v != "" {
		cfg.ListenAddr = v
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(level, os.Stderr)
	slog.SetDefault(log)

	if cfg.DatabaseURL == "" {
		return errors.New("database_url is required (or set AUCTION_DATABASE_URL)")
	}
	programID, err := cfg.Program()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(ctx)

	// Rebuild the ledger from the journal
	accounts, err := database.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	l := ledger.New(ledger.WithJournal(database), ledger.WithLogger(log))
	l.Restore(accounts)

	program := auction.New(programID, l, log)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	if err := auction.RegisterMetrics(reg); err != nil {
		return err
	}

	authService := auth.NewAuthService(database, cfg.JWTSecret, cfg.TokenTTL.Duration)
	hub := api.NewHub(program, cfg.AllowedOrigins, log)
	handler := api.NewHandler(program, authService, hub, log)

	// Set up HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.Routes(r)

	// Push snapshots so subscribers see deadlines pass
	go hub.Run(ctx, cfg.BroadcastInterval.Duration)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.ListenAddr, "program", programID, "accounts", len(accounts))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
