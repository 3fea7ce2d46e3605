package main

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/engine"
	"casino-core/internal/games"
	"casino-core/internal/http-server/handlers/event"
	"casino-core/internal/http-server/handlers/mysql"
	"casino-core/internal/http-server/handlers/round/open"
	"casino-core/internal/http-server/handlers/round/play"
	"casino-core/internal/http-server/handlers/round/refund"
	"casino-core/internal/http-server/handlers/round/settle"
	"casino-core/internal/http-server/handlers/round/verify"
	"casino-core/internal/http-server/handlers/stats/rtp"
	"casino-core/internal/http-server/middleware/logger"
	"casino-core/internal/lib/job"
	"casino-core/internal/lib/logger/handler/slogpretty"
	"casino-core/internal/lib/logger/sl"
	"casino-core/internal/repository"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting server...", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	db, err := sql.Open("mysql", cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err = db.Ping(); err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	handler := mysql.New(db)

	pusherEvent := event.NewPusherEvent(log, cfg.Pusher)

	roundRepo := repository.NewRoundRepository(*handler)
	nonceRepo := repository.NewNonceRepository(*handler)
	walletRepo := repository.NewWalletRepository(*handler)
	ledgerRepo := repository.NewLedgerRepository(*handler)

	registry := games.NewRegistry(cfg.Casino.HouseEdge)

	roundEngine := engine.New(log, registry, walletRepo, ledgerRepo, roundRepo, nonceRepo, pusherEvent, cfg.Casino)
	rtpAggregator := engine.NewRTPAggregator(roundRepo, log)

	quickPlay := quick_play.NewPlay(log, roundEngine)
	openRound := open_round.NewOpen(log, roundEngine)
	settleRound := settle_round.NewSettle(log, roundEngine)
	refundRound := refund_round.NewRefund(log, roundEngine)
	verifyRound := verify_round.NewVerify(log, roundEngine)
	rtpStats := rtp_stats.NewStats(log, rtpAggregator)

	queue := job.NewQueue(16)
	pool := job.NewWorkerPool(2, queue)
	pool.Start()

	go dispatchReconcile(queue, roundEngine, cfg.Casino.ReconcileInterval)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/rounds/quick-play", quickPlay.New())
	router.Post("/rounds/initialize", openRound.New())
	router.Post("/rounds/{roundNumber}/play", settleRound.New())
	router.Post("/rounds/{roundNumber}/refund", refundRound.New())
	router.Get("/rounds/{roundNumber}/verify", verifyRound.New())
	router.Get("/stats/rtp", rtpStats.New())

	log.Info("Server started", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err = srv.ListenAndServe(); err != nil {
		log.Error("Server failed", sl.Err(err))
	}

	log.Error("Server stopped")
}

func dispatchReconcile(queue job.JobQueue, roundEngine *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		queue.Dispatch(&engine.ReconcileJob{Engine: roundEngine}, 0)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlogLogger()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlogLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
