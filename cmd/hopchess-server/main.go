package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/hopchess/internal/config"
	"github.com/park285/hopchess/internal/msgcat"
	"github.com/park285/hopchess/internal/obslog"
	"github.com/park285/hopchess/internal/outcome"
	"github.com/park285/hopchess/internal/provision"
	"github.com/park285/hopchess/internal/relay"
	"github.com/park285/hopchess/internal/session"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb, err := provision.OpenRedis(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	store := provision.NewStore(rdb, cfg.RoomTTL)

	// Outcome sinks are optional; without any, outcomes are only logged.
	var sinks []outcome.Sink
	if cfg.OutcomeBaseURL != "" {
		sinks = append(sinks, outcome.NewSubmitter(cfg.OutcomeBaseURL, cfg.OutcomeRetry, 10*time.Second))
	}
	var repo *outcome.Repository
	if cfg.DatabaseURL != "" {
		repo, err = outcome.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("outcome repo init error: %v", err)
		}
		sinks = append(sinks, repo)
	}
	recorder := outcome.NewRecorder(30*time.Second, sinks...)

	hub := session.NewHub(store, session.Options{
		StrictMoves: cfg.StrictMoves,
		Status:      store,
		Recorder:    recorder,
	})

	mux := http.NewServeMux()
	provision.NewAPI(store, cfg.PublicBaseURL).Register(mux)
	relay.NewServer(hub, relay.Options{
		AllowOrigins: cfg.OriginAllowlist,
		SendQueue:    cfg.SendQueueSize,
		PingInterval: cfg.PingInterval,
		Catalog:      cat,
	}).Register(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           cors(cfg.OriginAllowlist, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("server_listen",
			zap.String("addr", cfg.ListenAddr),
			zap.Bool("strict_moves", cfg.StrictMoves),
			zap.Int("outcome_sinks", len(sinks)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		obslog.L().Warn("server_shutdown_error", zap.Error(err))
	}
	hub.Close()
	recorder.Wait()
	_ = repo.Close()
	_ = rdb.Close()
	obslog.L().Info("server_stopped")
}

func cors(allow []string, next http.Handler) http.Handler {
	allowSet := map[string]struct{}{}
	for _, a := range allow {
		if a != "" {
			allowSet[a] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowSet[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
