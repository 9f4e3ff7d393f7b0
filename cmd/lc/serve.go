package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/auth"
	"github.com/alfredjeanlab/lowcode/internal/botexec"
	"github.com/alfredjeanlab/lowcode/internal/build"
	"github.com/alfredjeanlab/lowcode/internal/chat"
	"github.com/alfredjeanlab/lowcode/internal/config"
	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/llm"
	"github.com/alfredjeanlab/lowcode/internal/presence"
	"github.com/alfredjeanlab/lowcode/internal/queue"
	"github.com/alfredjeanlab/lowcode/internal/server"
	"github.com/alfredjeanlab/lowcode/internal/store/postgres"
	"github.com/alfredjeanlab/lowcode/internal/tools"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the lowcode API server",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)
		withWorker, _ := cmd.Flags().GetBool("with-worker")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		publisher := newPublisher(cfg, logger)
		recorder := events.NewRecorder(store, publisher)

		var q queue.Queue = queue.Unavailable{}
		if cfg.RedisURL != "" {
			rq, err := queue.NewRedis(context.Background(), cfg.RedisURL, cfg.BuildQueue)
			if err != nil {
				publisher.Close()
				store.Close()
				return err
			}
			q = rq
			logger.Info("build queue enabled", "key", cfg.BuildQueue)
		} else {
			logger.Info("build queue disabled (" + config.Prefix + "REDIS_URL not set)")
		}

		var provider llm.Provider = llm.Unconfigured{}
		if cfg.LLMConfigured() {
			provider = llm.NewOpenAI(llm.OpenAIConfig{
				BaseURL:      cfg.LLMBaseURL,
				APIKey:       cfg.LLMAPIKey,
				DefaultModel: cfg.LLMModel,
				Timeout:      cfg.LLMTimeout,
			})
			logger.Info("llm provider enabled", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
		} else {
			logger.Info("llm provider disabled (" + config.Prefix + "LLM_API_KEY not set); bots cannot start")
		}

		executor := tools.New(tools.Config{AllowShell: cfg.ToolsAllowShell, FileRoot: cfg.ToolsFileRoot})
		tracker := presence.New()
		tracker.StartReaper(nil)
		hub := chat.NewHub(chat.Config{}, tracker, publisher)
		bots := botexec.New(botexec.Options{
			Store:    store,
			Provider: provider,
			Tools:    executor,
			Hub:      hub,
			Recorder: recorder,
			Logger:   logger,
		})
		monitor := bots.NewMonitor(cfg.HealthInterval, cfg.HealthTimeout)
		monitor.Start()

		// Deliver chat messages from other server processes.
		var stopRelay func()
		var relaySub *events.NATSSubscriber
		if cfg.NATSURL != "" {
			relaySub, err = events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create chat relay subscriber", "err", err)
			} else if stopRelay, err = hub.StartRelay(relaySub); err != nil {
				logger.Error("failed to start chat relay", "err", err)
			}
		}

		srv := server.New(server.Options{
			Store:    store,
			Issuer:   auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
			Recorder: recorder,
			Tools:    executor,
			Bots:     bots,
			Hub:      hub,
			Presence: tracker,
			Queue:    q,
			Logger:   logger,
		})

		var worker *build.Worker
		switch {
		case withWorker && cfg.RedisURL == "":
			logger.Warn("--with-worker ignored: build queue disabled")
		case withWorker:
			dests, err := buildDestinations(context.Background(), cfg, logger)
			if err != nil {
				logger.Error("failed to configure build destinations", "err", err)
			} else {
				worker = build.NewWorker(store, q, dests, recorder, cfg.WorkerPoll, logger)
				worker.Start()
			}
		}

		grpcServer, grpcHealth := server.NewGRPCServer()
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logger.Error("gRPC listen failed; health endpoint disabled", "addr", cfg.GRPCAddr, "err", err)
			} else {
				go func() {
					logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
					if err := grpcServer.Serve(lis); err != nil {
						logger.Error("gRPC server error", "err", err)
					}
				}()
			}
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		httpErr := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()

		logger.Info("lowcode server started", "http_addr", cfg.HTTPAddr, "grpc_addr", cfg.GRPCAddr, "worker", worker != nil)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		var runErr error
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
		case runErr = <-httpErr:
			logger.Error("HTTP server error", "err", runErr)
		}

		grpcHealth.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if worker != nil {
			worker.Stop()
			logger.Info("build worker stopped")
		}
		monitor.Stop()
		tracker.Stop()
		if stopRelay != nil {
			stopRelay()
		}
		if relaySub != nil {
			relaySub.Close()
		}

		if err := q.Close(); err != nil {
			logger.Error("error closing queue", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return runErr
	},
}

func init() {
	serveCmd.Flags().Bool("with-worker", false, "also run the build worker in this process")
}
