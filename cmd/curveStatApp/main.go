package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curveStatApp/config"
	"curveStatApp/internal/app"
	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/handlers/http"
	"curveStatApp/internal/lib/logger/handlers/slogpretty"
	"curveStatApp/internal/lib/logger/sl"
	"curveStatApp/pkg/utils"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("initializing app", slog.String("env", cfg.Env))

	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	application.Start(ctx)

	if cfg.Demo {
		go runDemo(ctx, log, application)
	}

	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := http.NewServer(log, httpAddr, application.Trends, application.Broadcaster, http.HealthInfo{
		CurveAddress: cfg.CurveAddress,
		RPC:          cfg.RPCURL,
	})

	go func() {
		log.Info("HTTP server listening", slog.String("addr", httpAddr))
		if err := httpServer.Start(); err != nil {
			log.Info("HTTP server stopped", sl.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", sl.Err(err))
	}

	application.Cleanup(shutdownCtx)

	log.Info("service stopped")
}

// runDemo feeds simulated curve events, for trying the service without a chain.
func runDemo(ctx context.Context, log *slog.Logger, application *app.AppContext) {
	if application.KafkaConsumer != nil && application.Relay == nil {
		log.Warn("DEMO ignored on a Kafka consumer replica")
		return
	}
	log.Warn("DEMO mode: feeding simulated trades")
	runDemoInto(ctx, application.EventCh)
	log.Info("demo generator stopped")
}

func runDemoInto(ctx context.Context, events chan<- *model.CurveEvent) {
	generator := utils.NewTradeGenerator(time.Now().UnixNano())
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range generator.Generate(3) {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
