package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"calendar-sync-api/internal/auth"
	"calendar-sync-api/internal/config"
	"calendar-sync-api/internal/database"
	"calendar-sync-api/internal/handlers"
	"calendar-sync-api/internal/realtime"
	"calendar-sync-api/internal/routes"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	auth.Configure(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)

	if err := database.InitDB(cfg.DatabasePath, gormLogLevel(cfg)); err != nil {
		slog.Error("could not initialise database", "error", err)
		os.Exit(1)
	}

	var relayOpts []realtime.Option
	if cfg.RealtimeRequireToken {
		relayOpts = append(relayOpts, realtime.WithTokenVerifier(handlers.VerifyRealtimeToken))
	}
	relay := realtime.NewRelay(realtime.NewRegistry(), relayOpts...)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()
	router := routes.SetupRoutes(relay, routes.Options{
		ServerPush: cfg.RealtimeServerPush,
		Context:    appCtx,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port,
			"realtime_require_token", cfg.RealtimeRequireToken,
			"realtime_server_push", cfg.RealtimeServerPush)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	stopApp()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown; they end with the process
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

func gormLogLevel(cfg config.Config) logger.LogLevel {
	if cfg.LogLevel == "debug" {
		return logger.Info
	}
	return logger.Warn
}
