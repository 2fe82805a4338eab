// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"automarket/internal/apiserver/auth"
	"automarket/internal/apiserver/server"
	"automarket/internal/config"
	"automarket/internal/moderation"
	"automarket/internal/shared/infra"
	"automarket/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		logging.Default("api-server").Fatalw("api server exited", "error", err)
	}
}

func run() error {
	// 加载配置（.env → configs/common.yaml → configs/{env}.yaml → 环境变量）
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	logCfg.Component = "api-server"
	logger := logging.New(logCfg)
	defer logger.Sync()

	logger.Infow("starting api server", "env", cfg.Env, "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infrastructure, err := infra.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infrastructure.Close()

	if err := auth.EnsureAdminUser(ctx, infrastructure.Storage, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, logger.Named("auth")); err != nil {
		return err
	}

	metrics := server.NewMetrics("automarket", nil)
	svc := moderation.NewService(infrastructure.Storage, logger.Named("moderation"),
		moderation.WithPublisher(infrastructure.EventBus),
		moderation.WithRecorder(metrics),
	)

	deps := server.Deps{
		Store:          infrastructure.Storage,
		Moderation:     svc,
		Events:         infrastructure.EventBus,
		Auth:           auth.ConfigFrom(cfg.Auth),
		Metrics:        metrics,
		Logger:         logger,
		MaxUploadBytes: cfg.APIServer.MaxUploadBytes,
	}
	if infrastructure.Images != nil {
		deps.Images = infrastructure.Images
	}
	h := server.NewHandler(deps)
	h.StartHub(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.APIServer.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Desugar()),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("api server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// 优雅关闭
	logger.Infow("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown error", "error", err)
	}

	if err := <-errCh; err != nil {
		return err
	}
	logger.Infow("api server stopped")
	return nil
}
