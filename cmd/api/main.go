package main

import (
    "context"
    "errors"
    "flag"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "routeplanner/internal/api"
    "routeplanner/internal/buildinfo"
    "routeplanner/internal/config"
    "routeplanner/internal/logger"
)

func main() {
    configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
    flag.Parse()

    if err := config.LoadDotEnv(); err != nil {
        log.Printf("warning: %v", err)
    }
    cfg, err := config.Load(*configPath)
    if err != nil {
        log.Fatalf("failed to load config: %v", err)
    }
    lg, err := logger.New(cfg.LogLevel)
    if err != nil {
        log.Fatalf("failed to init logger: %v", err)
    }
    defer func() { _ = lg.Sync() }()

    srvDeps, err := api.NewServer(cfg, lg)
    if err != nil {
        lg.Fatal("failed to init server", zap.Error(err))
    }

    addr := ":" + cfg.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           srvDeps.Handler(),
        ReadHeaderTimeout: 5 * time.Second,
        IdleTimeout:       120 * time.Second,
    }

    // Start webhook worker
    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    go func() {
        lg.Info("API listening", zap.String("addr", addr), zap.String("version", buildinfo.Version))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            lg.Fatal("server error", zap.Error(err))
        }
    }()

    <-ctx.Done()
    lg.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        lg.Error("http shutdown", zap.Error(err))
    }
    close(worker.Stop)
    if err := srvDeps.Close(); err != nil {
        lg.Error("close server", zap.Error(err))
    }
}
