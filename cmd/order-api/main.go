package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/app"
)

// setupLogger настраивает формат и уровень логирования по LOG_FORMAT и LOG_LEVEL.
// Возвращает предупреждение, если уровень не распознан.
func setupLogger(format, level string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if strings.TrimSpace(level) == "" {
		log.SetLevel(log.InfoLevel)
		return ""
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return "unknown LOG_LEVEL " + level + ", using info"
	}
	log.SetLevel(parsed)
	return ""
}

// loadDotEnv подхватывает .env, если он есть. Уже заданные переменные не перезаписываются.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.WithError(err).Warn("failed to read .env")
	}
	if warning := setupLogger(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")); warning != "" {
		log.Warn(warning)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"idempotency":  cfg.IdempotencyBackend,
	}).Info("starting order api")

	if err := app.Run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("order api exited with error")
	}

	log.Info("order api stopped")
}
