package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gallery/internal/consul"
	"gallery/internal/database"
	"gallery/internal/kafka"
	"gallery/internal/comments"
	"gallery/internal/logger"
	"gallery/internal/server"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("comments-service")
	logger.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("Comments service failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg, err := server.ConfigFromEnv("COMMENTS_SERVICE_PORT", 8085)
	if err != nil {
		return err
	}
	reg, err := consul.RegistrationFromEnv("comments-service", "COMMENTS", 8085, "comments", "engagement")
	if err != nil {
		return err
	}

	log.Info("Starting Comments service", "host", reg.Host, "port", srvCfg.Port)

	db := database.New()
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Database close failed", "error", err)
		}
	}()

	events, closeEvents, err := kafka.NewPublisherFromEnv(log)
	if err != nil {
		return err
	}
	defer closeEvents()

	svc := comments.NewService(comments.NewRepository(db), events, log)
	router := comments.SetupRouter(svc, log)

	consulClient, err := consul.NewClient(consul.ConfigFromEnv())
	if err != nil {
		return err
	}
	serviceID, err := consulClient.Register(reg)
	if err != nil {
		return err
	}
	log.Info("Registered in Consul", "service_id", serviceID)
	defer func() {
		if err := consulClient.Deregister(serviceID); err != nil {
			log.Error("Consul deregister failed", "service_id", serviceID, "error", err)
		}
	}()

	return server.New(srvCfg, router, log).Run(ctx)
}
