package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gallery/internal/activity"
	"gallery/internal/config"
	"gallery/internal/consul"
	"gallery/internal/logger"
	"gallery/internal/server"
	"gallery/internal/session"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("activity-service")
	logger.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("Activity service failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg, err := server.ConfigFromEnv("ACTIVITY_SERVICE_PORT", 8086)
	if err != nil {
		return err
	}
	reg, err := consul.RegistrationFromEnv(activity.ServiceName, "ACTIVITY", 8086, "activity", "engagement")
	if err != nil {
		return err
	}
	consumerCfg, err := activity.ConsumerConfigFromEnv()
	if err != nil {
		return err
	}

	log.Info("Starting activity service", "port", srvCfg.Port, "topic", consumerCfg.Topic)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := session.DialRedis(connectCtx, session.RedisConfigFromEnv())
	cancel()
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("Connected to Redis")

	board := activity.NewRedisBoard(rdb,
		config.GetEnvOrDefault("ACTIVITY_BOARD_KEY", ""),
		config.GetEnvDuration("ACTIVITY_BOARD_TTL", 72*time.Hour))
	processor := activity.NewProcessor(board,
		activity.NewRedisDeduper(rdb, config.GetEnvDuration("ACTIVITY_DEDUP_TTL", 24*time.Hour)),
		log,
		activity.WithRetry(uint64(config.GetEnvInt("ACTIVITY_MAX_RETRIES", 3)), time.Second))

	consumer, err := activity.NewConsumer(consumerCfg, processor, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

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

	router := activity.SetupRouter(board, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Start(gctx) })
	g.Go(func() error { return server.New(srvCfg, router, log).Run(gctx) })
	return g.Wait()
}
