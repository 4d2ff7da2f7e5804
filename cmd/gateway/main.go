package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gallery/internal/config"
	"gallery/internal/consul"
	"gallery/internal/gateway"
	"gallery/internal/logger"
	"gallery/internal/server"
	"gallery/internal/session"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("api-gateway")
	logger.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("API gateway failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg, err := server.ConfigFromEnv("GATEWAY_PORT", 8080)
	if err != nil {
		return err
	}
	consulCfg := consul.ConfigFromEnv()
	redisCfg := session.RedisConfigFromEnv()

	log.Info("Starting API gateway",
		"port", srvCfg.Port,
		"consul_addr", consulCfg.Addr,
		"redis_addr", redisCfg.Addr,
	)

	consulClient, err := consul.NewClient(consulCfg)
	if err != nil {
		return err
	}
	resolver := consul.NewResolver(consulClient, config.GetEnvDuration("GATEWAY_DISCOVERY_TTL", 10*time.Second))

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	store, err := session.NewRedisStore(connectCtx, redisCfg)
	cancel()
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("Connected to Redis")

	router := gateway.SetupRouter(resolver, session.NewManager(store), log, gateway.Config{
		AllowedOrigins:      splitList(config.GetEnvOrDefault("ALLOWED_ORIGINS", "")),
		AllowAnonymousReads: config.GetEnvBool("GATEWAY_ALLOW_ANONYMOUS_READS", true),
	})

	return server.New(srvCfg, router, log).Run(ctx)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
