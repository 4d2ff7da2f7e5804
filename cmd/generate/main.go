// Command generate runs one prompt through the prediction API, waits for the
// result and archives the image in object storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gallery/internal/config"
	"gallery/internal/generation"
	"gallery/internal/logger"
	"gallery/internal/storage"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("generate")
	logger.SetDefault(log)

	var (
		in      generation.CreateInput
		linkTTL time.Duration
	)
	flag.StringVar(&in.NegativePrompt, "negative", "", "negative prompt")
	flag.IntVar(&in.Width, "width", 0, "image width in pixels")
	flag.IntVar(&in.Height, "height", 0, "image height in pixels")
	flag.DurationVar(&linkTTL, "link-ttl", config.GetEnvDuration("ARCHIVE_LINK_TTL", 24*time.Hour), "lifetime of the download link")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: generate [flags] <prompt>...")
		flag.PrintDefaults()
	}
	flag.Parse()
	in.Prompt = strings.Join(flag.Args(), " ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, in, linkTTL); err != nil {
		if errors.Is(err, generation.ErrInvalidInput) {
			flag.Usage()
		}
		log.Error("Generation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, in generation.CreateInput, linkTTL time.Duration) error {
	apiCfg, err := generation.ClientConfigFromEnv()
	if err != nil {
		return err
	}
	storeCfg, err := storage.ConfigFromEnv()
	if err != nil {
		return err
	}

	store, err := storage.New(ctx, storeCfg, log)
	if err != nil {
		return err
	}
	if err := store.EnsureBucketExists(ctx); err != nil {
		return err
	}

	client := generation.NewClient(apiCfg)
	poller := generation.NewPoller(client, generation.PollConfig{
		InitialInterval: config.GetEnvDuration("PREDICTION_POLL_INTERVAL", time.Second),
		MaxInterval:     config.GetEnvDuration("PREDICTION_POLL_MAX_INTERVAL", 5*time.Second),
		Deadline:        config.GetEnvDuration("PREDICTION_DEADLINE", 2*time.Minute),
	}, log)
	gen := generation.NewGenerator(client, poller, generation.NewArchiver(store, linkTTL, log), log)

	out, err := gen.Generate(ctx, in)
	if err != nil {
		return err
	}
	fmt.Println(out.URL)
	return nil
}
