package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "watchtower",
		Usage:   "chat moderation decision daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the event API",
			Value:   ":3899",
			EnvVars: []string{"WATCHTOWER_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics",
			Value:   ":3898",
			EnvVars: []string{"WATCHTOWER_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "sqlite path for the allow-list store",
			Value:   "data/watchtower/watchtower.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; when empty all caches are in-process",
			EnvVars: []string{"WATCHTOWER_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "omni-endpoint",
			Value:   "https://api.openai.com/v1/moderations",
			EnvVars: []string{"WATCHTOWER_OMNI_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "omni-token",
			Usage:   "API token for the multi-input moderation provider; empty disables it",
			EnvVars: []string{"WATCHTOWER_OMNI_TOKEN", "OPENAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "perspective-endpoint",
			Value:   "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze",
			EnvVars: []string{"WATCHTOWER_PERSPECTIVE_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "perspective-key",
			Usage:   "API key for the attribute scoring provider; empty disables it",
			EnvVars: []string{"WATCHTOWER_PERSPECTIVE_KEY", "PERSPECTIVE_API_KEY"},
		},
		&cli.Float64Flag{
			Name:    "flag-threshold",
			Usage:   "aggregate score above which content is flagged",
			Value:   0.7,
			EnvVars: []string{"WATCHTOWER_FLAG_THRESHOLD"},
		},
		&cli.Float64Flag{
			Name:    "perspective-threshold",
			Usage:   "per-attribute score above which the attribute provider flags",
			Value:   0.75,
			EnvVars: []string{"WATCHTOWER_PERSPECTIVE_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "provider-rate-limit",
			Usage:   "max requests per second to each classification provider",
			Value:   5,
			EnvVars: []string{"WATCHTOWER_PROVIDER_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "verdict-ttl",
			Usage:   "how long classification verdicts are cached",
			Value:   10 * time.Minute,
			EnvVars: []string{"WATCHTOWER_VERDICT_TTL"},
		},
		&cli.DurationFlag{
			Name:    "allowlist-ttl",
			Usage:   "how long per-guild allow-lists are cached",
			Value:   10 * time.Minute,
			EnvVars: []string{"WATCHTOWER_ALLOWLIST_TTL"},
		},
		&cli.IntFlag{
			Name:    "bucket-size",
			Usage:   "message rate limit bucket capacity per actor",
			Value:   5,
			EnvVars: []string{"WATCHTOWER_BUCKET_SIZE"},
		},
		&cli.Float64Flag{
			Name:    "bucket-refill-per-sec",
			Usage:   "message rate limit tokens restored per second",
			Value:   0.5,
			EnvVars: []string{"WATCHTOWER_BUCKET_REFILL_PER_SEC"},
		},
		&cli.DurationFlag{
			Name:    "base-timeout",
			Usage:   "penalty for a first offense at the flagging threshold",
			Value:   30 * time.Second,
			EnvVars: []string{"WATCHTOWER_BASE_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "max-timeout",
			Usage:   "hard penalty ceiling imposed by the chat platform",
			Value:   28 * 24 * time.Hour,
			EnvVars: []string{"WATCHTOWER_MAX_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "escalation-window",
			Usage:   "how far back incidents drive penalty escalation",
			Value:   30 * time.Minute,
			EnvVars: []string{"WATCHTOWER_ESCALATION_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "number of parallel event workers",
			Value:   8,
			EnvVars: []string{"WATCHTOWER_WORKERS"},
		},
		&cli.StringSliceFlag{
			Name:    "default-allowed-actors",
			Usage:   "actor IDs which bypass moderation unconditionally",
			EnvVars: []string{"WATCHTOWER_DEFAULT_ALLOWED_ACTORS"},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "log enforcement actions instead of performing them",
			EnvVars: []string{"WATCHTOWER_DRY_RUN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("watchtower"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		srv, err := NewServer(Config{
			Logger:               logger,
			DatabaseURL:          cctx.String("database-url"),
			RedisURL:             cctx.String("redis-url"),
			OmniEndpoint:         cctx.String("omni-endpoint"),
			OmniToken:            cctx.String("omni-token"),
			PerspectiveEndpoint:  cctx.String("perspective-endpoint"),
			PerspectiveKey:       cctx.String("perspective-key"),
			FlagThreshold:        cctx.Float64("flag-threshold"),
			PerspectiveThreshold: cctx.Float64("perspective-threshold"),
			ProviderRateLimit:    cctx.Int("provider-rate-limit"),
			VerdictTTL:           cctx.Duration("verdict-ttl"),
			AllowlistTTL:         cctx.Duration("allowlist-ttl"),
			BucketSize:           cctx.Int("bucket-size"),
			BucketRefillPerSec:   cctx.Float64("bucket-refill-per-sec"),
			BaseTimeout:          cctx.Duration("base-timeout"),
			MaxTimeout:           cctx.Duration("max-timeout"),
			EscalationWindow:     cctx.Duration("escalation-window"),
			Workers:              cctx.Int("workers"),
			DefaultAllowedActors: cctx.StringSlice("default-allowed-actors"),
			DryRun:               cctx.Bool("dry-run"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(err)
			}
		}()

		return srv.Run(ctx, cctx.String("bind"))
	},
}
