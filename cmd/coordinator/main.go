package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/benbjohnson/clock"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/coordinator/api"
	"github.com/cotrain-ai/cotrain/coordinator/middleware"
	"github.com/cotrain-ai/cotrain/pkg/ledger"
	"github.com/cotrain-ai/cotrain/pkg/mqtt"
	"github.com/cotrain-ai/cotrain/pkg/storage"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7071"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel      string        `env:"COORDINATOR_LOG_LEVEL"      envDefault:"info"`
	InstanceID    string        `env:"COORDINATOR_INSTANCE_ID"`
	StorageType   string        `env:"COORDINATOR_STORAGE_TYPE"   envDefault:"memory"`
	StorageDir    string        `env:"COORDINATOR_STORAGE_DIR"    envDefault:"./data"`
	EscrowAccount string        `env:"COORDINATOR_ESCROW_ACCOUNT" envDefault:"coordinator-escrow"`
	BaseTopic     string        `env:"COORDINATOR_BASE_TOPIC"     envDefault:"cotrain"`
	MQTTAddress   string        `env:"COORDINATOR_MQTT_ADDRESS"   envDefault:"tcp://localhost:1883"`
	MQTTQoS       uint8         `env:"COORDINATOR_MQTT_QOS"       envDefault:"2"`
	MQTTUsername  string        `env:"COORDINATOR_MQTT_USERNAME"`
	MQTTPassword  string        `env:"COORDINATOR_MQTT_PASSWORD"`
	MQTTTimeout   time.Duration `env:"COORDINATOR_MQTT_TIMEOUT"   envDefault:"30s"`
	SweepCron     string        `env:"COORDINATOR_SWEEP_CRON"     envDefault:"*/5 * * * *"`
	OTELURL       url.URL       `env:"COORDINATOR_OTEL_URL"`
	TraceRatio    float64       `env:"COORDINATOR_TRACE_RATIO"    envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}

	stores, err := makeStores(cfg)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))

		return
	}

	tokens := ledger.NewInMemoryLedger(cfg.EscrowAccount)

	svc := coordinator.NewService(
		stores[0], stores[1], stores[2], stores[3], stores[4],
		tokens,
		cfg.EscrowAccount,
		mqttPubSub,
		cfg.BaseTopic,
		clock.New(),
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		logger.Error("failed to subscribe to submission topic", slog.String("error", err.Error()))

		return
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	sweeper, err := coordinator.NewSweeper(svc, cfg.SweepCron, clock.New(), logger)
	if err != nil {
		logger.Error("failed to initialize sweeper", slog.String("error", err.Error()))

		return
	}

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

// makeStores builds the five coordinator stores: models, rounds, submissions,
// accounts and counters.
func makeStores(cfg envConfig) ([]storage.Storage, error) {
	names := []string{"models", "rounds", "submissions", "accounts", "counters"}
	stores := make([]storage.Storage, 0, len(names))

	switch cfg.StorageType {
	case "badger":
		for _, name := range names {
			s, err := storage.NewBadgerStorage(filepath.Join(cfg.StorageDir, name))
			if err != nil {
				return nil, err
			}
			stores = append(stores, s)
		}
	default:
		for range names {
			stores = append(stores, storage.NewInMemoryStorage())
		}
	}

	return stores, nil
}
