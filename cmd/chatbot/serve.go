package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/analysis"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/config"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/forward"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/handlers"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/logger"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/orders"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/pipeline"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/proofs"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/server"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/tracking"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/wapi"
)

var configPath string

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideRedis,
			provideWAPIClient,
			wapi.NewRetriever,
			provideDispatcher,
			provideProofStore,
			provideOrdersService,
			provideForwardGateway,
			providePipelineService,
			providePipelinePool,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startTrackingScheduler,
			startPipelinePool,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideRedis(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return client
}

func provideWAPIClient(log *slog.Logger, cfg config.Config) *wapi.Client {
	return wapi.NewClient(log, cfg.WAPI.APIURL, cfg.WAPI.Token, cfg.WAPI.ConnectionKey, cfg.WAPI.MessageDelay)
}

func provideDispatcher(log *slog.Logger, cfg config.Config) *analysis.Dispatcher {
	vision := analysis.NewVisionClient(log, cfg.Analysis.BaseURL, cfg.Analysis.APIKey, cfg.Analysis.VisionModel)
	transcriber := analysis.NewTranscriptionClient(log, cfg.Analysis.BaseURL, cfg.Analysis.APIKey, cfg.Analysis.TranscriptionModel, cfg.Analysis.Language)
	policy := analysis.RetryPolicy{
		MaxAttempts:    cfg.Analysis.MaxAttempts,
		BaseDelay:      cfg.Analysis.BaseDelay,
		AttemptTimeout: cfg.Analysis.RequestTimeout,
	}
	return analysis.NewDispatcher(log, policy, vision, transcriber)
}

func provideProofStore(log *slog.Logger, cfg config.Config) *proofs.Store {
	return proofs.NewStore(log, cfg.Proofs.TTL)
}

func provideOrdersService(log *slog.Logger, redisClient *redis.Client, cfg config.Config) *orders.Service {
	return orders.NewService(log, redisClient, cfg.Orders.APIURL, cfg.Orders.Token, cfg.Orders.CacheTTL)
}

func provideForwardGateway(log *slog.Logger, client *wapi.Client, cfg config.Config) *forward.Gateway {
	return forward.NewGateway(log, client, cfg.WAPI.DepartmentNumber)
}

func providePipelineService(log *slog.Logger, retriever *wapi.Retriever, dispatcher *analysis.Dispatcher, store *proofs.Store, gateway *forward.Gateway, orderService *orders.Service) *pipeline.Service {
	return pipeline.NewService(log, retriever, dispatcher, store, gateway, orderService)
}

func providePipelinePool(log *slog.Logger, service *pipeline.Service, cfg config.Config) *pipeline.Pool {
	return pipeline.NewPool(log, service, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, cfg.Pipeline.TaskTimeout)
}

func providePingHandler(log *slog.Logger, store *proofs.Store) *handlers.PingHandler {
	return handlers.NewPingHandler(log, store)
}

func provideWebhookHandler(log *slog.Logger, pool *pipeline.Pool, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, pool, cfg.Server.WebhookSecret)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Handlers...)
}

func startSweeper(lc fx.Lifecycle, log *slog.Logger, store *proofs.Store, cfg config.Config) {
	sweeper := proofs.NewSweeper(log, store, cfg.Proofs.SweepSchedule)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return sweeper.Start() },
		OnStop:  func(_ context.Context) error { sweeper.Stop(); return nil },
	})
}

func startTrackingScheduler(lc fx.Lifecycle, log *slog.Logger, client *wapi.Client, cfg config.Config) error {
	if !cfg.Tracking.Enabled() {
		log.Info("tracking summary disabled, no api key or recipient configured")
		return nil
	}
	summary := tracking.NewSummary(log, tracking.NewClient(log, cfg.Tracking.APIURL, cfg.Tracking.APIKey), client, cfg.Tracking.Recipient)
	scheduler, err := tracking.NewScheduler(log, summary, cfg.Tracking.Schedule, cfg.Tracking.Timezone)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return scheduler.Start() },
		OnStop:  func(_ context.Context) error { scheduler.Stop(); return nil },
	})
	return nil
}

func startPipelinePool(lc fx.Lifecycle, pool *pipeline.Pool) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { pool.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return pool.Shutdown(ctx) },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
