package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chathubhq/chathub/internal/channel/adapters/instagram"
	"github.com/chathubhq/chathub/internal/channel/adapters/messenger"
	"github.com/chathubhq/chathub/internal/channel/adapters/whatsapp"
	"github.com/chathubhq/chathub/internal/config"
	"github.com/chathubhq/chathub/internal/dedup"
	"github.com/chathubhq/chathub/internal/handlers"
	"github.com/chathubhq/chathub/internal/logger"
	"github.com/chathubhq/chathub/internal/meta"
	"github.com/chathubhq/chathub/internal/realtime"
	"github.com/chathubhq/chathub/internal/relay"
	"github.com/chathubhq/chathub/internal/server"
	"github.com/chathubhq/chathub/internal/storage"
	"github.com/chathubhq/chathub/internal/store"
	"github.com/chathubhq/chathub/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideMongoClient,
			provideStoreService,
			provideGuard,
			provideHub,
			provideMetaClient,
			provideObjectStore,
			provideWhatsAppSender,
			provideInstagramSender,
			provideMessengerSender,
			provideRelay,
			provideNormalizer,
			provideDisplayZone,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideWhatsAppHandler),
			provideServerHandler(provideInstagramHandler),
			provideServerHandler(provideMessengerHandler),
			provideServerHandler(provideConversationsHandler),
			provideServerHandler(provideRealtimeHandler),
			provideServer,
		),
		fx.Invoke(
			startDedupSweep,
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
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideMongoClient(lc fx.Lifecycle, cfg config.Config) (*mongo.Client, error) {
	client, err := store.Open(context.Background(), cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Disconnect(ctx) }})
	return client, nil
}

func provideStoreService(log *slog.Logger, client *mongo.Client, cfg config.Config) *store.Service {
	return store.NewService(log, client, cfg.Mongo)
}

func provideGuard(log *slog.Logger, cfg config.Config) *dedup.Guard {
	ttl, err := time.ParseDuration(cfg.Dedup.TTL)
	if err != nil {
		log.Warn("invalid dedup ttl, using default", slog.String("ttl", cfg.Dedup.TTL))
		ttl = dedup.DefaultTTL
	}
	return dedup.NewGuard(ttl)
}

func provideHub(lc fx.Lifecycle, log *slog.Logger) *realtime.Hub {
	hub := realtime.NewHub(log)
	lc.Append(fx.Hook{OnStop: func(context.Context) error { hub.Close(); return nil }})
	return hub
}

func provideMetaClient(log *slog.Logger, cfg config.Config) *meta.Client {
	return meta.NewClient(log, cfg.Meta)
}

func provideObjectStore(log *slog.Logger, cfg config.Config) (*storage.S3Store, error) {
	return storage.NewS3Store(context.Background(), log, cfg.Storage)
}

func provideWhatsAppSender(log *slog.Logger, cfg config.Config) *whatsapp.Sender {
	return whatsapp.NewSender(log, cfg.Meta)
}

func provideInstagramSender(log *slog.Logger, cfg config.Config) *instagram.Sender {
	return instagram.NewSender(log, cfg.Meta)
}

func provideMessengerSender(log *slog.Logger, cfg config.Config) *messenger.Sender {
	return messenger.NewSender(log, cfg.Meta)
}

func provideRelay(log *slog.Logger, cfg config.Config) *relay.Relay {
	return relay.New(log, cfg.Relay)
}

func provideNormalizer(log *slog.Logger, st *store.Service, guard *dedup.Guard, client *meta.Client, objects *storage.S3Store, hub *realtime.Hub, fw *relay.Relay) *webhook.Normalizer {
	return webhook.NewNormalizer(log, st, guard, client, client, objects, hub, fw)
}

func provideDisplayZone(log *slog.Logger, cfg config.Config) *time.Location {
	zone, err := time.LoadLocation(cfg.Time.DisplayZone)
	if err != nil {
		log.Warn("invalid display zone, using UTC", slog.String("zone", cfg.Time.DisplayZone))
		return time.UTC
	}
	return zone
}

func providePingHandler(client *mongo.Client) *handlers.PingHandler {
	return handlers.NewPingHandler(client)
}

func provideWebhookHandler(cfg config.Config, normalizer *webhook.Normalizer, log *slog.Logger) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(cfg.Meta.VerifyToken, normalizer, log)
}

func provideWhatsAppHandler(sender *whatsapp.Sender, objects *storage.S3Store, st *store.Service, hub *realtime.Hub, zone *time.Location, log *slog.Logger) *handlers.WhatsAppHandler {
	return handlers.NewWhatsAppHandler(sender, objects, st, hub, zone, log)
}

func provideInstagramHandler(sender *instagram.Sender, objects *storage.S3Store, st *store.Service, hub *realtime.Hub, zone *time.Location, log *slog.Logger) *handlers.InstagramHandler {
	return handlers.NewInstagramHandler(sender, objects, st, hub, zone, log)
}

func provideMessengerHandler(sender *messenger.Sender, st *store.Service, hub *realtime.Hub, zone *time.Location, log *slog.Logger) *handlers.MessengerHandler {
	return handlers.NewMessengerHandler(sender, st, hub, zone, log)
}

func provideConversationsHandler(st *store.Service, zone *time.Location, log *slog.Logger) *handlers.ConversationsHandler {
	return handlers.NewConversationsHandler(st, zone, log)
}

func provideRealtimeHandler(hub *realtime.Hub, log *slog.Logger) *handlers.RealtimeHandler {
	return handlers.NewRealtimeHandler(hub, log)
}

type serverParams struct {
	fx.In
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(p serverParams) *server.Server {
	return server.NewServer(p.Config.Server.Addr, p.ServerHandlers)
}

// startDedupSweep evicts expired webhook fingerprints on the configured
// schedule so the guard's memory stays bounded between deliveries.
func startDedupSweep(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, guard *dedup.Guard) error {
	c := cron.New()
	if _, err := c.AddFunc(cfg.Dedup.SweepSpec, func() {
		guard.Sweep()
		log.Debug("dedup sweep done", slog.Int("entries", guard.Len()))
	}); err != nil {
		return fmt.Errorf("dedup sweep schedule: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { c.Start(); return nil },
		OnStop:  func(ctx context.Context) error { <-c.Stop().Done(); return nil },
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting server", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
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
