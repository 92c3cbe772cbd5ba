package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sable-im/sable/internal/api"
	"github.com/sable-im/sable/internal/chat"
	"github.com/sable-im/sable/internal/config"
	"github.com/sable-im/sable/internal/events"
	"github.com/sable-im/sable/internal/group"
	"github.com/sable-im/sable/internal/identity"
	"github.com/sable-im/sable/internal/logger"
	"github.com/sable-im/sable/internal/media"
	"github.com/sable-im/sable/internal/presence"
	"github.com/sable-im/sable/internal/profile"
	"github.com/sable-im/sable/internal/roster"
	"github.com/sable-im/sable/internal/storage"
	"github.com/sable-im/sable/internal/store"
	"github.com/sable-im/sable/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.Server.Development})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		zlog.Fatalw("mongo connect", "err", err)
	}
	defer func() { _ = st.Disconnect(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	objects, err := storage.NewS3Store(ctx, cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.Endpoint, cfg.Storage.PublicRead)
	if err != nil {
		zlog.Fatalw("s3 init", "err", err)
	}

	verifier, err := identity.NewVerifier(cfg.Identity.PublicKeyPath)
	if err != nil {
		zlog.Fatalw("identity verifier", "err", err)
	}
	idp := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.APIKey)

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
	defer func() { _ = producer.Close() }()
	consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, zlog)
	defer func() { _ = consumer.Close() }()

	presenceStore := presence.NewStore(rdb, st.Profiles, cfg.Redis.Prefix, cfg.PresenceTTL)

	mediaSvc := media.NewService(st.Media, objects, st.Attachments, cfg.PresignTTL)
	chatSvc := chat.NewService(st.Messages, st.GroupMessages, st.Groups, st.Profiles, st.Media, producer)
	rosterSvc := roster.NewService(st.Messages, st.Groups, st.GroupMessages, st.Profiles, presenceStore)
	groupSvc := group.NewService(st.Groups, st.Profiles, producer)
	profileSvc := profile.NewService(st.Profiles, mediaSvc, producer)

	wsrv := ws.NewServer(verifier, presenceStore, rdb, cfg.Redis.Prefix, zlog)
	go consumer.Start(ctx, wsrv.HandleEnvelope)
	go wsrv.RunRelay(ctx)

	limiter := api.NewRateLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.Limit, cfg.RateWindow)
	handlers := &api.Handlers{
		Identity: idp,
		Profiles: st.Profiles,
		Roster:   rosterSvc,
		Chat:     chatSvc,
		Groups:   groupSvc,
		Profile:  profileSvc,
		Media:    mediaSvc,
	}
	app := api.NewServer(cfg, handlers, verifier, limiter, wsrv)

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("sable started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	zlog.Infow("sable stopped")
}
