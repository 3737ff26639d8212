package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Seklfreak/cool-chat/internal/api"
	"github.com/Seklfreak/cool-chat/internal/board"
	"github.com/Seklfreak/cool-chat/internal/config"
	"github.com/Seklfreak/cool-chat/internal/events"
	"github.com/Seklfreak/cool-chat/internal/identity"
	"github.com/Seklfreak/cool-chat/internal/logger"
	"github.com/Seklfreak/cool-chat/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer st.Close(context.Background())

	var publisher board.CommitPublisher
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.TopicCommitted != "" {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommitted)
		defer producer.Close()
		publisher = producer
	}

	session := identity.NewSession(identity.NewHTTPAuthenticator(cfg.Identity.URL), log)
	session.Start(ctx)

	composer := board.NewComposer(st, session, publisher, log)
	stream := board.NewStream(st, cfg.Board.MessageLimit, cfg.LiveDraftWindow, log)
	presence := board.NewPresence(st, session, cfg.HeartbeatInterval, cfg.PresenceTTL, log)

	app, srv := api.NewServer(session, stream, presence, composer, log)
	stream.OnUpdate(func(board.StreamView) { srv.NotifyUpdate() })
	presence.OnUpdate(func([]board.PresenceRecord) { srv.NotifyUpdate() })

	go composer.Run(ctx)

	// trackers hold off until the identity resolves
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-session.Ready():
		}
		go func() {
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("message stream stopped", zap.Error(err))
			}
		}()
		go func() {
			if err := presence.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("presence tracker stopped", zap.Error(err))
			}
		}()
	}()

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		log.Info("state server listening", zap.String("addr", addr))
		errs <- app.Listen(addr)
	}()

	go readInput(ctx, composer, session, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		log.Fatal("server error", zap.Error(err))
	case s := <-sig:
		log.Info("signal received", zap.String("signal", s.String()))
	}

	cancel()
	if err := app.Shutdown(); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "mongo":
		return store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return store.NewRedisStore(client, cfg.Redis.Prefix, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// readInput drives the draft lifecycle from stdin. Every line rewrites the
// live draft; "/send" commits it, "/name <name>" changes the display name.
func readInput(ctx context.Context, composer *board.Composer, session *identity.Session, log *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		switch {
		case line == "/send":
			composer.OnSubmit(ctx)
		case strings.HasPrefix(line, "/name"):
			name := session.SetName(strings.TrimSpace(strings.TrimPrefix(line, "/name")))
			log.Info("display name changed", zap.String("name", name))
		default:
			composer.OnContentChange(ctx, line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("stdin read failed", zap.Error(err))
	}
}
