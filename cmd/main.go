package main

import (
	"context"
	"errors"
	"identityradio/backend/internal/api/handler"
	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/chathub"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/localization"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/radio"
	"identityradio/backend/internal/session"
	"identityradio/backend/internal/storage"
	"identityradio/backend/internal/telegram"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg config.Config) (*gorm.DB, *redis.Client) {
	// 1. База даних
	db, err := storage.Open(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	// 2. Міграції (Створення таблиць)
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// 3. Redis
	if cfg.RedisAddr == "off" {
		log.Println("WARN: Redis disabled, vote guard is process-local")
		return db, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Identity Radio backend...")

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies(ctx, cfg)
	feed, err := changefeed.New(cfg.ChangeFeed, changefeed.Deps{Redis: rdb, DB: db, DSN: cfg.DBURL})
	if err != nil {
		log.Fatalf("Failed to set up change feed: %v", err)
	}
	s := storage.NewStorageService(db, rdb, feed)

	// 2. Realtime hub та сервіси
	hub := chathub.NewManagerService(feed)
	admins := session.NewAdminResolver(s, cfg.JWTSecret)
	songs := radio.NewSongService(s, admins)

	upstream := metadata.NewUpstream(cfg.StationNowPlayingURL, cfg.CoverSearchURL)
	announcer := metadata.NewAnnouncer()
	refresher := metadata.NewRefresher(upstream, upstream, announcer)

	// 3. Telegram (необов'язково)
	if cfg.TelegramBotToken != "" {
		l := localization.Default()
		bot, err := telegram.NewBotService(cfg.TelegramBotToken, songs, announcer, l, cfg.Lang)
		if err != nil {
			log.Fatalf("Failed to start Telegram bot: %v", err)
		}
		go bot.Run(ctx)

		if cfg.TelegramChannelID != 0 {
			notifier := telegram.NewChannelNotifier(bot.BotAPI, cfg.TelegramChannelID, l, cfg.Lang)
			announcer.Add(notifier)
			go notifier.Run(ctx)
		}
	} else {
		log.Println("INFO: TELEGRAM_BOT_TOKEN not set, Telegram disabled")
	}

	// 4. Запуск основних Goroutines
	go hub.Run(ctx)
	go refresher.Run(ctx)

	// 5. Gin та роутинг
	h := handler.NewHandler(handler.Handler{
		Hub:             hub,
		Sessions:        session.NewResolver(s),
		Admins:          admins,
		Chat:            radio.NewChatService(s),
		Songs:           songs,
		Polls:           radio.NewPollService(s, admins),
		Metadata:        upstream,
		Covers:          upstream,
		Announcer:       announcer,
		TrustRemoteAddr: cfg.TrustRemoteAddr,
	})

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("INFO: listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("INFO: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	<-hub.Done()
	if rdb != nil {
		_ = rdb.Close()
	}
}
