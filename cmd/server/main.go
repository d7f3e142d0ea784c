package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/database"
	"github.com/iliyamo/marketplace-backend/internal/handler"
	"github.com/iliyamo/marketplace-backend/internal/jobs"
	"github.com/iliyamo/marketplace-backend/internal/logging"
	"github.com/iliyamo/marketplace-backend/internal/queue"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/router"
	"github.com/iliyamo/marketplace-backend/internal/service"
	"github.com/iliyamo/marketplace-backend/internal/tokenstore"
)

func main() {
	cfg := config.Load() // Load environment config
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		log.WithError(err).Fatal("cache config")
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		log.WithError(err).Fatal("rate limit config")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()
	if err := database.MigrateUp(db); err != nil {
		log.WithError(err).Fatal("apply migrations")
	}

	// Redis is optional: without it reset tokens live in process, the
	// response cache is off and rate limiting is per instance.
	rdb := config.NewRedisClient()
	var resets tokenstore.ResetTokenStore
	if rdb != nil {
		defer rdb.Close()
		resets = tokenstore.NewRedis(rdb, "pwreset")
	} else {
		log.Warn("redis unavailable; using in-memory reset tokens and rate limits")
		resets = tokenstore.NewMemory()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, log)
		defer pub.Close()
		events = pub
		consumer := &queue.Consumer{URL: cfg.RabbitURL, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("order consumer stopped")
			}
		}()
	} else {
		log.Info("RABBITMQ_URL not set; order events are not published")
	}

	// Repositories
	accountRepo := repository.NewAccountRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	shopRepo := repository.NewShopRepo(db)
	productRepo := repository.NewProductRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	offerRepo := repository.NewOfferRepo(db)
	chatRepo := repository.NewChatRepo(db)
	notificationRepo := repository.NewNotificationRepo(db)

	// Services
	notifier := service.NewNotifier(notificationRepo, accountRepo, log)
	if cfg.IsProduction() {
		log.Warn("no mail transport configured; password reset mails are written to the log")
	}
	mailer := service.LogMailer{Log: log}
	accounts := service.NewAccountService(accountRepo, tokenRepo, productRepo, resets, mailer, notifier, service.AuthSettings{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL(),
		BcryptCost: cfg.BcryptCost,
		ResetTTL:   cfg.ResetTTL,
	}, log)
	shops := service.NewShopService(shopRepo)
	products := service.NewProductService(productRepo, shops, notifier)
	orders := service.NewOrderService(orderRepo, accountRepo, notifier, events, log)
	offers := service.NewOfferService(offerRepo, productRepo, notifier)
	chats := service.NewChatService(chatRepo, orderRepo)
	inbox := service.NewInboxService(notificationRepo)

	scheduler := jobs.NewScheduler(log)
	purge := &jobs.PurgeTokens{Tokens: tokenRepo, Grace: 24 * time.Hour, Log: log}
	if err := scheduler.Add("refresh-token-purge", cfg.PurgeSchedule, purge); err != nil {
		log.WithError(err).Fatal("schedule jobs")
	}
	scheduler.Start()

	e := router.New(&router.Deps{
		Log:         log,
		Secret:      cfg.JWTSecret,
		CookieName:  cfg.CookieName,
		CORSOrigins: cfg.CORSOrigins,
		Accounts:    accountRepo,
		Redis:       rdb,
		Cache:       cacheCfg,
		RateLimit:   rlCfg,
		Health:      &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:        handler.NewAuthHandler(accounts, handler.CookieSettings{Name: cfg.CookieName, Secure: cfg.CookieSecure}),
		Account:     handler.NewAccountHandler(accounts),
		Catalog:     handler.NewCatalogHandler(shops, products),
		Orders:      handler.NewOrderHandler(orders),
		Offers:      handler.NewOfferHandler(offers),
		Chats:       handler.NewChatHandler(chats),
		Inbox:       handler.NewNotificationHandler(inbox),
		Admin:       handler.NewAdminHandler(accounts, products),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	scheduler.Stop(shutdownCtx)
}
