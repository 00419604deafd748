package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gin "github.com/gin-gonic/gin"

	ginserver "filmtorget/internal/api/ginserver"
	authsvc "filmtorget/internal/auth"
	"filmtorget/internal/chat"
	"filmtorget/internal/config"
	domainauth "filmtorget/internal/domain/auth"
	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/profiles"
	"filmtorget/internal/domain/reviews"
	domainuser "filmtorget/internal/domain/user"
	"filmtorget/internal/feed"
	"filmtorget/internal/feed/kafka"
	"filmtorget/internal/obs"
	"filmtorget/internal/outbox"
	"filmtorget/internal/security"
	"filmtorget/internal/storage/memory"
	"filmtorget/internal/storage/mongodb"
	"filmtorget/internal/storage/scylladb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.shutdown()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store_mode", cfg.StoreMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	ready    func() error
	closers  []func()
}

func (a *application) shutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{ready: func() error { return nil }}
	hub := feed.NewHub(logger)

	var (
		chatStore    domainchat.Store
		listingRepo  listings.Repository
		profileRepo  profiles.Repository
		reviewRepo   reviews.Repository
		userRepo     domainuser.Repository
		sessionStore domainauth.SessionStore
		publisher    feed.Publisher
	)

	switch cfg.StoreMode {
	case config.StoreModeScylla:
		mongoClient, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Close(closeCtx); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		})

		session, err := scylladb.NewSession(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, session.Close)

		chatStore = scylladb.NewStore(session, logger)
		listingRepo = mongodb.NewListingRepository(mongoClient.DB)
		profileRepo = mongodb.NewProfileRepository(mongoClient.DB)
		reviewRepo = mongodb.NewReviewRepository(mongoClient.DB)
		userRepo = mongodb.NewUserRepository(mongoClient.DB)
		sessionStore = mongodb.NewSessionStore(mongoClient.DB)

		outboxStore := outbox.NewStore(mongoClient.DB)
		publisher = outboxStore

		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close failed", "error", err)
			}
		})
		worker := &outbox.Worker{
			Store:    outboxStore,
			Producer: producer,
			Topic:    cfg.KafkaTopic,
			Interval: cfg.OutboxPollInterval,
			Backoff:  cfg.RetryBackoff,
			Logger:   logger,
		}
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, hub, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("kafka consumer close failed", "error", err)
			}
		})
		go func() {
			if err := consumer.Run(ctx, []string{cfg.KafkaTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("feed consumer stopped", "error", err)
			}
		}()

		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return mongoClient.Ping(pingCtx)
		}

	default:
		// in-process mode: send events go straight to the local hub
		chatStore = memory.NewChatStore()
		listingRepo = memory.NewListingRepository()
		profileRepo = memory.NewProfileRepository()
		reviewRepo = memory.NewReviewRepository()
		userRepo = memory.NewUserRepository()
		sessionStore = memory.NewSessionStore()
		publisher = hub
	}

	chatService := &chat.Service{
		Store:       chatStore,
		Listings:    listingRepo,
		Profiles:    profileRepo,
		Reviews:     reviewRepo,
		Events:      publisher,
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	}
	authService := &authsvc.Service{
		Users:      userRepo,
		Profiles:   profileRepo,
		Sessions:   sessionStore,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	app.handlers = ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Profiles: profileRepo, Logger: logger},
		Chat:           ginserver.ChatHandler{Chat: chatService, Hub: hub, Logger: logger},
		AuthMiddleware: authMiddleware(authService, logger),
	}
	return app, nil
}

func authMiddleware(service *authsvc.Service, logger *slog.Logger) gin.HandlerFunc {
	mw := ginserver.AuthMiddleware{Service: service, Logger: logger}
	return mw.Handle
}
