package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/cache"
	"github.com/magabrotheeeer/hr-storefront/internal/config"
	"github.com/magabrotheeeer/hr-storefront/internal/gateway"
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/migrations"
	"github.com/magabrotheeeer/hr-storefront/internal/receipt"
	"github.com/magabrotheeeer/hr-storefront/internal/services/account"
	"github.com/magabrotheeeer/hr-storefront/internal/services/catalog"
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
	"github.com/magabrotheeeer/hr-storefront/internal/services/lead"
	"github.com/magabrotheeeer/hr-storefront/internal/services/profile"
	"github.com/magabrotheeeer/hr-storefront/internal/services/reconcile"
	"github.com/magabrotheeeer/hr-storefront/internal/storage"
)

// CredentialKey ключ Redis, под которым хранится токен backend.
const CredentialKey = "token"

type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *storage.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
	reconciler *reconcile.ReconcileService
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if _, err = migrations.Run(db.DB, os.DirFS(cfg.MigrationsPath), logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Exchange, rabbitmq.ReceiptQueues(rabbitmq.RetryPolicy{
		MaxRedeliveries: cfg.RabbitMQ.MessageRedeliveries,
		Delay:           cfg.RabbitMQ.MessageRetryDelay,
	}))
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	gw := gateway.New(gateway.Config{
		BaseURL:    cfg.Backend.BaseURL,
		TokenPath:  cfg.Backend.TokenPath,
		Identity:   cfg.Backend.Identity,
		AuthScheme: cfg.Backend.AuthScheme,
		Timeout:    cfg.Backend.Timeout,
	}, cache.NewCredentialStore(cacheRedis, CredentialKey), logger)
	client := backend.New(gw)

	catalogService := catalog.New(client, cacheRedis, cfg.Catalog.CacheTTL, logger)
	checkoutService := checkout.New(checkout.Dependencies{
		Store:     checkout.NewCacheStore(cacheRedis, cfg.Checkout.SessionTTL),
		Catalog:   catalogService,
		Ledger:    db,
		Backend:   client,
		Publisher: rabbitmq.NewPublisher(ch, rabbitmq.Exchange),
		Renderer:  receipt.NewGenerator(cfg.Payment.MerchantName),
	}, cfg.Payment, cfg.Checkout, logger)

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	services := Services{
		Account:  account.New(client, cacheRedis, tokens, gw, cfg.Account.GSTVerificationTTL, logger),
		Catalog:  catalogService,
		Checkout: checkoutService,
		Profile:  profile.New(client, cacheRedis, cfg.Profile.OTPCooldown, cfg.Profile.OTPVerifiedTTL, logger),
		Lead:     lead.New(client, logger),
	}

	proxies, err := middlewarectx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, proxies)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
		reconciler: reconcile.NewReconcileService(db, client, reconcile.Options{
			Interval:    cfg.Reconcile.Interval,
			Grace:       cfg.Reconcile.Grace,
			BatchSize:   cfg.Reconcile.BatchSize,
			MaxAttempts: cfg.Reconcile.MaxAttempts,
		}, logger),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.reconciler.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
