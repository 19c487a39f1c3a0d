package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"prontoBack/internal/config"
	"prontoBack/internal/handlers"
	"prontoBack/internal/leads/pricing"
	"prontoBack/internal/repositories"
	"prontoBack/internal/services"
	"prontoBack/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger

	userRepo *repositories.UserRepository

	userHandler    *handlers.UserHandler
	requestHandler *handlers.RequestHandler
	walletHandler  *handlers.WalletHandler
	webhookHandler *handlers.StripeWebhookHandler

	signingKey string
	db         *sql.DB
}

func initializeApp(cfg config.Config, db *sql.DB, rdb *redis.Client, errorLog, infoLog *log.Logger) (*application, error) {
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	tiers := pricingTiers(cfg)
	if err := pricing.Validate(tiers); err != nil {
		return nil, err
	}

	// Repositories
	userRepo := repositories.UserRepository{DB: db}
	requestRepo := repositories.RequestRepository{DB: db}
	ledgerRepo := repositories.LedgerRepository{DB: db}
	walletRepo := repositories.WalletRepository{DB: db}
	webhookEventRepo := repositories.WebhookEventRepository{DB: db}

	// Services
	tokens, err := utils.NewManager(signingKey)
	if err != nil {
		return nil, err
	}
	userService := &services.UserService{UserRepo: &userRepo, WalletRepo: &walletRepo, Tokens: tokens}
	leadService := &services.LeadService{
		Requests:         &requestRepo,
		Ledger:           &ledgerRepo,
		Wallets:          &walletRepo,
		Tiers:            tiers,
		MinRechargeCents: cfg.Wallet.MinRechargeCents,
		MaxRechargeCents: cfg.Wallet.MaxRechargeCents,
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	stripeService, err := services.NewStripeService(services.StripeConfig{
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Tolerance:     time.Duration(cfg.Stripe.ToleranceSeconds) * time.Second,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	dispatcher := &services.WebhookDispatcher{
		Events:   &webhookEventRepo,
		Cache:    &services.RedisEventCache{RDB: rdb, TTL: 24 * time.Hour},
		Wallets:  &walletRepo,
		Users:    &userRepo,
		Notifier: &services.LogNotifier{Logger: logger},
		Logger:   logger,
	}

	// Handlers
	userHandler := &handlers.UserHandler{Service: userService}
	requestHandler := &handlers.RequestHandler{Service: leadService}
	walletHandler := &handlers.WalletHandler{Service: leadService}
	webhookHandler := &handlers.StripeWebhookHandler{Stripe: stripeService, Dispatcher: dispatcher}

	return &application{
		errorLog:       errorLog,
		infoLog:        infoLog,
		userRepo:       &userRepo,
		userHandler:    userHandler,
		requestHandler: requestHandler,
		walletHandler:  walletHandler,
		webhookHandler: webhookHandler,
		signingKey:     signingKey,
		db:             db,
	}, nil
}

func pricingTiers(cfg config.Config) []pricing.Tier {
	if len(cfg.Pricing.Tiers) == 0 {
		return pricing.Default()
	}
	tiers := make([]pricing.Tier, 0, len(cfg.Pricing.Tiers))
	for _, t := range cfg.Pricing.Tiers {
		tiers = append(tiers, pricing.Tier{
			MaxDistanceKm: t.MaxDistanceKm,
			PriceCents:    t.PriceCents,
			Name:          t.Name,
		})
	}
	return tiers
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Printf("Failed to open DB: %v", err)
		return nil, err
	}
	if err = db.Ping(); err != nil {
		log.Printf("Failed to ping DB: %v", err)
		return nil, err
	}
	db.SetMaxIdleConns(35)
	log.Println("Successfully connected to database")
	return db, nil
}
