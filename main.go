package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend_panelhub/api"
	"backend_panelhub/config"
	"backend_panelhub/database"
	"backend_panelhub/logger"
	"backend_panelhub/metrics"
	"backend_panelhub/middleware"
	"backend_panelhub/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	issueFor := flag.String("issue-token", "", "выпустить токен оператора и выйти")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	issuer, err := services.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiresIn)
	if err != nil {
		log.Fatal("❌ Ошибка настройки JWT", zap.Error(err))
	}

	if *issueFor != "" {
		token, err := issuer.IssueToken(*issueFor, time.Now())
		if err != nil {
			log.Fatal("❌ Ошибка выпуска токена", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, issuer, log); err != nil {
		log.Fatal("❌ Сервер остановлен с ошибкой", zap.Error(err))
	}
}

func run(cfg *config.Config, issuer *services.TokenIssuer, log *zap.Logger) error {
	currencies, err := config.LoadCurrencyTable(cfg.Ledger.CurrenciesFile)
	if err != nil {
		return err
	}

	log.Info("🔧 Инициализация базы данных...")
	if err := database.CreateDatabaseIfNotExists(cfg, log); err != nil {
		return fmt.Errorf("ошибка при создании базы данных: %w", err)
	}
	db, err := database.ConnectDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("ошибка миграции: %w", err)
	}
	if err := database.CreatePerformanceIndexes(db, log); err != nil {
		log.Warn("⚠️  Индексы не созданы", zap.Error(err))
	}
	log.Info("✅ База данных успешно инициализирована")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		if redisClient, err = database.InitRedis(ctx, cfg, log); err != nil {
			log.Warn("⚠️  Redis недоступен, rate limiting и кэш отчетов отключены", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	encryptionKey := cfg.JWT.EncryptionKey
	if encryptionKey == "" {
		encryptionKey = cfg.JWT.Secret
	}
	vault := services.NewCredentialVault(encryptionKey)
	clock := services.SystemClock{Location: cfg.Location()}

	subscriptions := services.NewSubscriptionService(db, vault, currencies, clock, log)
	panels := services.NewPanelService(db, vault, clock, log)
	svc := api.Services{
		Catalog:       services.NewCatalogService(db, log),
		Panels:        panels,
		Subscriptions: subscriptions,
		Clients:       services.NewClientService(db, subscriptions, currencies, log),
		Projects:      services.NewProjectService(db, log),
		Payments:      services.NewPaymentService(db, clock, log),
		Cuts:          services.NewCutService(db, currencies, log),
		Reports:       services.NewReportService(db, clock, log),
	}

	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.New(metrics.Config{ServiceName: "panelhub", Environment: cfg.App.Env})
	}

	if cfg.Scheduler.Enabled {
		scheduler := services.NewDigestScheduler(cfg, subscriptions, panels, newNotifier(cfg, log), clock, log)
		if appMetrics != nil {
			scheduler.SetObserver(appMetrics)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("ошибка запуска планировщика: %w", err)
		}
		defer scheduler.Stop()
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logger.GinMiddleware(log), gin.Recovery())
	if appMetrics != nil {
		r.Use(appMetrics.GinMiddleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(appMetrics.Handler()))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		ExposeHeaders:    []string{logger.RequestIDHeader, "Content-Disposition"},
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	api.NewSystemAPI(db, redisClient, cfg.App.Version).RegisterRoutes(r)

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.NewAuthMiddleware(issuer).RequireAuth())
	apiGroup.Use(middleware.RateLimit(redisClient, middleware.RateLimitConfig{
		Requests:     cfg.Security.RateLimitRequests,
		Window:       cfg.Security.RateLimitWindow,
		KeyGenerator: middleware.UserKeyGenerator,
	}, log))
	reportCache := services.NewCacheService(redisClient, log)
	apiGroup.Use(middleware.InvalidateReportCache(reportCache, log))
	api.NewAuthAPI(issuer).RegisterRoutes(apiGroup)
	api.RegisterRoutes(apiGroup, svc, api.RouterOptions{
		Cache:          reportCache,
		Location:       cfg.Location(),
		WarningDays:    cfg.Scheduler.WarningDays,
		PanelAlertDays: cfg.Ledger.PanelAlertDays,
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.App.Host, cfg.App.Port),
		Handler:      r,
		ReadTimeout:  cfg.Security.RequestTimeout,
		WriteTimeout: cfg.Security.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 Сервер запущен", zap.String("addr", server.Addr), zap.String("env", cfg.App.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 Остановка сервера...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newNotifier отправляет сводку в Telegram, если задан токен бота, иначе пишет ее в лог
func newNotifier(cfg *config.Config, log *zap.Logger) services.Notifier {
	if cfg.Telegram.BotToken == "" {
		return services.NewLogNotifier(log)
	}
	notifier, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	if err != nil {
		log.Warn("⚠️  Telegram недоступен, сводка пишется в лог", zap.Error(err))
		return services.NewLogNotifier(log)
	}
	return notifier
}
