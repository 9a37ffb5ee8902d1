// Точка входа ProCheck — backend системы учёта проверок.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт репозитории, файловое хранилище документов и сервисный слой,
// запускает HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/procheck/backend/internal/api/handlers"
	"github.com/procheck/backend/internal/api/middleware"
	"github.com/procheck/backend/internal/config"
	"github.com/procheck/backend/internal/database"
	"github.com/procheck/backend/internal/docstore"
	"github.com/procheck/backend/internal/repository"
	"github.com/procheck/backend/internal/server"
	"github.com/procheck/backend/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("ProCheck запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Файловое хранилище документов отчётов
	docs, err := docstore.New(cfg.ReportsDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища документов",
			slog.String("dir", cfg.ReportsDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 6. Repositories
	userRepo := repository.NewUserRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)
	inspectionRepo := repository.NewInspectionRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	requestRepo := repository.NewAccountRequestRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 7. Services
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	chatsSvc := service.NewChatService(chatRepo, logger)
	usersSvc := service.NewUserService(userRepo, chatsSvc, logger)
	templatesSvc := service.NewTemplateService(templateRepo, logger)
	inspectionsSvc := service.NewInspectionService(
		inspectionRepo, templateRepo, userRepo,
		logger,
	)
	reportsSvc := service.NewReportService(
		reportRepo, inspectionRepo, userRepo,
		txRunner, docs,
		logger,
	)
	requestsSvc := service.NewAccountRequestService(
		requestRepo, userRepo, chatsSvc,
		txRunner,
		logger,
	)

	// 8. JWT middleware с кэшем пользователей
	jwtAuth := middleware.NewJWTAuth(
		authSvc, userRepo,
		cfg.UserCacheSize, cfg.UserCacheTTL,
		logger,
	)

	// 9. Readiness checker и health handler
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authSvc,
		usersSvc,
		templatesSvc,
		inspectionsSvc,
		reportsSvc,
		chatsSvc,
		requestsSvc,
		jwtAuth,
		logger,
	)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("ProCheck остановлен")
}
