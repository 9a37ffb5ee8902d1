// Пакет server — HTTP-сервер ProCheck с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на внешнем прокси.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procheck/backend/internal/api/handlers"
	"github.com/procheck/backend/internal/api/middleware"
	"github.com/procheck/backend/internal/config"
	"github.com/procheck/backend/internal/domain/model"
)

// Server — HTTP-сервер ProCheck.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую; вход и подача
	// заявки на аккаунт по определению неаутентифицированы.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth,
			"/health/", "/metrics",
			"/api/v1/auth/login",
			"/api/v1/account-requests",
		))
	}

	registerRoutes(router, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// registerRoutes прописывает все маршруты API.
func registerRoutes(router chi.Router, h *handlers.APIHandler) {
	admin := middleware.RequireRole(model.RoleAdmin)
	senior := middleware.RequireRole(model.RoleSeniorInspector)
	adminOrSenior := middleware.RequireRole(model.RoleAdmin, model.RoleSeniorInspector)

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(admin).Post("/", h.CreateUser)
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Put("/{id}/password", h.ChangePassword)
			r.With(admin).Delete("/{id}", h.DeleteUser)
		})

		r.Route("/templates", func(r chi.Router) {
			r.With(senior).Post("/", h.CreateTemplate)
			r.Get("/", h.ListTemplates)
			r.Get("/{id}", h.GetTemplate)
			r.With(senior).Put("/{id}", h.UpdateTemplate)
			r.With(senior).Delete("/{id}", h.DeleteTemplate)
		})

		r.Route("/inspections", func(r chi.Router) {
			r.Post("/", h.CreateInspection)
			r.Get("/", h.ListInspections)
			r.Get("/{id}", h.GetInspection)
			r.Put("/{id}", h.UpdateInspection)
			r.Post("/{id}/assign", h.AssignInspection)
			r.Post("/{id}/cancel", h.CancelInspection)
			r.Post("/{id}/start", h.StartInspection)
			r.Put("/{id}/check-items", h.UpdateCheckItems)
			r.Patch("/{id}/check-items/{itemId}", h.UpdateCheckItemStatus)
			r.Put("/{id}/photos", h.UpdatePhotos)
			r.Post("/{id}/report", h.CreateReport)
			r.Get("/{id}/report", h.GetReportByInspection)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Get("/{id}", h.GetReport)
			r.Get("/{id}/document", h.GetReportDocument)
			r.With(adminOrSenior).Post("/{id}/lock", h.LockReport)
			r.With(admin).Delete("/{id}", h.DeleteReport)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", h.CreateChat)
			r.Get("/", h.ListChats)
			r.Get("/{id}", h.GetChat)
			r.Delete("/{id}", h.DeleteChat)
			r.Post("/{id}/messages", h.AddChatMessage)
			r.Put("/{id}/messages/{messageId}", h.UpdateChatMessage)
			r.Delete("/{id}/messages/{messageId}", h.DeleteChatMessage)
		})

		r.Route("/account-requests", func(r chi.Router) {
			r.Post("/", h.SubmitAccountRequest)
			r.With(admin).Get("/", h.ListAccountRequests)
			r.With(admin).Get("/{id}", h.GetAccountRequest)
			r.With(admin).Post("/{id}/approve", h.ApproveAccountRequest)
			r.With(admin).Post("/{id}/reject", h.RejectAccountRequest)
		})
	})
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская публичные пути.
// /api/v1/account-requests исключается только для POST (подача заявки);
// остальные операции над заявками требуют аутентификации.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if !strings.HasPrefix(r.URL.Path, prefix) {
					continue
				}
				if prefix == "/api/v1/account-requests" &&
					(r.Method != http.MethodPost || strings.TrimRight(r.URL.Path, "/") != prefix) {
					continue
				}
				next.ServeHTTP(w, r)
				return
			}

			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
