package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/nft-agents-console/internal/console/handler"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/engine"
	"github.com/xela07ax/nft-agents-console/internal/infra/auth"
	"go.uber.org/zap"
)

// Handlers: обработчики бизнес-доменов консоли
type Handlers struct {
	Auth      *handler.AuthHandler      // /api/v1/auth
	Agents    *handler.AgentHandler     // /api/v1/agents
	Catalog   *handler.CatalogHandler   // /api/v1/targets, /capabilities, /compatibility
	Runs      *handler.RunHandler       // /api/v1/selection, /runs
	Admin     *handler.AdminHandler     // /api/v1/users, /settings
	Dashboard *handler.DashboardHandler // /api/v1/dashboard
	Audit     *handler.AuditHandler     // /api/v1/audit
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка сессии для защищенных маршрутов (session.Store)
	guard    auth.Guardian
	gatherer prometheus.Gatherer

	h Handlers
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями.
// gatherer == nil, /metrics отдает глобальный реестр.
func NewConsoleServer(logger *zap.Logger, guard auth.Guardian, gatherer prometheus.Gatherer, h Handlers) *ConsoleServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &ConsoleServer{
		router:   chi.NewRouter(),
		logger:   logger.Named("console-api"),
		guard:    guard,
		gatherer: gatherer,
		h:        h,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		r.Post("/api/v1/auth/login", s.h.Auth.Login)
		r.Post("/api/v1/auth/register", s.h.Auth.Register)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют действующую сессию) ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.guard, "", s.logger))

		// Сессия
		r.Route("/auth", func(r chi.Router) {
			r.Post("/refresh", s.h.Auth.Refresh)
			r.Post("/logout", s.h.Auth.Logout)
			r.Get("/me", s.h.Auth.Me)
			r.Patch("/me", s.h.Auth.UpdateProfile)
		})

		// Dashboard & Stats
		r.Get("/dashboard", s.h.Dashboard.GetDashboard)

		// Агенты: деплой, стоп, конфигурация
		r.Mount("/agents", s.h.Agents.Routes())

		// Справочники и совместимость
		r.Mount("/targets", s.h.Catalog.TargetRoutes())
		r.Mount("/capabilities", s.h.Catalog.CapabilityRoutes())
		r.Get("/compatibility", s.h.Catalog.Compatibility)

		// Выбор и запуски
		r.Mount("/selection", s.h.Runs.SelectionRoutes())
		r.Mount("/runs", s.h.Runs.RunRoutes())

		// Аудит (Observability)
		r.Get("/audit", s.h.Audit.GetLogs)

		// Администрирование: отдельные права
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(s.guard, domain.PermissionManageUsers, s.logger))
			r.Mount("/users", s.h.Admin.UserRoutes())
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(s.guard, domain.PermissionManageSettings, s.logger))
			r.Mount("/settings", s.h.Admin.SettingsRoutes())
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
