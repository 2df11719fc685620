// Package httpapi — REST-граница сервиса: маршруты chi, валидация ввода,
// конверт ответа, проверка JWT и идемпотентность POST-запросов.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/auth"
	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/metrics"
)

const defaultRequestTimeout = 15 * time.Second

// Config описывает зависимости роутера. Auth и Idempotency необязательны.
type Config struct {
	Engine         Engine
	Auth           *auth.Authenticator
	Idempotency    domain.IdempotencyRepository
	IdempotencyTTL time.Duration
	Metrics        *metrics.HTTPMetrics
	Logger         *log.Entry
	RequestTimeout time.Duration
	CORS           CORSConfig
}

// CORSConfig — политика для браузерных клиентов. Пустой AllowedOrigins отключает CORS.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func (c CORSConfig) handler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Location", IdempotentReplayHeader},
		AllowCredentials: c.AllowCredentials,
		MaxAge:           int(c.MaxAge / time.Second),
	})
}

// NewRouter собирает http.Handler с маршрутами под /api.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	h := &handler{engine: cfg.Engine, auth: cfg.Auth, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger, cfg.Metrics))
	r.Use(recoverPanic(logger))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cfg.CORS.handler())
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(limitBody)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(requireBearer(cfg.Auth, logger))
			r.Use(idempotent(cfg.Idempotency, cfg.IdempotencyTTL, logger))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.listOrders)
				r.Get("/paginated", h.listOrdersPaged)
				r.Post("/", h.createOrder)
				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", h.getOrder)
					r.Delete("/", h.deleteOrder)
					r.Post("/items", h.addItem)
					r.Put("/state", h.setOrderState)
				})
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.listProducts)
				r.Get("/paginated", h.listProductsPaged)
				r.Post("/", h.createProduct)
				r.Route("/{productId}", func(r chi.Router) {
					r.Get("/", h.getProduct)
					r.Put("/", h.updateProduct)
					r.Delete("/", h.deleteProduct)
				})
			})
		})
	})

	return r
}
