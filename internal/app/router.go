package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/middlewares"
	"github.com/Renal37/go-shop-payments/internal/models"
	"github.com/Renal37/go-shop-payments/internal/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	// Endpoint адрес и порт, на которых сервер будет слушать входящие запросы.
	Endpoint string
	// PaymentRateLimit допустимое число запросов к платежным эндпоинтам в секунду с одного IP, 0 отключает ограничение.
	PaymentRateLimit float64
}

type Router struct {
	config         Config
	authService    models.AuthService
	jwtService     models.JWTService
	orderService   models.OrderService
	paymentService models.PaymentService
}

// New создает новый экземпляр Router с заданными зависимостями.
func New(
	config Config,
	authService models.AuthService,
	jwtService models.JWTService,
	orderService models.OrderService,
	paymentService models.PaymentService,
) *Router {
	return &Router{
		config:         config,
		authService:    authService,
		jwtService:     jwtService,
		orderService:   orderService,
		paymentService: paymentService,
	}
}

// get возвращает настроенный роутер.
func (router *Router) get() chi.Router {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		// Инжектор сервисов для предоставления сервисов в обработчиках.
		middlewares.ServiceInjectorMiddleware(
			router.authService,
			router.jwtService,
			router.orderService,
			router.paymentService,
		),
		logger.RequestLogger,
		// Вебхук и страница возврата вызываются шлюзом и браузером без токена.
		middlewares.AuthMiddleware().WithExcludedPaths(
			"/api/user/register",
			"/api/user/login",
			"/api/payment/webhook",
			"/api/payment/success",
		).Middleware,
	)

	r.Route("/api/user", func(r chi.Router) {
		r.With(middlewares.JSONMiddleware[models.UnknownUser]).Post("/register", Register)
		r.With(middlewares.JSONMiddleware[models.UnknownUser]).Post("/login", Login)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.With(middlewares.JSONMiddleware[models.NewOrder]).Post("/", CreateOrder)
		r.Get("/", GetOrders)
		r.Get("/{orderID}", GetOrder)
		r.With(middlewares.AdminOnly, middlewares.JSONMiddleware[models.StatusUpdate]).Put("/{orderID}/status", UpdateOrderStatus)
	})

	r.Route("/api/payment", func(r chi.Router) {
		// Вебхук и страница возврата не ограничиваются по частоте.
		r.Get("/success", CheckoutSuccess)
		r.Post("/webhook", Webhook)

		r.Group(func(r chi.Router) {
			if router.config.PaymentRateLimit > 0 {
				r.Use(middlewares.NewRateLimiter(router.config.PaymentRateLimit, int(router.config.PaymentRateLimit)*2).Middleware)
			}

			r.With(middlewares.JSONMiddleware[models.PaymentRequest]).Post("/create-intent", CreateIntent)
			r.With(middlewares.JSONMiddleware[models.PaymentRequest]).Post("/create-checkout", CreateCheckout)
			r.With(middlewares.JSONMiddleware[models.ConfirmRequest]).Post("/confirm", ConfirmPayment)
			r.Get("/status/{paymentIntentID}", GetPaymentStatus)
			r.With(middlewares.AdminOnly, middlewares.OptionalJSONMiddleware[models.RefundRequest]).Post("/refund/{orderID}", Refund)
			r.With(middlewares.AdminOnly, middlewares.JSONMiddleware[models.SimulatedEvent]).Post("/simulate", SimulateEvent)
		})
	})

	return r
}

// Run запускает HTTP сервер и останавливает его при отмене контекста.
func (router *Router) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              router.config.Endpoint,
		Handler:           tracing.WrapHTTPHandler(router.get()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Info("server started", zap.String("address", router.config.Endpoint))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Log.Info("server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
