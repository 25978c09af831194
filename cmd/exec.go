package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticket-platform/config"
	"ticket-platform/internal/handlers"
	"ticket-platform/internal/services"
	"ticket-platform/internal/services/gateway"
	"ticket-platform/internal/services/notify"
	_ "ticket-platform/migrations"
	"ticket-platform/monitoring"
	"ticket-platform/security"
	"ticket-platform/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	monitor := monitoring.NewMonitor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment gateway
	gw, sandbox, err := newGateway(ctx, cfg, monitor)
	if err != nil {
		return err
	}

	// Notifications
	broker, err := notify.NewPublisher(cfg)
	if err != nil {
		return err
	}
	publisher := notify.NewAsyncPublisher(broker, cfg.NotifyDriver, cfg.NotifyBuffer, runtime.NumCPU(), monitor)

	// Initialize services
	events := services.NewEventStore(app)
	payments := services.NewPaymentStore(app, cfg.CurrencyMinorUnits)
	tickets := services.NewTicketService(app, payments, events, monitor)
	locker := services.MultiLocker{
		services.NewLocalLocker(),
		services.NewRedisLocker(redisClient, cfg.ValidationLockTTL),
	}
	checkout := services.NewCheckoutService(app, payments, tickets, events, gw, publisher, locker, monitor,
		services.CheckoutConfig{EmailTicketTopic: cfg.EmailTicketTopic})

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(checkout, payments, sandbox)
	ticketHandler := handlers.NewTicketHandler(tickets)
	webhookHandler := handlers.NewWebhookHandler(checkout, cfg.StripeWebhookSecret)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute, monitor)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Payment endpoints
		payment := e.Router.Group("/api/v1/payment")
		payment.POST("/checkout", paymentHandler.Checkout).
			BindFunc(limiter.AntiBot(), limiter.Limit("checkout"))
		payment.POST("/stripe-session", paymentHandler.CreateStripeSession).
			BindFunc(limiter.Limit("stripe-session"))
		payment.POST("/{paymentId}/validate", paymentHandler.ValidateStripeSession).
			BindFunc(limiter.Limit("validate"))
		payment.POST("/webhook/stripe", webhookHandler.Stripe)
		payment.GET("", paymentHandler.ListPayments)
		payment.GET("/{paymentId}", paymentHandler.GetPayment)
		payment.GET("/user/{userId}", paymentHandler.ListPaymentsByUser)
		payment.GET("/event/{eventId}", paymentHandler.ListPaymentsByEvent)

		// Ticket endpoints
		ticket := e.Router.Group("/api/v1/ticket")
		ticket.GET("/{ticketId}", ticketHandler.GetTicket)
		ticket.GET("/payment/{paymentId}", ticketHandler.GetTicketsByPayment)
		ticket.PATCH("/{ticketId}", ticketHandler.UpdateTicketInfo)
		ticket.PATCH("/{ticketId}/terminate", ticketHandler.TerminateTicket)

		// Test endpoint for payment simulation
		if cfg.IsDevelopment() && sandbox != nil {
			e.Router.POST("/api/v1/test/simulate-payment", paymentHandler.SimulatePayment)
		}

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		slog.Info("Server routes registered",
			"gateway", gw.Provider(),
			"notify_driver", cfg.NotifyDriver,
			"environment", cfg.Environment)

		return e.Next()
	})

	// Flush pending notifications before exit
	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		shutdown(publisher, broker)
		return e.Next()
	})

	// Bind serve to PORT unless --http is given
	if len(os.Args) == 2 && os.Args[1] == "serve" {
		os.Args = append(os.Args, "--http=0.0.0.0:"+cfg.Port)
	}

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// newGateway builds the configured provider behind the timeout and circuit
// breaker. The sandbox adapter is also returned so its simulate endpoint can
// be mounted.
func newGateway(ctx context.Context, cfg *config.Config, monitor *monitoring.Monitor) (gateway.Gateway, *gateway.SandboxAdapter, error) {
	provider := gateway.Provider(cfg.GatewayProvider)

	var providerCfg any
	if provider == gateway.ProviderStripe {
		providerCfg = &gateway.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			Currency:   cfg.PaymentCurrency,
			MinorUnits: cfg.CurrencyMinorUnits,
			APIURL:     cfg.StripeAPIURL,
		}
	}

	gw, err := gateway.NewFactory().CreateGateway(ctx, provider, providerCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("payment gateway: %w", err)
	}

	sandbox, _ := gw.(*gateway.SandboxAdapter)
	return gateway.NewResilient(gw, cfg.GatewayTimeout, monitor), sandbox, nil
}

func shutdown(publisher *notify.AsyncPublisher, broker notify.Publisher) {
	log.Println("Shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := publisher.Close(ctx); err != nil {
		slog.Error("notifications not flushed", "error", err)
	}
	if c, ok := broker.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Error("failed to close notification broker", "error", err)
		}
	}
}
