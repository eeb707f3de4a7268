package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"legal-consult/config"
	"legal-consult/handlers"
	"legal-consult/internal/services/payment"
	"legal-consult/internal/services/summarizer"
	_ "legal-consult/migrations"
	"legal-consult/monitoring"
	"legal-consult/security"
	"legal-consult/services"
	"legal-consult/utils"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, err := payment.New(ctx, &payment.Config{
		BaseURL:     cfg.GatewayBaseURL,
		KeyID:       cfg.GatewayKeyID,
		KeySecret:   cfg.GatewayKeySecret,
		PNSubKey:    cfg.GatewaySubKey,
		PNSubSecret: cfg.GatewaySecret,
		PNUUID:      cfg.GatewayUUID,
		PNChannel:   cfg.GatewayChannel,
		PNCipherKey: cfg.GatewayCipherKey,
	})
	if err != nil {
		return err
	}

	summarizerClient := summarizer.New(&summarizer.Config{
		BaseURL: cfg.SummarizerURL,
		APIKey:  cfg.SummarizerAPIKey,
	})

	// Services
	store := services.NewPBStore(app)
	notifier := services.NewPubNubNotifier(pn)
	draftService := services.NewDraftService(redisClient, cfg.DraftTTL)
	bookingService := services.NewBookingService(store, draftService, gateway, summarizerClient, notifier, cfg.CommissionRate)
	sessionService := services.NewSessionService(store, notifier, cfg.SessionTokenSecret, cfg.SessionTokenTTL)
	chatService := services.NewChatService(store, redisClient, cfg.ChatSendBuffer)

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient, chatService)
	}

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService)
	paymentHandler := handlers.NewPaymentHandler(bookingService, monitor)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	chatHandler := handlers.NewChatHandler(chatService)

	rateLimiter := security.NewRateLimiter(redisClient)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Capture notifications from the payment processor run through the same
	// confirmation path as client callbacks.
	captures := make(chan *payment.Capture, 1)
	gateway.SetCaptureChannel(captures)
	go paymentHandler.ConsumeCaptures(ctx, captures)

	// Background tasks
	go draftService.RetryCleanup(ctx, cfg.CleanupInterval)

	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Draft endpoints
		e.Router.POST("/api/v1/bookings/draft", bookingHandler.CreateDraft).
			BindFunc(rateLimiter.AntiBot()).
			BindFunc(rateLimiter.PerUserLimit("draft_create", 10, time.Minute))
		e.Router.PATCH("/api/v1/bookings/draft/{draftId}/summary", bookingHandler.RegenerateSummary)

		// Payment endpoints
		e.Router.POST("/api/v1/bookings/draft/{draftId}/payment-intent", paymentHandler.CreateIntent)
		e.Router.POST("/api/v1/payments/confirm", paymentHandler.Confirm)

		// Booking endpoints
		e.Router.GET("/api/v1/bookings", bookingHandler.ListBookings)
		e.Router.GET("/api/v1/bookings/{bookingId}", bookingHandler.GetBooking)
		e.Router.PATCH("/api/v1/bookings/{bookingId}/status", bookingHandler.UpdateStatus)

		// Consultation session endpoints
		e.Router.POST("/api/v1/bookings/{bookingId}/session", sessionHandler.Start)
		e.Router.POST("/api/v1/sessions/{sessionId}/end", sessionHandler.End)

		// Chat endpoints
		e.Router.POST("/api/v1/bookings/{bookingId}/chat-ticket", chatHandler.IssueTicket)
		e.Router.GET("/api/v1/bookings/{bookingId}/messages", chatHandler.History)
		e.Router.GET("/api/v1/bookings/{bookingId}/chat", chatHandler.Serve)

		// Operational endpoints
		e.Router.GET("/api/v1/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "ok"})
		})
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", func(e *core.RequestEvent) error {
				promhttp.Handler().ServeHTTP(e.Response, e.Request)
				return nil
			})
		}

		slog.Info("routes registered", "env", cfg.Environment, "port", cfg.Port)
		return e.Next()
	})

	return app.Start()
}

func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down background workers...")
	cancel()
}
