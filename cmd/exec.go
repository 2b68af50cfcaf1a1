package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gatepass/config"
	"gatepass/internal/handlers"
	"gatepass/internal/services"
	"gatepass/internal/services/bank"
	"gatepass/internal/store"
	"gatepass/models"
	"gatepass/monitoring"
	"gatepass/security"
	"gatepass/utils"

	_ "gatepass/migrations"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub (app channels: tally broadcasts, attendee pushes)
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gateway bank.Gateway
	if cfg.Gateway.BaseURL != "" {
		var err error
		gateway, err = bank.New(ctx, &cfg.Gateway)
		if err != nil {
			return err
		}
		defer gateway.Close(ctx)
	} else {
		slog.Warn("no payment gateway configured, priced passes will fail to register")
	}

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
	}

	// Initialize services
	pbStore := store.NewPBStore(app)
	ticketService := services.NewTicketService(redisClient, pbStore, monitor, cfg.ScanCodeKey, cfg.TicketPrefix)
	paymentService := services.NewPaymentService(pbStore, gateway, ticketService, pn, monitor)
	registrationService := services.NewRegistrationService(redisClient, pbStore, ticketService, paymentService, monitor)
	checkinService := services.NewCheckInService(redisClient, pbStore, pn, monitor, cfg.ScanCodeKey)
	rosterService := services.NewRosterService(redisClient, pbStore)
	operatorService := services.NewOperatorService(redisClient, pbStore, cfg.OperatorGrantTTL)
	intentService := services.NewIntentService(redisClient, cfg.IntentTTL)

	throttle := security.NewScanThrottle(redisClient, cfg.ScanRateLimit, cfg.ScanRateWindow)

	// Initialize handlers
	registrationHandler := handlers.NewRegistrationHandler(app, registrationService, intentService)
	checkinHandler := handlers.NewCheckInHandler(app, checkinService, operatorService, throttle)
	rosterHandler := handlers.NewRosterHandler(app, rosterService)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, pbStore, cfg.Environment == "development")

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	go paymentService.ListenGatewayCallbacks(ctx)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		warmCountersFromStore(app, redisClient)

		// Registration endpoints
		e.Router.POST("/api/v1/registrations", registrationHandler.Register)
		e.Router.GET("/api/v1/events/{eventId}/my-registration", registrationHandler.MyRegistration)
		e.Router.POST("/api/v1/intents", registrationHandler.SaveIntent)
		e.Router.POST("/api/v1/intents/claim", registrationHandler.ClaimIntent)

		// Check-in endpoints
		e.Router.POST("/api/v1/checkin/scan", checkinHandler.Scan)
		e.Router.POST("/api/v1/tickets/{ticketId}/checkin", checkinHandler.Manual)
		e.Router.POST("/api/v1/operators/claim", checkinHandler.ClaimOperator)

		// Roster endpoints
		e.Router.GET("/api/v1/events/{eventId}/roster", rosterHandler.Roster)
		e.Router.GET("/api/v1/events/{eventId}/stats", rosterHandler.Stats)
		e.Router.GET("/api/v1/events/{eventId}/guestlist", rosterHandler.GuestList)

		// Payment endpoints
		e.Router.POST("/api/v1/payments/webhook", paymentHandler.Webhook)
		e.Router.GET("/api/v1/registrations/{registrationId}/order", paymentHandler.OrderStatus)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/v1/test/simulate-verification", paymentHandler.SimulateVerification)
		}

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupRecordHooks(app, redisClient)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// warmCountersFromStore rebuilds the Redis side from the store after a
// restart or counter loss. Everything uses SetNX/HSetNX so live values
// are never clobbered.
func warmCountersFromStore(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var totals []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT event, COUNT(*) AS total, SUM(CASE WHEN checked_in = 1 THEN 1 ELSE 0 END) AS checked_in FROM tickets GROUP BY event",
	).All(&totals); err != nil {
		log.Printf("Error warming ticket counters: %v", err)
		return
	}

	for _, row := range totals {
		eventID := row["event"].String
		if eventID == "" {
			continue
		}
		redisClient.SetNX(ctx, "ticket:total:"+eventID, row["total"].String, 0)
		redisClient.SetNX(ctx, "ticket:seq:"+eventID, row["total"].String, 0)
		redisClient.SetNX(ctx, "checkin:count:"+eventID, row["checked_in"].String, 0)
	}

	var reserved []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT pass, COUNT(*) AS reserved FROM registrations WHERE status IN ('confirmed', 'pending_payment') GROUP BY pass",
	).All(&reserved); err != nil {
		log.Printf("Error warming capacity counters: %v", err)
		return
	}

	for _, row := range reserved {
		if passID := row["pass"].String; passID != "" {
			redisClient.SetNX(ctx, "pass:reserved:"+passID, row["reserved"].String, 0)
		}
	}

	var tickets []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id, code_digest, checked_in FROM tickets",
	).All(&tickets); err != nil {
		log.Printf("Error warming scan-code index: %v", err)
		return
	}

	for _, row := range tickets {
		ticketID := row["id"].String
		if digest := row["code_digest"].String; digest != "" {
			redisClient.SetNX(ctx, "scancode:"+digest, ticketID, 0)
		}
		checkedIn := "0"
		if row["checked_in"].String == "1" || row["checked_in"].String == "true" {
			checkedIn = "1"
		}
		redisClient.HSetNX(ctx, "checkin:state:"+ticketID, "checked_in", checkedIn)
	}

	log.Printf("Warmed counters for %d events, %d passes, %d tickets", len(totals), len(reserved), len(tickets))
}

// setupRecordHooks keeps the Redis capacity counters honest when
// registrations are edited through the admin UI instead of the API.
func setupRecordHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	app.OnRecordDeleteRequest("registrations").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		status := e.Record.GetString("status")
		passID := e.Record.GetString("pass")

		if passID != "" && (status == models.RegistrationConfirmed || status == models.RegistrationPendingPayment) {
			if err := redisClient.Decr(ctx, "pass:reserved:"+passID).Err(); err != nil {
				slog.Error("Failed to release capacity for deleted registration",
					"registrationID", e.Record.Id,
					"passID", passID,
					"error", err,
				)
			}
		}
		return e.Next()
	})

	app.OnRecordUpdateRequest("registrations").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		newStatus := e.Record.GetString("status")
		oldStatus := e.Record.Original().GetString("status")
		passID := e.Record.GetString("pass")

		held := func(s string) bool {
			return s == models.RegistrationConfirmed || s == models.RegistrationPendingPayment
		}

		if passID != "" && held(oldStatus) && !held(newStatus) {
			if err := redisClient.Decr(ctx, "pass:reserved:"+passID).Err(); err != nil {
				slog.Error("Failed to release capacity for cancelled registration",
					"registrationID", e.Record.Id,
					"passID", passID,
					"error", err,
				)
			}
		}
		return e.Next()
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
