package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"event-workflow/config"
	"event-workflow/internal/handlers"
	"event-workflow/internal/services"
	"event-workflow/internal/store"
	"event-workflow/models"
	"event-workflow/monitoring"
	"event-workflow/security"
	"event-workflow/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	redisClient, err := connectRedis(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var locker utils.Locker = utils.NewLocalLocker()
	if cfg.LockBackend == config.LockBackendRedis {
		locker = utils.NewRedisLocker(redisClient, cfg.SlotLockTTL, cfg.SlotLockWait, cfg.SlotLockRetry)
	}

	monitor := monitoring.NewMonitor()
	notifier := newNotifier(cfg, monitor)
	loc := cfg.Location()
	db := store.NewPocketBaseStore(app)

	// Initialize services
	requestService := services.NewRequestService(db, monitor, loc)
	requestLifecycle := services.NewRequestLifecycle(db, locker, notifier, monitor)
	eventLifecycle := services.NewEventLifecycle(db, locker, notifier, monitor, loc)
	sweeper := services.NewCompletionSweeper(db, notifier, monitor, loc)
	calendar := services.NewCalendarExporter(db, loc)

	// Initialize handlers
	requestHandler := handlers.NewRequestHandler(requestService)
	osasHandler := handlers.NewOSASHandler(requestService, requestLifecycle)
	eventHandler := handlers.NewEventHandler(eventLifecycle, calendar)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: !cfg.IsProduction(),
	})

	app.RootCmd.AddCommand(sweepCommand(sweeper))

	scheduler := cron.New(cron.WithLocation(loc))
	if _, err := scheduler.AddFunc(cfg.CompletionSweepCron, func() {
		if _, err := sweeper.Sweep(ctx); err != nil {
			slog.Error("Completion sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid COMPLETION_SWEEP_CRON %q: %w", cfg.CompletionSweepCron, err)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		<-scheduler.Stop().Done()
		cancel()
		return e.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		api := se.Router.Group("/api/v1")
		api.BindFunc(security.RejectBots)
		api.Bind(apis.RequireAuth("users"))
		if redisClient != nil && cfg.RateLimitPerMinute > 0 {
			api.BindFunc(security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute).Middleware())
		}

		// Department request endpoints
		api.POST("/requests", requestHandler.Submit)
		api.GET("/requests", requestHandler.List)
		api.PUT("/requests/{id}", requestHandler.Edit)
		api.POST("/requests/{id}/cancel", requestHandler.Cancel)
		api.DELETE("/requests/{id}", requestHandler.Delete)

		// OSAS review endpoints
		api.GET("/osas/requests", osasHandler.ListPending)
		api.POST("/osas/requests/{id}/approve", osasHandler.Approve)
		api.POST("/osas/requests/{id}/reject", osasHandler.Reject)

		// Event endpoints
		api.GET("/events", eventHandler.List)
		api.GET("/events/calendar.ics", eventHandler.Calendar)
		api.POST("/events/{id}/cancel", eventHandler.Cancel)
		api.POST("/events/{id}/postpone", eventHandler.Postpone)

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(redisClient); err != nil {
					return e.JSON(http.StatusServiceUnavailable, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		if cfg.EnableMetrics {
			se.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
			go monitor.CollectCounts(ctx, workflowCounts{requestService, eventLifecycle}, cfg.MetricsInterval)
		}

		scheduler.Start()
		slog.Info("Server routes registered", "lockBackend", cfg.LockBackend, "timezone", loc.String())

		return se.Next()
	})

	setupRecordGuards(app)
	security.ProtectRoles(app)

	// Start server
	return app.Start()
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// connectRedis returns nil when nothing in cfg needs Redis. A Redis outage
// only fails startup when slot locks depend on it.
func connectRedis(cfg *config.Config) (*redis.Client, error) {
	needLocks := cfg.LockBackend == config.LockBackendRedis
	if !needLocks && cfg.RateLimitPerMinute <= 0 {
		return nil, nil
	}

	client, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		if needLocks {
			return nil, err
		}
		slog.Warn("Redis unavailable, rate limiting disabled", "error", err)
		return nil, nil
	}
	return client, nil
}

func newNotifier(cfg *config.Config, monitor *monitoring.Monitor) services.Notifier {
	if !cfg.PubNubEnabled() {
		slog.Info("PubNub keys not set, decision notifications disabled")
		return services.NopNotifier()
	}

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pnConfig.UUID = cfg.PubNubUserID

	breaker := utils.NewCircuitBreaker("pubnub", uint32(cfg.NotifyMaxFailures), cfg.NotifyBreakerCooldown)
	return services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig), breaker, monitor)
}

func sweepCommand(sweeper *services.CompletionSweeper) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-completed",
		Short: "Mark Active events whose end time has passed as Completed",
		RunE: func(command *cobra.Command, args []string) error {
			n, err := sweeper.Sweep(command.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(command.OutOrStdout(), "completed %d event(s)\n", n)
			return nil
		},
	}
}

// setupRecordGuards stops the generic record API from changing workflow
// state. Status changes go through the lifecycle endpoints so the conflict
// check and the request/event pairing cannot be bypassed.
func setupRecordGuards(app *pocketbase.PocketBase) {
	guard := func(e *core.RecordRequestEvent) error {
		slog.Warn("Blocked direct record write",
			"collection", e.Record.Collection().Name,
			"recordID", e.Record.Id,
		)
		return apis.NewBadRequestError("Use the /api/v1 workflow endpoints to change this record.", nil)
	}

	app.OnRecordCreateRequest(store.TableEventRequests, store.TableEvents).BindFunc(guard)
	app.OnRecordUpdateRequest(store.TableEventRequests, store.TableEvents).BindFunc(guard)
}

type workflowCounts struct {
	requests *services.RequestService
	events   *services.EventLifecycle
}

func (c workflowCounts) RequestCounts(ctx context.Context) (models.RequestCounts, error) {
	return c.requests.RequestCounts(ctx)
}

func (c workflowCounts) EventCounts(ctx context.Context) (models.EventCounts, error) {
	return c.events.EventCounts(ctx)
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	cancel()
}
