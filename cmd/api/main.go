package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-portal-sync/internal/common/api"
	"go-portal-sync/internal/config"
	"go-portal-sync/internal/database"
	"go-portal-sync/internal/features/calllog"
	"go-portal-sync/internal/features/credential"
	"go-portal-sync/internal/features/lead"
	"go-portal-sync/internal/features/scheduler"
	"go-portal-sync/internal/features/sync"
	"go-portal-sync/internal/features/system"
	"go-portal-sync/internal/inventory"
	"go-portal-sync/internal/logger"
	"go-portal-sync/internal/metrics"
	"go-portal-sync/internal/middleware"
	"go-portal-sync/internal/portals"
	"go-portal-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())
	app.Use(middleware.RequestIDMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d route groups\n", len(routes))
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(
	lc fx.Lifecycle,
	syncRepo sync.SyncRepository,
	leadRepo lead.LeadRepository,
	credRepo credential.CredentialRepository,
	callRepo calllog.CallLogRepository,
	zlog *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				ensure := map[string]func(context.Context) error{
					"sync":       syncRepo.EnsureIndexes,
					"lead":       leadRepo.EnsureIndexes,
					"credential": credRepo.EnsureIndexes,
					"calllog":    callRepo.EnsureIndexes,
				}
				for name, fn := range ensure {
					if err := fn(ctx); err != nil {
						zlog.Warn("failed to ensure indexes",
							zap.String("collection", name), zap.Error(err))
					}
				}
			}()
			return nil
		},
	})
}

// RunScheduler starts the cron scheduler with the app and stops it on exit.
func RunScheduler(lc fx.Lifecycle, svc scheduler.SchedulerService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start()
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}

// FlushCallLogs drains buffered call records on shutdown.
func FlushCallLogs(lc fx.Lifecycle, svc calllog.CallLogService) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			svc.Close()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Databases
			database.NewDatabase,
			inventory.NewSQLSource,

			// Initialize Repository
			calllog.NewCallLogRepository,
			credential.NewCredentialRepository,
			sync.NewSyncRepository,
			lead.NewLeadRepository,

			// Initialize Services
			calllog.NewCallLogService,
			credential.NewStore,
			credential.NewCredentialService,
			portals.NewRegistry,
			sync.NewSyncService,
			lead.NewLeadService,
			scheduler.NewSchedulerService,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(s *credential.Store) portals.CredentialStore { return s },
			func(s calllog.CallLogService) portals.CallRecorder { return s },

			// Initialize Controller
			calllog.NewCallLogController,
			credential.NewCredentialController,
			sync.NewSyncController,
			lead.NewLeadController,

			// Initialize API Routes
			AsRoute(system.NewHealthApi),
			AsRoute(calllog.NewCallLogApi),
			AsRoute(credential.NewCredentialApi),
			AsRoute(sync.NewSyncApi),
			AsRoute(lead.NewLeadApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },

			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			metrics.StartMetricsServer,
			RunScheduler,
			FlushCallLogs,
			InitializeIndexes,
		),
	)

	app.Run()
}
