package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/ycslms/lmsflow/pkg/cmd"
	"github.com/ycslms/lmsflow/pkg/web"
)

type API struct {
	logger   *slog.Logger
	stack    *cmd.Stack
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, stack *cmd.Stack) *API {
	return &API{
		logger:   logger,
		stack:    stack,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.stack.Engine,
		a.stack.Workflows,
		a.stack.Executor,
		a.stack.Store,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("lmsflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.RegisterWorkflow)
	w.Post("/:id/instances", handlers.StartInstance)

	i := app.Group("/instances")
	i.Get("/", handlers.ListInstances)
	i.Get("/:id", handlers.GetInstance)
	i.Post("/:id/timers/:nodeId/fire", handlers.FireTimer)

	t := app.Group("/tasks")
	t.Get("/", handlers.ListTasks)
	t.Post("/:id/assign", handlers.AssignTask)
	t.Post("/:id/complete", handlers.CompleteTask)

	app.Post("/rules/:id/execute", handlers.ExecuteRule)
	app.Post("/rule-sets/:id/execute", handlers.ExecuteRuleSet)
	app.Post("/entities/:type/:id/rules", handlers.ExecuteForEntity)
	app.Get("/rule-logs", handlers.RuleLogs)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// Start serves until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shutdown API server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
