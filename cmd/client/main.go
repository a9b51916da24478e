package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fbot-vsss/client/domain/diagnostic"
	"github.com/fbot-vsss/client/pkg/api"
	"github.com/fbot-vsss/client/pkg/config"
	customlog "github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/pkg/relay"
	"github.com/fbot-vsss/client/pkg/transport"
	"github.com/fbot-vsss/client/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"
)

func main() {
	configDir := flag.String("config-dir", "./config", "directory holding "+config.BootstrapFilename)
	flag.Parse()

	bootstrapCfg, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bootstrap configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := customlog.NewLogrusLogger(bootstrapCfg.Logging.Level, bootstrapCfg.Logging.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	feedsPath := bootstrapCfg.FeedsConfigPath()
	cfg, err := config.LoadConfig(feedsPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Feed configuration %s not found, using built-in defaults", feedsPath)
		cfg, feedsPath, err = config.Default(), "", nil
	}
	if err != nil {
		logger.Fatalf("Failed to load feed configuration: %v", err)
	}

	rl, err := newRelay(cfg.Relay, logger)
	if err != nil {
		logger.Fatalf("Failed to set up snapshot relay: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []services.Option
	if rl != nil {
		if err := rl.Start(ctx); err != nil {
			logger.Fatalf("Failed to start snapshot relay: %v", err)
		}
		opts = append(opts, services.WithRelay(rl))
	}
	registry := services.NewRegistry(ctx, cfg, logger, opts...)
	if err := registry.StartAll(); err != nil {
		logger.Fatalf("Failed to start feeds: %v", err)
	}

	configService, err := services.NewFeedConfigService(cfg, feedsPath, logger)
	if err != nil {
		logger.Fatalf("Failed to create config service: %v", err)
	}

	diagnosticService := diagnostic.NewDiagnosticService(registry, 2*time.Second)
	if rl != nil {
		diagnosticService.SetRelay(rl)
	}

	app := fiber.New(fiber.Config{
		AppName:               "VSSS Client",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	registerRoutes(app, registry, configService, logger)
	app.Get("/api/diagnostics", diagnosticService.GetMetricsHandler)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + strconv.Itoa(bootstrapCfg.Server.HTTPPort)
		logger.Infof("Server starting on %s", addr)
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Infof("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	g.Go(func() error {
		diagnosticService.Run(gCtx, time.Second)
		return nil
	})
	if interval := bootstrapCfg.Logging.StatusIntervalMs; interval > 0 {
		g.Go(func() error {
			logStatus(gCtx, registry, logger, time.Duration(interval)*time.Millisecond)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
	}

	stop()
	registry.Wait()
	if rl != nil {
		if err := rl.Close(); err != nil {
			logger.Warnf("Error closing relay sinks: %v", err)
		}
	}
	logger.Infof("Client exited properly")
}

// newRelay builds the configured relay sinks. It returns nil when no sink is
// enabled.
func newRelay(cfg config.RelayConfig, logger customlog.Logger) (*relay.Relay, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	contentType, err := relay.ParseContentType(cfg.ContentType)
	if err != nil {
		return nil, err
	}

	var sinks []relay.Sink
	if cfg.ZeroMQ.Enabled {
		pub, err := transport.NewZeroMQPublisher(cfg.ZeroMQ.PublishAddress, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pub)
	}
	if cfg.MQTT.Enabled {
		sink, err := relay.NewMQTTSink(cfg.MQTT, logger)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return relay.New(logger, cfg.ThrottleHz, contentType, sinks...), nil
}

func registerRoutes(app *fiber.App, registry *services.Registry, configService services.FeedConfigService, logger customlog.Logger) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "vsss client",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	apiGroup := app.Group("/api")
	apiGroup.Get("/feeds", func(c *fiber.Ctx) error {
		return c.JSON(registry.Stats())
	})

	if visionService, err := registry.Vision(); err == nil {
		visionRoutes := apiGroup.Group("/vision")
		visionRoutes.Get("/", visionService.GetSnapshotHandler)
		visionRoutes.Get("/ball", visionService.GetBallHandler)
		visionRoutes.Get("/field", visionService.GetFieldHandler)
		visionRoutes.Get("/robots/:team", visionService.GetRobotsHandler)
		visionRoutes.Get("/robots/:team/:id", visionService.GetRobotHandler)
		visionRoutes.Post("/command", visionService.SendCommandHandler)

		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/control", websocket.New(func(conn *websocket.Conn) {
			api.ControlWebSocketHandler(conn, logger, visionService)
		}))
	}

	if refereeService, err := registry.Referee(); err == nil {
		apiGroup.Get("/referee", refereeService.GetStateHandler)
	}

	if sslService, err := registry.SSLVision(); err == nil {
		sslRoutes := apiGroup.Group("/ssl-vision")
		sslRoutes.Get("/", sslService.GetDetectionHandler)
		sslRoutes.Get("/ball", sslService.GetBallHandler)
		sslRoutes.Get("/robots/:team/:id", sslService.GetRobotHandler)
	}

	api.RegisterConfigRoutes(app, configService, logger)
}

// logStatus periodically logs the ball position and the current foul.
func logStatus(ctx context.Context, registry *services.Registry, logger customlog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fields := map[string]interface{}{}
		if v, err := registry.Vision(); err == nil {
			ball := v.Ball()
			fields["ball_x"] = ball.X
			fields["ball_y"] = ball.Y
		}
		if r, err := registry.Referee(); err == nil {
			fields["foul"] = r.Foul().String()
		}
		logger.WithFields(fields).Infof("Status")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
