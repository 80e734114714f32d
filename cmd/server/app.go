// cmd/server/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"led-relay/internal/config"
	"led-relay/internal/device"
	"led-relay/internal/discovery"
	"led-relay/internal/handler"
	"led-relay/internal/routes"
	"led-relay/internal/service"
	"led-relay/internal/utils"
)

const shutdownTimeout = 30 * time.Second

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	eventBus *handler.EventBus
	scanner  *discovery.Scanner
	gateway  *service.CommandService
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	app.initializeDevice()

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDevice wires the command gateway and routes device state
// changes onto the event bus
func (app *Application) initializeDevice() {
	app.eventBus = handler.NewEventBus(app.logger)
	app.scanner = discovery.NewScanner(app.logger)

	events := handler.NewDeviceEventHandler(app.eventBus, app.logger)
	app.gateway = newGateway(app.config, app.logger, app.scanner, events.OnStateChange)

	app.logger.Info("Device gateway initialized",
		zap.String("address", app.config.Device.Address),
		zap.Int("baud_rate", app.config.Device.BaudRate),
		zap.Bool("auto_detect", app.config.Device.AutoDetect),
	)
}

// newGateway builds the command gateway from configuration. hook may be nil.
func newGateway(cfg *config.Config, logger *zap.Logger, scanner *discovery.Scanner, hook device.StateChangeFunc) *service.CommandService {
	delays := device.Delays{
		Settle: cfg.Device.SettleDelay,
		Write:  cfg.Device.WriteDelay,
	}

	factory := func(deviceCfg device.Config) service.Connection {
		opts := []device.Option{device.WithDelays(delays)}
		if hook != nil {
			opts = append(opts, device.WithStateChangeHook(hook))
		}
		return device.NewManager(deviceCfg, logger, opts...)
	}

	return service.NewCommandService(
		service.SettingsFromConfig(&cfg.Device),
		factory,
		logger,
		service.WithPortFinder(scanner),
	)
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.gateway,
		app.scanner,
		app.eventBus,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// Start connects the device, serves HTTP and blocks until a shutdown
// signal arrives or the server fails
func (app *Application) Start() error {
	go app.eventBus.Start()

	// A missing device is not fatal; the first command retries
	if err := app.gateway.Initialize(); err != nil {
		app.logger.Warn("Device not available at startup", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return app.waitForShutdown(serverErr)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown(serverErr <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		app.shutdown("shutdown signal received")
		return nil
	case err := <-serverErr:
		app.logger.Error("HTTP server failed", zap.Error(err))
		app.shutdown("http server failed")
		return fmt.Errorf("http server: %w", err)
	}
}

// shutdown performs graceful shutdown
func (app *Application) shutdown(reason string) {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop(reason)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Release the serial line before the event stream goes away
	app.gateway.Teardown()
	app.eventBus.Stop()

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}
