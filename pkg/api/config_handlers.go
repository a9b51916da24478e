package api

import (
	"errors"
	"fmt"
	"net/http"

	customlog "github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/services"
	"github.com/gofiber/fiber/v2"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.FeedConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.FeedConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints with the Fiber app.
func RegisterConfigRoutes(app *fiber.App, configService services.FeedConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")

	// Running configuration, defaults applied
	apiGroup.Get("/feeds", h.handleGetFeedsConfig)
	// File as written on disk
	apiGroup.Get("/feeds/source", h.handleGetFeedsSource)

	logger.Infof("Registered feed configuration API endpoints under /api/v1/config")
}

func (h *ConfigHandler) handleGetFeedsConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/feeds")
	yamlData, err := h.configService.GetEffectiveConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to render feed config YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

func (h *ConfigHandler) handleGetFeedsSource(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/feeds/source")
	yamlData, err := h.configService.GetSourceConfigYAML()
	if errors.Is(err, services.ErrNoConfigFile) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "Feed configuration was not loaded from a file; built-in defaults are in use.",
		})
	}
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}
