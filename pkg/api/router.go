package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nestwatch/conbee-gateway/pkg/api/handlers"
	"github.com/nestwatch/conbee-gateway/pkg/automation"
	"github.com/nestwatch/conbee-gateway/pkg/device"
	"github.com/nestwatch/conbee-gateway/pkg/device/schema"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine     *gin.Engine
	controller device.Controller
	subscriber device.EventSubscriber
	validator  *schema.Validator
	automation *automation.Engine
}

// NewRouter creates a new API router
func NewRouter(controller device.Controller, subscriber device.EventSubscriber, validator *schema.Validator, automationEngine *automation.Engine) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:     engine,
		controller: controller,
		subscriber: subscriber,
		validator:  validator,
		automation: automationEngine,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.controller)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		// Health
		v1.GET("/health", healthHandler.Health)

		// Discovery
		discoveryHandler := handlers.NewDiscoveryHandler(r.controller, r.subscriber)
		discovery := v1.Group("/discovery")
		{
			discovery.POST("/start", discoveryHandler.StartDiscovery)
			discovery.POST("/stop", discoveryHandler.StopDiscovery)
			discovery.GET("/events", discoveryHandler.Events)
		}

		// Devices
		devicesHandler := handlers.NewDevicesHandler(r.controller)
		controlHandler := handlers.NewControlHandler(r.controller, r.validator)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.GET("/:id", devicesHandler.GetDevice)
			devices.PATCH("/:id", devicesHandler.RenameDevice)
			devices.DELETE("/:id", devicesHandler.RemoveDevice)

			// Device state control
			devices.GET("/:id/state", controlHandler.GetState)
			devices.POST("/:id/state", controlHandler.SetState)
		}

		// Automations (only wired when the automation engine has a live
		// network manager to act against)
		if r.automation != nil {
			automationsHandler := handlers.NewAutomationsHandler(r.automation)
			automations := v1.Group("/automations")
			{
				automations.GET("", automationsHandler.ListAutomations)
				automations.POST("", automationsHandler.CreateAutomation)
				automations.GET("/:id", automationsHandler.GetAutomation)
				automations.PATCH("/:id", automationsHandler.UpdateAutomation)
				automations.DELETE("/:id", automationsHandler.DeleteAutomation)
				automations.POST("/:id/trigger", automationsHandler.TriggerAutomation)
				automations.POST("/:id/enable", automationsHandler.EnableAutomation)
				automations.POST("/:id/disable", automationsHandler.DisableAutomation)
			}
		}
	}
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
