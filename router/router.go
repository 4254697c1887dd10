// router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/controlcoreio/control-core-012025-sub001/config"
	"github.com/controlcoreio/control-core-012025-sub001/controller"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/middleware"
)

// Options carries the router settings taken from the configuration.
type Options struct {
	Auth      config.AuthConfiguration
	RateLimit config.RateLimitConfiguration
	// RateLimitEnabled is set when Redis is available.
	RateLimitEnabled bool
}

func OptionsFromConfig(cfg *config.Configuration) Options {
	return Options{
		Auth:             cfg.Auth,
		RateLimit:        cfg.RateLimit,
		RateLimitEnabled: cfg.Redis.Enabled,
	}
}

// SetupRouter mounts the resolution endpoint publicly and every
// administration route behind group auth when auth is enabled.
func SetupRouter(controllers *controller.Controllers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	if opts.RateLimitEnabled && opts.RateLimit.Requests > 0 {
		window := opts.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		router.Use(middleware.RateLimiter(opts.RateLimit.Requests, window))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	controllers.Resolution.RegisterRoutes(api)

	admin := api.Group("")
	if opts.Auth.Enabled {
		admin.Use(middleware.GroupAuthMiddleware([]byte(opts.Auth.JWTSecret), opts.Auth.AdminGroups))
	}
	controllers.Connection.RegisterRoutes(admin)
	controllers.Mapping.RegisterRoutes(admin)
	controllers.Resolution.RegisterAdminRoutes(admin)

	return router
}
