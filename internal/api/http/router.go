package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telspan/vpn-provision/internal/api/http/handler"
	"github.com/telspan/vpn-provision/internal/api/http/middleware"
	"github.com/telspan/vpn-provision/internal/provision"
	"github.com/telspan/vpn-provision/internal/secret"
)

type Services struct {
	Provision          *provision.Service
	Deriver            *secret.Deriver
	HotspotTemplateDir string
	// CreateLimiter throttles provisioning requests per client IP; nil
	// disables throttling.
	CreateLimiter *middleware.RateLimiter
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	provisionHandler := handler.NewProvisionHandler(srvs.Provision)
	engine.POST("/provision/create/:identity", srvs.CreateLimiter.Middleware(), provisionHandler.Create)
	engine.GET("/provision/task/:handle", provisionHandler.Task)
	engine.GET("/provision/fetch/:identity/:token", provisionHandler.Fetch)

	hotspotHandler := handler.NewHotspotHandler(srvs.HotspotTemplateDir)
	engine.GET("/hotspot/:identity/:token/:page",
		middleware.SecretAuth(srvs.Deriver, "identity", "token"),
		hotspotHandler.Page)
}
