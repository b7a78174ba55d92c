package route

import (
	"net/http"

	"github.com/bassista/weather_collector/internal/app"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, appCtx *app.App) {
	r.GET("/health", func(c *gin.Context) {
		database := "UP"
		if err := appCtx.Gateway.Ping(c.Request.Context()); err != nil {
			database = "DOWN"
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "UP",
			"database": database,
		})
	})
	r.GET("/metrics", gin.WrapH(appCtx.Metrics.Handler()))

	apiRouter := r.Group("/api")
	timeout := appCtx.Config.Server.RequestTimeout

	NewCityRouter(timeout, apiRouter, appCtx.Cities)
	NewReportRouter(timeout, apiRouter, appCtx.Gateway)
	NewConfigurationRouter(timeout, apiRouter, appCtx.Config)
}
