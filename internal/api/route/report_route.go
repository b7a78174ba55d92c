package route

import (
	"time"

	"github.com/bassista/weather_collector/internal/api/controller"
	"github.com/bassista/weather_collector/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

func NewReportRouter(timeout time.Duration, group *gin.RouterGroup, gw controller.ReportGateway) {
	rc := controller.NewReportController(gw)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("readings", timeoutMiddleware, rc.Readings)
	group.GET("cities", timeoutMiddleware, rc.Cities)
}
