package route

import (
	"time"

	"github.com/bassista/weather_collector/internal/api/controller"
	"github.com/bassista/weather_collector/internal/api/middleware"
	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/gin-gonic/gin"
)

// NewCityRouter exposes the city list file: GET citylist, POST city,
// DELETE city/:name.
func NewCityRouter(timeout time.Duration, group *gin.RouterGroup, store citystore.Store) {
	cc := &controller.CrudController[citystore.City]{
		Service:   &controller.CityCrudService{Store: store},
		Validator: controller.NewCityCrudValidator(),
	}
	cc.RegisterCrudRoutes(group.Group("", middleware.RequestTimeout(timeout)), "citylist", "city")
}
