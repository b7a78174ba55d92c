package controller

import (
	"net/http"

	"github.com/bassista/weather_collector/internal/config"
	"github.com/gin-gonic/gin"
)

// ConfigurationResponse is the non-secret part of the running configuration.
type ConfigurationResponse struct {
	CityListFile     string `json:"cityListFile"`
	Driver           string `json:"driver"`
	Database         string `json:"database"`
	SchedulerEnabled bool   `json:"schedulerEnabled"`
	IntervalSec      int    `json:"intervalSec"`
	ProviderURL      string `json:"providerUrl"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

// NewConfigurationController creates a new ConfigurationController.
func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{
		config: cfg,
	}
}

// GetConfiguration returns the collector configuration without credentials.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	response := ConfigurationResponse{
		CityListFile:     cc.config.Data.FilePath,
		Driver:           cc.config.Database.Driver,
		Database:         cc.config.Database.Name,
		SchedulerEnabled: cc.config.Scheduler.Enabled,
		IntervalSec:      int(cc.config.Scheduler.Interval.Seconds()),
		ProviderURL:      cc.config.WeatherAPI.BaseURL,
	}
	c.JSON(http.StatusOK, response)
}
