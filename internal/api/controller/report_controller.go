package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/bassista/weather_collector/internal/logger"
	"github.com/bassista/weather_collector/internal/storage"
	"github.com/gin-gonic/gin"
)

type ReportGateway interface {
	QueryReadings(ctx context.Context) ([]storage.WeatherReading, error)
	QueryCities(ctx context.Context) ([]storage.City, error)
}

// ReportController serves the collected rows read-only.
type ReportController struct {
	gateway ReportGateway
}

func NewReportController(gw ReportGateway) *ReportController {
	return &ReportController{gateway: gw}
}

func (rc *ReportController) Readings(c *gin.Context) {
	readings, err := rc.gateway.QueryReadings(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (rc *ReportController) Cities(c *gin.Context) {
	cities, err := rc.gateway.QueryCities(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (rc *ReportController) fail(c *gin.Context, err error) {
	logger.WithComponent("http").Errorf("report query failed: %v", err)
	if errors.Is(err, storage.ErrNotReady) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query database"})
}
