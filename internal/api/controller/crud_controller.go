package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/gin-gonic/gin"
)

// CrudService defines the minimal interface required for CRUD operations.
type CrudService[T any] interface {
	All(ctx context.Context) ([]T, error)
	Add(ctx context.Context, item T) ([]T, error)
	Remove(ctx context.Context, name string) ([]T, error)
}

// CrudValidator defines the interface for validating a resource.
type CrudValidator[T any] interface {
	Validate(item T) error
}

// CrudController provides generic CRUD handlers for resources.
type CrudController[T any] struct {
	Service   CrudService[T]
	Validator CrudValidator[T]
}

// RegisterCrudRoutes registers GET <listPath>, POST <itemPath> and
// DELETE <itemPath>/:name on the group.
func (cc *CrudController[T]) RegisterCrudRoutes(rg *gin.RouterGroup, listPath, itemPath string) {
	rg.GET("/"+listPath, cc.GetAll)
	rg.POST("/"+itemPath, cc.Create)
	rg.DELETE("/"+itemPath+"/:name", cc.Delete)
}

// GetAll handles GET requests to list all resources.
func (cc *CrudController[T]) GetAll(c *gin.Context) {
	items, err := cc.Service.All(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

// Create handles POST requests adding a resource.
func (cc *CrudController[T]) Create(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if cc.Validator != nil {
		if err := cc.Validator.Validate(item); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	items, err := cc.Service.Add(c.Request.Context(), item)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "failed to update resource"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// Delete handles DELETE requests to remove a resource by name.
func (cc *CrudController[T]) Delete(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing resource name"})
		return
	}
	items, err := cc.Service.Remove(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, citystore.ErrCityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": "failed to delete resource"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// statusFor maps city list file problems to 422; everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, citystore.ErrEmptyFile),
		errors.Is(err, citystore.ErrJSONWrongStructure),
		errors.Is(err, citystore.ErrFileNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
