package controller

import (
	"context"

	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/go-playground/validator/v10"
)

// CityCrudService implements CrudService over the city list file.
type CityCrudService struct {
	Store citystore.Store
}

func (s *CityCrudService) All(ctx context.Context) ([]citystore.City, error) {
	return s.Store.GetCityList(ctx)
}

func (s *CityCrudService) Add(ctx context.Context, item citystore.City) ([]citystore.City, error) {
	return s.Store.AddCity(ctx, item.Name)
}

func (s *CityCrudService) Remove(ctx context.Context, name string) ([]citystore.City, error) {
	return s.Store.RemoveCity(ctx, name)
}

// CityCrudValidator implements CrudValidator for city entries.
type CityCrudValidator struct {
	validator *validator.Validate
}

func NewCityCrudValidator() *CityCrudValidator {
	return &CityCrudValidator{validator: validator.New()}
}

func (v *CityCrudValidator) Validate(item citystore.City) error {
	return v.validator.Struct(item)
}
