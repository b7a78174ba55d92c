package citystore

import (
	"context"
	"errors"
)

var (
	ErrEmptyFile          = errors.New("file is empty, please fill the data")
	ErrJSONWrongStructure = errors.New("json file has wrong structure, rebuild data structure to json format")
	ErrFileNotFound       = errors.New("file does not exist")
	ErrCityNotFound       = errors.New("city is not in list")
)

// Lister is the read side of the city list used by the collector.
type Lister interface {
	GetCityList(ctx context.Context) ([]City, error)
}

// Store is the full keyed-list CRUD over the city list file.
type Store interface {
	Lister
	AddCity(ctx context.Context, name string) ([]City, error)
	RemoveCity(ctx context.Context, name string) ([]City, error)
	StartWatcher(ctx context.Context) error
}
