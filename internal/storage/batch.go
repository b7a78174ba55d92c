package storage

import (
	"errors"
	"fmt"

	"github.com/bassista/weather_collector/internal/logger"
	"gorm.io/gorm"
)

// Batch is the unit of work of one refresh call. Inserts run inside one
// transaction and become visible together on Commit.
type Batch struct {
	tx     *gorm.DB
	staged int
	done   bool
}

// Staged returns the number of rows inserted so far.
func (b *Batch) Staged() int {
	return b.staged
}

// Stage inserts a *City (lookup-or-create by name) or a *WeatherReading
// (city resolved by name in the same transaction). On failure the whole
// batch is rolled back and a *StageError is returned.
func (b *Batch) Stage(entity any) error {
	if b.done {
		return errors.New("batch already finished")
	}

	var err error
	switch e := entity.(type) {
	case *City:
		err = b.stageCity(e)
	case *WeatherReading:
		err = b.stageReading(e)
	default:
		err = &StageError{Kind: KindUnmapped, Entity: fmt.Sprintf("%T", entity), Err: ErrUnmappedEntity}
	}

	if err != nil {
		b.Rollback()
		return err
	}
	return nil
}

func (b *Batch) stageCity(city *City) error {
	var existing City
	err := b.tx.Where("city_name = ?", city.CityName).Limit(1).Find(&existing).Error
	if err != nil {
		return &StageError{Kind: KindConstraint, Entity: TableCities, Err: err}
	}
	if existing.ID != 0 {
		*city = existing
		return nil
	}

	if err := b.tx.Create(city).Error; err != nil {
		return &StageError{Kind: classify(err), Entity: TableCities, Err: err}
	}
	b.staged++
	return nil
}

func (b *Batch) stageReading(reading *WeatherReading) error {
	if reading.CityID == 0 {
		var city City
		err := b.tx.Where("city_name = ?", reading.CityName).Limit(1).Find(&city).Error
		if err != nil {
			return &StageError{Kind: KindConstraint, Entity: TableWeather, Err: err}
		}
		if city.ID == 0 {
			return &StageError{
				Kind:   KindUnknownCity,
				Entity: TableWeather,
				Err:    fmt.Errorf("%w: no city row for %q", gorm.ErrForeignKeyViolated, reading.CityName),
			}
		}
		reading.CityID = city.ID
	}

	if err := b.tx.Create(reading).Error; err != nil {
		return &StageError{Kind: classify(err), Entity: TableWeather, Err: err}
	}
	b.staged++
	return nil
}

func classify(err error) StageKind {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindDuplicate
	}
	return KindConstraint
}

func (b *Batch) Commit() error {
	if b.done {
		return errors.New("batch already finished")
	}
	b.done = true
	if err := b.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.WithComponent("gateway").Debugf("committed %d rows", b.staged)
	return nil
}

// Rollback discards the batch. Calling it on a finished batch is a no-op.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
