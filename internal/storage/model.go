package storage

import "time"

const (
	TableCities  = "cities"
	TableWeather = "weather"
)

// City is one polled location. Rows are created on the first successful
// fetch for a name and never deleted by the collector.
type City struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CityName  string           `gorm:"size:30;not null;uniqueIndex" json:"city_name"`
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Country   string           `gorm:"size:30" json:"country"`
	Readings  []WeatherReading `gorm:"foreignKey:CityID;constraint:OnDelete:CASCADE" json:"-"`
}

func (City) TableName() string { return TableCities }

// WeatherReading is appended once per city per refresh and never updated.
// CityName is only used to resolve CityID on insert and is filled by
// QueryReadings from the join.
type WeatherReading struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CityID      uint       `gorm:"not null;index" json:"city_id"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LocalTime   *time.Time `json:"local_time"`
	Weather     string     `gorm:"size:30" json:"weather"`
	Description string     `gorm:"size:50" json:"description"`
	Temperature float64    `json:"temperature"`
	FeelsLike   float64    `json:"feels_like"`
	TempMin     float64    `json:"temp_min"`
	TempMax     float64    `json:"temp_max"`
	Pressure    int        `json:"pressure"`
	Humidity    int        `json:"humidity"`
	CityName    string     `gorm:"->;-:migration" json:"city_name"`
}

func (WeatherReading) TableName() string { return TableWeather }
