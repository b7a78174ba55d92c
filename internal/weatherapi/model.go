package weatherapi

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Snapshot is the normalized provider answer for one city.
type Snapshot struct {
	CityName       string
	Latitude       float64
	Longitude      float64
	Country        string
	TimezoneOffset int
	Weather        string
	Description    string
	Temperature    float64
	FeelsLike      float64
	TempMin        float64
	TempMax        float64
	Pressure       int
	Humidity       int
}

// statusCode is the provider's embedded "cod", sent either as 200 or "404".
type statusCode int

func (c *statusCode) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*c = statusCode(n)
	return nil
}

type response struct {
	Cod   statusCode `json:"cod"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
	Weather  []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64     `json:"temp"`
		FeelsLike float64     `json:"feels_like"`
		TempMin   float64     `json:"temp_min"`
		TempMax   float64     `json:"temp_max"`
		Pressure  json.Number `json:"pressure"`
		Humidity  json.Number `json:"humidity"`
	} `json:"main"`
	Message string `json:"message"`
}

func (r *response) snapshot(city string) *Snapshot {
	s := &Snapshot{
		CityName:       city,
		Latitude:       r.Coord.Lat,
		Longitude:      r.Coord.Lon,
		Country:        r.Sys.Country,
		TimezoneOffset: r.Timezone,
		Temperature:    r.Main.Temp,
		FeelsLike:      r.Main.FeelsLike,
		TempMin:        r.Main.TempMin,
		TempMax:        r.Main.TempMax,
		Pressure:       numberToInt(r.Main.Pressure),
		Humidity:       numberToInt(r.Main.Humidity),
	}
	if len(r.Weather) > 0 {
		s.Weather = r.Weather[0].Main
		s.Description = r.Weather[0].Description
	}
	return s
}

// numberToInt truncates; the provider occasionally sends pressure as a float.
func numberToInt(n json.Number) int {
	if n == "" {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return int(f)
}
