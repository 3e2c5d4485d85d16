package providers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-prediction/internal/weather"
)

// geocoder keeps its API key in a package variable.
var geocoderMu sync.Mutex

// GeocodeFunc resolves a city/country pair to coordinates.
type GeocodeFunc func(city, country string) (weather.Location, error)

// NewGoogleGeocoder returns a GeocodeFunc backed by the Google Geocoding API.
func NewGoogleGeocoder(apiKey string) GeocodeFunc {
	return func(city, country string) (weather.Location, error) {
		if apiKey == "" {
			return weather.Location{}, fmt.Errorf("geocoding requires an API key")
		}
		city, country = strings.TrimSpace(city), strings.TrimSpace(country)
		if city == "" {
			return weather.Location{}, fmt.Errorf("geocoding requires a city")
		}

		geocoderMu.Lock()
		defer geocoderMu.Unlock()

		geocoder.ApiKey = apiKey
		res, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
		if err != nil {
			return weather.Location{}, fmt.Errorf("geocode %s,%s: %w", city, country, err)
		}
		return weather.NewLocation(res.Latitude, res.Longitude), nil
	}
}
