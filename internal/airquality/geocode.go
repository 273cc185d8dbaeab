package airquality

import (
	"errors"
	"fmt"
	"log"

	"github.com/kelvins/geocoder"
)

var errNoGeocoderKey = errors.New("geocoder api key is not configured")

// Resolve fills in Lat/Lon from the Google geocoding API when the location
// has no coordinates yet. Locations with coordinates are returned unchanged.
func Resolve(loc Location, apiKey string) (Location, error) {
	if loc.Lat != 0 || loc.Lon != 0 {
		return loc, nil
	}
	if apiKey == "" {
		return loc, fmt.Errorf("resolve %s: %w", loc.Key(), errNoGeocoderKey)
	}

	geocoder.ApiKey = apiKey
	found, err := geocoder.Geocoding(geocoder.Address{
		City:    loc.Name,
		Country: loc.Country,
	})
	if err != nil {
		return loc, fmt.Errorf("resolve %s: %w", loc.Key(), err)
	}

	loc.Lat = found.Latitude
	loc.Lon = found.Longitude
	log.Printf("INFO: resolved %s to %.4f,%.4f", loc.Key(), loc.Lat, loc.Lon)
	return loc, nil
}
