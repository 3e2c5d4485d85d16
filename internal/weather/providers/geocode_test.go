package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeocoderRequiresKeyAndCity(t *testing.T) {
	_, err := NewGoogleGeocoder("")("Agadir", "MA")
	assert.ErrorContains(t, err, "API key")

	_, err = NewGoogleGeocoder("key")("  ", "MA")
	assert.ErrorContains(t, err, "city")
}
