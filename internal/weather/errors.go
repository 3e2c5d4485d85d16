package weather

import "errors"

var (
	// ErrUpstreamUnavailable is returned when the weather provider cannot be
	// reached or returns a payload without a current reading.
	ErrUpstreamUnavailable = errors.New("upstream weather provider unavailable")

	// ErrStoreBusy is returned when the datastore stayed locked past the
	// configured wait and retry budget.
	ErrStoreBusy = errors.New("store busy")

	// ErrInsufficientHistory is returned when no readings exist to build a
	// model input sequence from.
	ErrInsufficientHistory = errors.New("insufficient history for prediction")

	// ErrModelUnavailable is returned when the prediction model cannot be loaded
	// or evaluated.
	ErrModelUnavailable = errors.New("prediction model unavailable")

	// ErrInvalidParameter is returned for caller input outside the accepted range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoData is returned when no readings are available for a location.
	ErrNoData = errors.New("no weather data for location")

	// ErrNoForecast is returned when the forecast is still empty after a
	// regeneration attempt.
	ErrNoForecast = errors.New("no forecast data available")
)

// Code returns a stable machine readable identifier for err, used in API
// error payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrStoreBusy):
		return "store_busy"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrNoForecast):
		return "no_forecast"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		return "internal"
	}
}
