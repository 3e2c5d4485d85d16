package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-prediction/internal/weather"
)

// OpenMeteoBaseURL is the public Open-Meteo forecast endpoint.
const OpenMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// Open-Meteo reports current_weather.time in GMT, minute precision, when no
// timezone parameter is sent.
const openMeteoTimeLayout = "2006-01-02T15:04"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// OpenMeteoOption customizes an OpenMeteoProvider.
type OpenMeteoOption func(*OpenMeteoProvider)

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithBackoff overrides the retry schedule.
func WithBackoff(b BackoffConfig) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		p.httpCfg.Backoff = b
	}
}

func NewOpenMeteoProvider(client *http.Client, opts ...OpenMeteoOption) *OpenMeteoProvider {
	p := &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: OpenMeteoBaseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newBreaker("openmeteo"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		Time        string   `json:"time"`
	} `json:"current_weather"`
}

// Fetch returns the current temperature at loc. Transport failures and
// payloads without a current reading wrap weather.ErrUpstreamUnavailable.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
		values.Set("current_weather", "true")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, fmt.Errorf("%w: %s: %v", weather.ErrUpstreamUnavailable, p.name, err)
	}
	defer resp.Body.Close()

	var payload openMeteoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderReading{}, fmt.Errorf("%w: %s: decode payload: %v", weather.ErrUpstreamUnavailable, p.name, err)
	}
	if payload.CurrentWeather == nil || payload.CurrentWeather.Temperature == nil {
		return weather.ProviderReading{}, fmt.Errorf("%w: %s: payload has no current_weather.temperature", weather.ErrUpstreamUnavailable, p.name)
	}

	ts, err := parseProviderTime(payload.CurrentWeather.Time)
	if err != nil {
		return weather.ProviderReading{}, fmt.Errorf("%w: %s: %v", weather.ErrUpstreamUnavailable, p.name, err)
	}

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: *payload.CurrentWeather.Temperature,
	}, nil
}

// parseProviderTime accepts Open-Meteo's GMT minute timestamps and RFC3339.
func parseProviderTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("payload has no current_weather.time")
	}
	if ts, err := time.ParseInLocation(openMeteoTimeLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized current_weather.time %q", s)
}
