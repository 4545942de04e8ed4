package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type googleGeocoder struct {
	httpClient   *http.Client
	rateLimiter  *rate.Limiter
	apiKey       string
	baseUrl      string
	retriesLimit int
	log          *zap.Logger
}

type googleGeocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location Coordinates `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func NewGoogleGeocoder(httpClient *http.Client, limiter *rate.Limiter, apiKey string, baseUrl string, retriesLimit int, logger *zap.Logger) Geocoder {
	return &googleGeocoder{
		httpClient:   httpClient,
		rateLimiter:  limiter,
		apiKey:       apiKey,
		baseUrl:      baseUrl,
		retriesLimit: retriesLimit,
		log:          logger,
	}
}

func (g *googleGeocoder) doRequest(ctx context.Context, u *url.URL) (*Coordinates, bool, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limit canceled: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to reach geocoding API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("server error: %s", resp.Status)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected response status: %s", resp.Status)
	}

	var response googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Status != "OK" || len(response.Results) == 0 {
		return nil, false, fmt.Errorf("geocoding status %q", response.Status)
	}

	location := response.Results[0].Geometry.Location
	return &location, false, nil
}

func (g *googleGeocoder) Resolve(ctx context.Context, address string) (*Coordinates, error) {
	if address == "" {
		return nil, fmt.Errorf("empty address")
	}
	u, err := url.Parse(g.baseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	u.Path = "maps/api/geocode/json"

	query := u.Query()
	query.Set("address", address)
	query.Set("key", g.apiKey)
	u.RawQuery = query.Encode()

	currTimeout := 1
	var lastError error
	for i := 0; i < g.retriesLimit; i++ {
		coords, retry, err := g.doRequest(ctx, u)
		if err != nil {
			g.log.Error("Failed to geocode address", zap.Error(err), zap.Int("retry", i))
			lastError = err
			if !retry {
				break
			}
			time.Sleep(time.Duration(currTimeout) * time.Second)
			currTimeout *= 2
			continue
		}
		return coords, nil
	}

	return nil, fmt.Errorf("failed to geocode address after retries %w", lastError)
}
