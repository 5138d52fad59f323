// Package routing provides road distances for quotes, falling back to a
// scaled straight-line estimate when the routing provider cannot answer.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"route-pricing/internal/models"
)

// ErrNoRoute is returned when the provider answers without a route
var ErrNoRoute = errors.New("routing: no route in response")

// RoadRoute is a provider answer
type RoadRoute struct {
	DistanceKm      float64
	DurationSeconds int64
}

// Client calls the AWS Location Service Routes v2 API with an API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a routes client; baseURL is e.g. https://routes.geo.eu-central-1.amazonaws.com
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Positions are [longitude, latitude]
type routesRequest struct {
	Origin             [2]float64 `json:"Origin"`
	Destination        [2]float64 `json:"Destination"`
	TravelMode         string     `json:"TravelMode"`
	OptimizeRoutingFor string     `json:"OptimizeRoutingFor"`
	LegGeometryFormat  string     `json:"LegGeometryFormat"`
}

type routesResponse struct {
	Routes []struct {
		Legs []struct {
			VehicleLegDetails struct {
				TravelSteps []struct {
					Distance float64 `json:"Distance"`
				} `json:"TravelSteps"`
			} `json:"VehicleLegDetails"`
		} `json:"Legs"`
		Summary struct {
			Duration int64 `json:"Duration"`
		} `json:"Summary"`
	} `json:"Routes"`
}

// TruckRoute returns the fastest truck route distance between two points
func (c *Client) TruckRoute(ctx context.Context, from, to models.Coordinate) (*RoadRoute, error) {
	if c.apiKey == "" {
		return nil, errors.New("routing: api key not configured")
	}

	body, err := json.Marshal(routesRequest{
		Origin:             [2]float64{from.Lon, from.Lat},
		Destination:        [2]float64{to.Lon, to.Lat},
		TravelMode:         "Truck",
		OptimizeRoutingFor: "FastestRoute",
		LegGeometryFormat:  "Simple",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode routes request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/routes?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routes request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("routes API returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed routesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode routes response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, ErrNoRoute
	}

	route := parsed.Routes[0]
	var meters float64
	for _, leg := range route.Legs {
		for _, step := range leg.VehicleLegDetails.TravelSteps {
			meters += step.Distance
		}
	}

	return &RoadRoute{
		DistanceKm:      round2(meters / 1000),
		DurationSeconds: route.Summary.Duration,
	}, nil
}
