// Package esri speaks the MapServer feature-query REST dialect shared by the
// chart-index and trackline-index services: envelope/polyline spatial
// filters, pJSON responses, and the in-band error object the services return
// with HTTP 200.
package esri

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrService marks any remote index-service failure: transport errors,
// non-200 responses, and in-band error payloads. Callers treat it as fatal
// for the run; it is distinct from an empty feature list.
var ErrService = errors.New("index service failure")

type Envelope struct {
	XMin float64    `json:"xmin"`
	YMin float64    `json:"ymin"`
	XMax float64    `json:"xmax"`
	YMax float64    `json:"ymax"`
	SR   SpatialRef `json:"spatialReference"`
}

type SpatialRef struct {
	WKID int `json:"wkid"`
}

// Geometry carries whichever of rings (polygons) or paths (polylines) the
// layer returns; coordinates are [lon, lat] pairs.
type Geometry struct {
	Rings [][][2]float64 `json:"rings,omitempty"`
	Paths [][][2]float64 `json:"paths,omitempty"`
}

type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry"`
}

type queryResponse struct {
	Features []Feature `json:"features"`
	Error    *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	HTTPClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTPClient: httpClient}
}

// BaseParams returns the query parameters common to every feature query.
func BaseParams() url.Values {
	params := url.Values{}
	params.Set("where", "")
	params.Set("inSR", "4326")
	params.Set("outSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("f", "json")
	return params
}

// EnvelopeParam encodes env for the geometry query parameter.
func EnvelopeParam(env Envelope) (string, error) {
	env.SR = SpatialRef{WKID: 4326}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return string(payload), nil
}

// PathsParam encodes polylines for the geometry query parameter.
func PathsParam(paths [][][2]float64) (string, error) {
	payload, err := json.Marshal(struct {
		Paths [][][2]float64 `json:"paths"`
		SR    SpatialRef     `json:"spatialReference"`
	}{Paths: paths, SR: SpatialRef{WKID: 4326}})
	if err != nil {
		return "", fmt.Errorf("encode paths: %w", err)
	}
	return string(payload), nil
}

// Query issues a GET feature query against layerURL/query.
func (c *Client) Query(ctx context.Context, layerURL string, params url.Values) ([]Feature, error) {
	endpoint := strings.TrimRight(layerURL, "/") + "/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrService, err)
	}
	return c.do(req)
}

// QueryPost issues a POST feature query; used when the geometry payload is
// too large for a query string (trackline sets).
func (c *Client) QueryPost(ctx context.Context, layerURL string, params url.Values) ([]Feature, error) {
	endpoint := strings.TrimRight(layerURL, "/") + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrService, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]Feature, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrService, resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrService, err)
	}

	var decoded queryResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrService, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: service reported code %d: %s", ErrService, decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Features, nil
}
