package cityapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ogettransport/oget-bot/internal/common/logger"
)

const apiVersion = "1.2"

// APIError is the upstream error envelope `{error, errorText}`.
type APIError struct {
	Code int    `json:"error"`
	Text string `json:"errorText"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("city api error %d: %s", e.Code, e.Text)
}

// Config holds the stable base parameters sent with every call.
type Config struct {
	BaseURL  string
	Login    string
	Password string
	City     string
	Timeout  time.Duration
}

// Client is a thin typed client for the third-party transit info API.
// All calls are GET with query parameters and JSON responses.
type Client struct {
	cfg    Config
	client *http.Client
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

type RouteSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type RouteInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	StartStop string `json:"startStop"`
	EndStop   string `json:"endStop"`
	Interval  int    `json:"interval"`
	WorkTime  string `json:"workTime"`
}

type RoutePoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Direction int     `json:"direction"`
	Board     string  `json:"board"`
}

type StopSummary struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Distance float64 `json:"distance"`
}

type Arrival struct {
	RouteID      int    `json:"routeId"`
	RouteName    string `json:"routeName"`
	RouteType    string `json:"routeType"`
	ArrivalTime  int    `json:"arrivalTime"` // seconds until arrival
	Distance     int    `json:"distance"`
	Board        string `json:"board"`
	Direction    int    `json:"direction"`
	Handicapped  bool   `json:"handicapped"`
}

type StopInfo struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Arrivals []Arrival `json:"arrival"`
}

type AccountInfo struct {
	Login   string `json:"login"`
	City    string `json:"city"`
	Balance int    `json:"balance"`
}

// RoutesList calls cities.GetRoutesList.
func (c *Client) RoutesList(ctx context.Context) ([]RouteSummary, error) {
	var out []RouteSummary
	if err := c.call(ctx, "cities.GetRoutesList", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RouteDetails calls routes.GetRouteInfo.
func (c *Client) RouteDetails(ctx context.Context, routeID int) (*RouteInfo, error) {
	params := url.Values{"id": {fmt.Sprint(routeID)}}
	var out RouteInfo
	if err := c.call(ctx, "routes.GetRouteInfo", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RouteGPS calls routes.GetRouteGPS.
func (c *Client) RouteGPS(ctx context.Context, routeID int) ([]RoutePoint, error) {
	params := url.Values{"id": {fmt.Sprint(routeID)}}
	var out []RoutePoint
	if err := c.call(ctx, "routes.GetRouteGPS", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RoutesNearPoint calls routes.GetRoutesNearPoint.
func (c *Client) RoutesNearPoint(ctx context.Context, lat, lon float64) ([]RouteSummary, error) {
	params := url.Values{
		"lat": {fmt.Sprintf("%f", lat)},
		"lng": {fmt.Sprintf("%f", lon)},
	}
	var out []RouteSummary
	if err := c.call(ctx, "routes.GetRoutesNearPoint", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StopsNearPoint calls stops.GetStopsNearPoint.
func (c *Client) StopsNearPoint(ctx context.Context, lat, lon float64) ([]StopSummary, error) {
	params := url.Values{
		"lat": {fmt.Sprintf("%f", lat)},
		"lng": {fmt.Sprintf("%f", lon)},
	}
	var out []StopSummary
	if err := c.call(ctx, "stops.GetStopsNearPoint", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StopArrivals calls stops.GetStopInfo and returns predicted arrivals.
func (c *Client) StopArrivals(ctx context.Context, stopID int) (*StopInfo, error) {
	params := url.Values{"id": {fmt.Sprint(stopID)}}
	var out StopInfo
	if err := c.call(ctx, "stops.GetStopInfo", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyInfo calls user.GetMyInfo, useful as a startup credentials check.
func (c *Client) MyInfo(ctx context.Context) (*AccountInfo, error) {
	var out AccountInfo
	if err := c.call(ctx, "user.GetMyInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call composes the query, performs the GET and normalizes the error
// envelope before decoding into out.
func (c *Client) call(ctx context.Context, function string, params url.Values, out interface{}) error {
	q := url.Values{
		"login":    {c.cfg.Login},
		"password": {c.cfg.Password},
		"city":     {c.cfg.City},
		"function": {function},
		"v":        {apiVersion},
	}
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s: %w", function, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status code: %d", function, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", function, err)
	}

	var envelope APIError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != 0 {
		return &envelope
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", function, err)
	}
	return nil
}
