package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bassista/weather_collector/internal/logger"
	"github.com/sony/gobreaker"
)

var (
	ErrCityName = errors.New("can't get data from api, check city name is correct")
	ErrAPIKey   = errors.New("can't get data from api, check api key is correct")
)

// Fetcher is what the collector needs from the provider.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (*Snapshot, error)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
	HTTPClient       HTTPClient
}

// Client issues one GET per city. There is no retry: a failed city aborts
// the cycle and the next tick tries again.
type Client struct {
	baseURL string
	apiKey  string
	http    HTTPClient
	breaker *gobreaker.CircuitBreaker
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}

	log := logger.WithComponent("api-client")
	settings := gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// serverStatusError marks a 5xx answer. It counts against the breaker but
// is reported to callers as a skipped city.
type serverStatusError struct {
	status int
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("provider answered HTTP %d", e.status)
}

type rawResponse struct {
	status int
	body   []byte
}

// Fetch returns the snapshot for city, ErrCityName on 404, ErrAPIKey on 401
// and (nil, nil) for any other provider status, 5xx included. Transport and
// decode failures and an open breaker are errors.
func (c *Client) Fetch(ctx context.Context, city string) (*Snapshot, error) {
	log := logger.WithComponent("api-client")

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, city)
	})
	if err != nil {
		var statusErr *serverStatusError
		if errors.As(err, &statusErr) {
			log.Warnf("provider returned status %d for %q, skipping", statusErr.status, city)
			return nil, nil
		}
		return nil, err
	}
	raw := out.(*rawResponse)

	var payload response
	if err := json.Unmarshal(raw.body, &payload); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	code := int(payload.Cod)
	if code == 0 {
		code = raw.status
	}

	switch code {
	case http.StatusOK:
		return payload.snapshot(city), nil
	case http.StatusNotFound:
		log.Errorf("city %q rejected by provider: %s", city, payload.Message)
		return nil, fmt.Errorf("%w: %s", ErrCityName, city)
	case http.StatusUnauthorized:
		log.Error(ErrAPIKey.Error())
		return nil, ErrAPIKey
	default:
		log.Warnf("provider returned status %d for %q, skipping", code, city)
		return nil, nil
	}
}

// get performs the request. Only transport failures and 5xx answers count
// against the breaker; 4xx bodies are returned for classification.
func (c *Client) get(ctx context.Context, city string) (*rawResponse, error) {
	values := url.Values{}
	values.Set("q", city)
	values.Set("units", "metric")
	values.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &serverStatusError{status: resp.StatusCode}
	}
	return &rawResponse{status: resp.StatusCode, body: body}, nil
}
