package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amaumene/towatch/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// PlaceholderPoster is served when an entry has no poster
	PlaceholderPoster = "/placeholder-poster.png"

	topResults   = 10
	maxRetries   = 3
	maxErrorBody = 512

	tracerName = "github.com/amaumene/towatch/internal/services/tmdb"
)

// ErrDisabled is returned by every call when no API key is configured
var ErrDisabled = errors.New("TMDB API key not configured")

// APIError is a non-2xx response from TMDB
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("TMDB API error: %d: %s", e.StatusCode, e.Body)
}

// Client handles communication with the TMDB API
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[[]byte]
	newBackOff   func() backoff.BackOff
	tracer       trace.Tracer
	logger       *logrus.Logger
}

// NewClient creates a new TMDB API client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	c := &Client{
		apiKey:       cfg.TMDBAPIKey,
		baseURL:      cfg.TMDBBaseURL,
		imageBaseURL: cfg.TMDBImageBaseURL,
		language:     cfg.TMDBLanguage,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	if !c.Enabled() {
		logger.Warn("TMDB_API_KEY not set, catalog features are disabled")
	}

	return c
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// BreakerState returns the circuit breaker state (closed, half-open, open)
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// PosterURL returns the full poster URL, or the placeholder when path is empty
func (c *Client) PosterURL(path *string) string {
	if path == nil || *path == "" {
		return PlaceholderPoster
	}
	return c.imageBaseURL + *path
}

// PopularMovies returns the first page of popular movies
func (c *Client) PopularMovies(ctx context.Context) ([]Movie, error) {
	var resp pagedResponse[Movie]
	if err := c.doRequest(ctx, "/movie/popular", firstPage(), &resp); err != nil {
		return nil, err
	}
	return results(resp.Results, 0), nil
}

// PopularTVShows returns the first page of popular TV shows
func (c *Client) PopularTVShows(ctx context.Context) ([]TVShow, error) {
	var resp pagedResponse[TVShow]
	if err := c.doRequest(ctx, "/tv/popular", firstPage(), &resp); err != nil {
		return nil, err
	}
	return results(resp.Results, 0), nil
}

// TrendingMovies returns today's top trending movies
func (c *Client) TrendingMovies(ctx context.Context) ([]Movie, error) {
	var resp pagedResponse[Movie]
	if err := c.doRequest(ctx, "/trending/movie/day", nil, &resp); err != nil {
		return nil, err
	}
	return results(resp.Results, topResults), nil
}

// TrendingTVShows returns today's top trending TV shows
func (c *Client) TrendingTVShows(ctx context.Context) ([]TVShow, error) {
	var resp pagedResponse[TVShow]
	if err := c.doRequest(ctx, "/trending/tv/day", nil, &resp); err != nil {
		return nil, err
	}
	return results(resp.Results, topResults), nil
}

// MovieRecommendations returns the top recommendations for a movie
func (c *Client) MovieRecommendations(ctx context.Context, movieID int) ([]Movie, error) {
	var resp pagedResponse[Movie]
	path := "/movie/" + strconv.Itoa(movieID) + "/recommendations"
	if err := c.doRequest(ctx, path, firstPage(), &resp); err != nil {
		return nil, err
	}
	return results(resp.Results, topResults), nil
}

// TVShowRecommendations returns the top recommendations for a TV show
func (c *Client) TVShowRecommendations(ctx context.Context, showID int) ([]TVShow, error) {
	var resp pagedResponse[TVShow]
	path := "/tv/" + strconv.Itoa(showID) + "/recommendations"
	if err := c.doRequest(ctx, path, firstPage(), &resp); err != nil {
		return nil, err
	}
	return results(resp.Results, topResults), nil
}

// doRequest performs a GET request against the TMDB API and decodes the JSON body into result
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result interface{}) (err error) {
	if !c.Enabled() {
		return ErrDisabled
	}

	ctx, span := c.tracer.Start(ctx, "tmdb.request", trace.WithAttributes(attribute.String("tmdb.path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", c.apiKey)
	query.Set("language", c.language)
	fullURL := c.baseURL + path + "?" + query.Encode()

	c.logger.WithField("path", path).Debug("Making TMDB API request")

	var body []byte
	operation := func() error {
		b, err := c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(ctx, fullURL)
		})
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"path": path,
			"wait": wait.String(),
		}).Warn("TMDB request failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("TMDB request %s failed: %w", path, err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// retryable reports whether a failed call is worth another attempt
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// breakerSuccess keeps client errors and cancellations from tripping the breaker
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func firstPage() url.Values {
	return url.Values{"page": {"1"}}
}

func results[T any](items []T, limit int) []T {
	if items == nil {
		return []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
