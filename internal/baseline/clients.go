package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TrendsClient yields a 0..100 weekly search-interest score for an entity
// name. A nil client means the component is absent.
type TrendsClient interface {
	WeeklyInterest(ctx context.Context, name string, weekStart time.Time) (float64, error)
}

// PageviewsClient yields a 7-day encyclopedic pageview total for a title.
type PageviewsClient interface {
	WeeklyViews(ctx context.Context, title string, weekStart time.Time) (float64, error)
}

// HTTPTrendsClient calls an operator-deployed trends proxy: GET
// <base>?q=<name>&week=<YYYY-MM-DD> returning {"interest": <0..100>}.
type HTTPTrendsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPTrendsClient(baseURL string, timeout time.Duration) *HTTPTrendsClient {
	return &HTTPTrendsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPTrendsClient) WeeklyInterest(ctx context.Context, name string, weekStart time.Time) (float64, error) {
	params := url.Values{
		"q":    {name},
		"week": {weekStart.UTC().Format("2006-01-02")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build trends request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch trends: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("trends status %d", resp.StatusCode)
	}

	var payload struct {
		Interest float64 `json:"interest"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode trends response: %w", err)
	}
	return payload.Interest, nil
}

const wikimediaPageviewsBase = "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article/en.wikipedia.org/all-access/user"

// WikimediaPageviewsClient reads the public per-article pageviews API. Data
// lags about a day, so the window ends at weekStart minus one day.
type WikimediaPageviewsClient struct {
	httpClient *http.Client
	userAgent  string
}

func NewWikimediaPageviewsClient(timeout time.Duration) *WikimediaPageviewsClient {
	return &WikimediaPageviewsClient{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "ETHeatmap-Baseline/2.0 (+https://github.com/avgjoe1017/et-heatmap-v2)",
	}
}

func (c *WikimediaPageviewsClient) WeeklyViews(ctx context.Context, title string, weekStart time.Time) (float64, error) {
	end := weekStart.UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -6)

	escaped := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	endpoint := fmt.Sprintf("%s/%s/daily/%s/%s",
		wikimediaPageviewsBase, escaped, start.Format("20060102"), end.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build pageviews request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch pageviews: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("pageviews status %d", resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			Views float64 `json:"views"`
		} `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode pageviews response: %w", err)
	}

	var total float64
	for _, item := range payload.Items {
		total += item.Views
	}
	return total, nil
}
