package salience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"
)

const DefaultFlickrURL = "https://api.flickr.com/services/rest/"

// FlickrClient counts photos matching a quoted name around a point.
type FlickrClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

var _ PopularitySource = (*FlickrClient)(nil)

type FlickrOption func(*FlickrClient)

func WithHTTPClient(c *http.Client) FlickrOption {
	return func(f *FlickrClient) { f.client = c }
}

func WithBaseURL(u string) FlickrOption {
	return func(f *FlickrClient) { f.baseURL = u }
}

// WithRateLimit caps requests per second, zero disables the limit.
func WithRateLimit(rps float64) FlickrOption {
	return func(f *FlickrClient) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func NewFlickrClient(apiKey string, opts ...FlickrOption) *FlickrClient {
	f := &FlickrClient{
		client:  &http.Client{Timeout: DefaultPopularityTimeout},
		baseURL: DefaultFlickrURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type flickrResponse struct {
	Stat    string `json:"stat"`
	Message string `json:"message"`
	Photos  struct {
		Total json.Number `json:"total"`
	} `json:"photos"`
}

func (f *FlickrClient) Count(ctx context.Context, text string, lonlat orb.Point, radiusKm float64) (int, error) {
	if f.apiKey == "" {
		return 0, errors.New("missing flickr api key")
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	q := url.Values{}
	q.Set("api_key", f.apiKey)
	q.Set("method", "flickr.photos.search")
	q.Set("text", `"`+text+`"`)
	q.Set("lat", strconv.FormatFloat(lonlat.Lat(), 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lonlat.Lon(), 'f', 6, 64))
	q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("flickr returned %d", resp.StatusCode)
	}

	var r flickrResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("decode flickr response: %w", err)
	}
	if r.Stat != "" && r.Stat != "ok" {
		return 0, fmt.Errorf("flickr error: %s", r.Message)
	}
	total, err := strconv.Atoi(r.Photos.Total.String())
	if err != nil {
		return 0, fmt.Errorf("flickr total %q: %w", r.Photos.Total, err)
	}
	flickrDuration.Record(ctx, time.Since(start).Seconds())
	return total, nil
}

var flickrDuration, _ = meter.Float64Histogram("flickr_request_duration_seconds")
