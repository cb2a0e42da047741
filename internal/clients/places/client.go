package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/geo"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/httpx"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

var ErrAddressNotFound = errors.New("places: address not found")

type Location struct {
	FormattedAddress string
	Point            geo.Point
}

type Place struct {
	PlaceID     string
	Name        string
	Address     string
	Point       geo.Point
	Rating      float64
	RatingCount int
	OpenNow     *bool
}

// Client wraps Google Geocoding and Places Nearby Search.
type Client interface {
	Geocode(ctx context.Context, address string) (Location, error)
	Nearby(ctx context.Context, origin geo.Point, keyword string, radiusMeters int) ([]Place, error)
}

type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	GeocodeCache  int
	DefaultRadius int
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing MAPS_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://maps.googleapis.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.GeocodeCache <= 0 {
		cfg.GeocodeCache = 512
	}
	if cfg.DefaultRadius <= 0 {
		cfg.DefaultRadius = 5000
	}
	cache, err := lru.New(cfg.GeocodeCache)
	if err != nil {
		return nil, fmt.Errorf("geocode cache: %w", err)
	}
	return &client{
		log:        log.With("client", "PlacesClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		geocodes:   cache,
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	geocodes   *lru.Cache
	inflight   singleflight.Group
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("maps http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// APIStatusError is a 200 reply whose "status" field reports a failure.
type APIStatusError struct {
	Status  string
	Message string
}

func (e *APIStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("maps status %s: %s", e.Status, e.Message)
	}
	return "maps status " + e.Status
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID          string  `json:"place_id"`
		Name             string  `json:"name"`
		Vicinity         string  `json:"vicinity"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		Geometry         struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
		OpeningHours *struct {
			OpenNow bool `json:"open_now"`
		} `json:"opening_hours"`
	} `json:"results"`
}

func normalizeAddress(a string) string {
	return strings.Join(strings.Fields(strings.ToLower(a)), " ")
}

func (c *client) Geocode(ctx context.Context, address string) (Location, error) {
	key := normalizeAddress(address)
	if key == "" {
		return Location{}, ErrAddressNotFound
	}
	if v, ok := c.geocodes.Get(key); ok {
		return v.(Location), nil
	}

	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		q := url.Values{}
		q.Set("address", strings.TrimSpace(address))
		var resp geocodeResponse
		if err := c.get(ctx, "/maps/api/geocode/json", q, &resp); err != nil {
			return nil, err
		}
		switch resp.Status {
		case "OK":
		case "ZERO_RESULTS":
			return nil, ErrAddressNotFound
		default:
			return nil, &APIStatusError{Status: resp.Status, Message: resp.ErrorMessage}
		}
		if len(resp.Results) == 0 {
			return nil, ErrAddressNotFound
		}
		r := resp.Results[0]
		loc := Location{
			FormattedAddress: r.FormattedAddress,
			Point:            geo.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		}
		c.geocodes.Add(key, loc)
		return loc, nil
	})
	if err != nil {
		return Location{}, err
	}
	return v.(Location), nil
}

func (c *client) Nearby(ctx context.Context, origin geo.Point, keyword string, radiusMeters int) ([]Place, error) {
	if radiusMeters <= 0 {
		radiusMeters = c.cfg.DefaultRadius
	}
	q := url.Values{}
	q.Set("location", strconv.FormatFloat(origin.Lat, 'f', -1, 64)+","+strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	if kw := strings.TrimSpace(keyword); kw != "" {
		q.Set("keyword", kw)
	}

	var resp nearbyResponse
	if err := c.get(ctx, "/maps/api/place/nearbysearch/json", q, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, &APIStatusError{Status: resp.Status, Message: resp.ErrorMessage}
	}

	out := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := Place{
			PlaceID:     r.PlaceID,
			Name:        r.Name,
			Address:     r.Vicinity,
			Point:       geo.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			Rating:      r.Rating,
			RatingCount: r.UserRatingsTotal,
		}
		if r.OpeningHours != nil {
			open := r.OpeningHours.OpenNow
			p.OpenNow = &open
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", c.cfg.APIKey)
	endpoint := c.cfg.BaseURL + path + "?" + q.Encode()

	policy := httpx.RetryPolicy{Name: "maps", MaxRetries: c.cfg.MaxRetries}
	return httpx.Do(ctxutil.Default(ctx), c.log, policy, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return resp, readErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("maps decode error: %w", err)
		}
		return resp, nil
	})
}
