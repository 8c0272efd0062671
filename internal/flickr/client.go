// Package flickr searches the Flickr REST API for geotagged photos around a location.
package flickr

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/constants"
)

const searchMethod = "flickr.photos.search"

// RandomSource picks the result page. *rand.Rand satisfies it; tests pass a fixed source.
type RandomSource interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// Options configures a Client. Zero values fall back to the package defaults.
type Options struct {
	BaseURL           string
	APIKey            string
	SearchRadiusKm    float64
	MaxAlbumSize      int
	MaxResultWindow   int
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables rate limiting
	HTTPClient        *http.Client
	Random            RandomSource
}

// Client issues geo-bounded photo searches. It holds no per-search state.
type Client struct {
	baseURL         *url.URL
	apiKey          string
	radiusKm        float64
	maxAlbumSize    int
	maxResultWindow int
	client          *http.Client
	limiter         *rate.Limiter

	rngMu sync.Mutex
	rng   RandomSource
}

// NewClient creates a Flickr search client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("flickr base URL is required")
	}
	parsed, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid flickr URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid flickr URL scheme: %s", parsed.Scheme)
	}

	c := &Client{
		baseURL:         parsed,
		apiKey:          opts.APIKey,
		radiusKm:        opts.SearchRadiusKm,
		maxAlbumSize:    opts.MaxAlbumSize,
		maxResultWindow: opts.MaxResultWindow,
		client:          opts.HTTPClient,
		rng:             opts.Random,
	}
	if c.radiusKm <= 0 {
		c.radiusKm = constants.DefaultSearchRadiusKm
	}
	if c.maxAlbumSize <= 0 {
		c.maxAlbumSize = constants.DefaultMaxAlbumSize
	}
	if c.maxResultWindow <= 0 {
		c.maxResultWindow = constants.DefaultMaxResultWindow
	}
	if c.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = constants.DefaultRequestTimeout
		}
		c.client = &http.Client{Timeout: timeout}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // page choice is not security sensitive
	}
	return c, nil
}

// MaxAlbumSize returns how many photos a search result is truncated to.
func (c *Client) MaxAlbumSize() int {
	return c.maxAlbumSize
}

// SearchRequest is a photo search around a coordinate. Page 0 means "not given":
// the client then discovers the page count and picks a page itself.
type SearchRequest struct {
	Latitude  float64
	Longitude float64
	Page      int
}

// query builds the REST query string for the request.
func (r SearchRequest) query(apiKey string, radiusKm float64) url.Values {
	q := url.Values{}
	q.Set("method", searchMethod)
	q.Set("api_key", apiKey)
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")
	q.Set("extras", "url_m")
	q.Set("safe_search", "1")
	q.Set("lat", strconv.FormatFloat(r.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(r.Longitude, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	if r.Page > 0 {
		q.Set("page", strconv.Itoa(r.Page))
	}
	return q
}

// SearchResult holds the photo URLs of one result page.
// An empty URLs slice is a valid "no photos here" outcome.
type SearchResult struct {
	URLs    []string
	Page    int
	Pages   int
	PerPage int
}

// searchResponse mirrors {"photos": {"pages", "perpage", "photo": [...]}, "stat"}.
type searchResponse struct {
	Stat    string      `json:"stat"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Photos  *photosPage `json:"photos"`
}

type photosPage struct {
	Page    *flexInt `json:"page"`
	Pages   *flexInt `json:"pages"`
	PerPage *flexInt `json:"perpage"`
	Photo   []photo  `json:"photo"`
}

type photo struct {
	URLMedium string `json:"url_m"`
}

// Search runs a photo search. Without an explicit page it performs two calls: the
// first discovers the page count and page size, the second fetches one page chosen
// within the result window Flickr actually serves.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	resp, err := doGetJSON[searchResponse](ctx, c, req.query(c.apiKey, c.radiusKm))
	if err != nil {
		return nil, err
	}
	if resp.Stat == "fail" {
		return nil, fmt.Errorf("%w: flickr error %d: %s", album.ErrSearchFailed, resp.Code, resp.Message)
	}
	if resp.Photos == nil {
		return nil, fmt.Errorf("%w: missing photos object", album.ErrMalformedResponse)
	}

	if req.Page == 0 {
		if resp.Photos.Pages == nil || resp.Photos.PerPage == nil {
			return nil, fmt.Errorf("%w: missing pages or perpage", album.ErrMalformedResponse)
		}
		pages, perPage := int(*resp.Photos.Pages), int(*resp.Photos.PerPage)
		if pages <= 0 || perPage <= 0 {
			return &SearchResult{Pages: pages, PerPage: perPage}, nil
		}
		req.Page = c.pickPage(pages, perPage)
		klog.V(2).InfoS("Selected search page", "lat", req.Latitude, "lon", req.Longitude,
			"page", req.Page, "pages", pages, "perPage", perPage)
		return c.Search(ctx, req)
	}

	if resp.Photos.Photo == nil {
		return nil, fmt.Errorf("%w: missing photo array", album.ErrMalformedResponse)
	}

	result := &SearchResult{Page: req.Page}
	if resp.Photos.Pages != nil {
		result.Pages = int(*resp.Photos.Pages)
	}
	if resp.Photos.PerPage != nil {
		result.PerPage = int(*resp.Photos.PerPage)
	}
	for _, p := range resp.Photos.Photo {
		if len(result.URLs) >= c.maxAlbumSize {
			break
		}
		if p.URLMedium == "" {
			continue
		}
		result.URLs = append(result.URLs, p.URLMedium)
	}
	return result, nil
}

// pickPage returns a 1-based page within min(pages, maxResultWindow/perPage).
func (c *Client) pickPage(pages, perPage int) int {
	limit := min(pages, c.maxResultWindow/perPage)
	if limit < 1 {
		limit = 1
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Intn(limit) + 1
}
