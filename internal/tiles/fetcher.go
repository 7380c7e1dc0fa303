package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"helioscope/internal/common"
	"helioscope/internal/ratelimit"
)

// ErrRateLimited is returned when a provider answers with a throttling status
var ErrRateLimited = errors.New("provider rate limit")

// Options configures a Fetcher
type Options struct {
	Workers      int
	Timeout      time.Duration
	CacheEntries int
	GoogleAPIKey string
	Endpoints    Endpoints
	HTTPClient   *http.Client
	RateLimits   *ratelimit.Tracker
}

// Fetcher downloads and stitches imagery around a coordinate
type Fetcher struct {
	httpClient *http.Client
	cache      *Cache
	endpoints  Endpoints
	workers    int
	googleKey  string
	limits     *ratelimit.Tracker
}

// NewFetcher creates a fetcher with system proxy support
func NewFetcher(opts Options) (*Fetcher, error) {
	cache, err := NewCache(opts.CacheEntries)
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}
	}

	endpoints := opts.Endpoints
	if endpoints == (Endpoints{}) {
		endpoints = DefaultEndpoints()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Fetcher{
		httpClient: client,
		cache:      cache,
		endpoints:  endpoints,
		workers:    workers,
		googleKey:  opts.GoogleAPIKey,
		limits:     opts.RateLimits,
	}, nil
}

// Cache exposes the tile cache for statistics
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// Fetch returns a PNG mosaic of the (2r+1)x(2r+1) tiles around coord.
// GIBS has no tile grid; it is fetched as one WMS image covering the same extent.
func (f *Fetcher) Fetch(ctx context.Context, coord common.Coordinate, zoom, radius int, provider common.Provider) (common.StitchedImage, error) {
	grid, err := Grid(coord.Latitude, coord.Longitude, zoom, radius)
	if err != nil {
		return common.StitchedImage{}, err
	}

	var img image.Image
	if provider == common.ProviderGIBS {
		img, err = f.fetchGIBS(ctx, grid)
	} else {
		img, err = f.fetchGrid(ctx, grid, provider)
	}
	if err != nil {
		return common.StitchedImage{}, err
	}

	data, err := encodePNG(img)
	if err != nil {
		return common.StitchedImage{}, err
	}

	log.Printf("[Tiles] Stitched %s z%d r%d at %.6f,%.6f (%d bytes)",
		provider, zoom, radius, coord.Latitude, coord.Longitude, len(data))
	return common.StitchedImage{MIMEType: "image/png", Data: data}, nil
}

func (f *Fetcher) fetchGrid(ctx context.Context, grid [][]Tile, provider common.Provider) (image.Image, error) {
	// Fail fast on configuration problems before spawning workers
	if _, err := f.endpoints.TileURL(provider, grid[0][0], f.googleKey); err != nil {
		return nil, err
	}

	tileData, err := downloadGrid(ctx, grid, f.workers, func(ctx context.Context, tile Tile) ([]byte, error) {
		if data, ok := f.cache.Get(provider, tile); ok {
			return data, nil
		}
		tileURL, err := f.endpoints.TileURL(provider, tile, f.googleKey)
		if err != nil {
			return nil, err
		}
		data, err := f.get(ctx, string(provider), tileURL, "")
		if err != nil {
			return nil, err
		}
		f.cache.Set(provider, tile, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return stitch(tileData)
}

func (f *Fetcher) fetchGIBS(ctx context.Context, grid [][]Tile) (image.Image, error) {
	bbox, err := GridBounds(grid)
	if err != nil {
		return nil, err
	}

	data, err := f.get(ctx, string(common.ProviderGIBS), f.endpoints.GIBSURL(bbox), "image")
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode gibs image: %w", err)
	}
	return img, nil
}

// get performs one imagery request. When wantType is set the response
// Content-Type must contain it.
func (f *Fetcher) get(ctx context.Context, provider, rawURL, wantType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s imagery: %w", provider, err)
	}
	defer resp.Body.Close()

	if f.limits.Observe(provider, resp.StatusCode) {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrRateLimited, provider, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request failed with status: %d", provider, resp.StatusCode)
	}
	if wantType != "" && !strings.Contains(resp.Header.Get("Content-Type"), wantType) {
		return nil, fmt.Errorf("%s returned non-image data (%s)", provider, resp.Header.Get("Content-Type"))
	}

	return io.ReadAll(resp.Body)
}
