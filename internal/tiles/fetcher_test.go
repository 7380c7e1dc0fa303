package tiles

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helioscope/internal/common"
	"helioscope/internal/ratelimit"
)

func solidPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	f, err := NewFetcher(Options{
		Workers:      4,
		CacheEntries: 64,
		GoogleAPIKey: "test-key",
		Endpoints: Endpoints{
			Esri:   srv.URL + "/esri/{z}/{y}/{x}",
			Google: srv.URL + "/google?x={x}&y={y}&z={z}&key={key}",
			Bing:   srv.URL + "/bing/{q}",
			GIBS:   srv.URL + "/wms",
		},
		RateLimits: ratelimit.NewTracker(nil),
	})
	require.NoError(t, err)
	return f, &hits
}

func TestFetchStitchesGridAndCaches(t *testing.T) {
	tile := solidPNG(t, TileSize)
	f, hits := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(tile)
	})

	coord := common.Coordinate{Latitude: 12.8604075, Longitude: 77.6625644}
	img, err := f.Fetch(context.Background(), coord, 18, 1, common.ProviderEsri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, int64(9), atomic.LoadInt64(hits))

	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 3*TileSize, decoded.Bounds().Dx())
	assert.Equal(t, 3*TileSize, decoded.Bounds().Dy())

	_, err = f.Fetch(context.Background(), coord, 18, 1, common.ProviderEsri)
	require.NoError(t, err)
	assert.Equal(t, int64(9), atomic.LoadInt64(hits), "second fetch should be served from cache")
	assert.Equal(t, 9, f.Cache().Len())
}

func TestFetchFailsWhenAnyTileFails(t *testing.T) {
	tile := solidPNG(t, TileSize)
	var served int64
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&served, 1) == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(tile)
	})

	_, err := f.Fetch(context.Background(), common.Coordinate{Latitude: 10, Longitude: 10}, 16, 1, common.ProviderBing)
	assert.Error(t, err)
}

func TestFetchReportsRateLimit(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := f.Fetch(context.Background(), common.Coordinate{Latitude: 10, Longitude: 10}, 16, 0, common.ProviderGoogle)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, f.limits.IsRateLimited("google"))
}

func TestFetchRejectsUndecodableTile(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>blocked</html>"))
	})

	_, err := f.Fetch(context.Background(), common.Coordinate{Latitude: 10, Longitude: 10}, 16, 0, common.ProviderEsri)
	assert.Error(t, err)
}

func TestFetchGIBSRequiresImageContent(t *testing.T) {
	img := solidPNG(t, 64)
	var asImage atomic.Bool
	asImage.Store(true)
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wms", r.URL.Path)
		if asImage.Load() {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(img)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte("<ServiceException/>"))
	})

	coord := common.Coordinate{Latitude: 10, Longitude: 10}
	out, err := f.Fetch(context.Background(), coord, 6, 1, common.ProviderGIBS)
	require.NoError(t, err)
	assert.False(t, out.Empty())

	asImage.Store(false)
	_, err = f.Fetch(context.Background(), coord, 6, 1, common.ProviderGIBS)
	assert.Error(t, err)
}

func TestFetchHonoursCancellation(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, common.Coordinate{Latitude: 10, Longitude: 10}, 16, 0, common.ProviderEsri)
	assert.Error(t, err)
}
