package tiles

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"helioscope/internal/common"
)

// Default provider endpoints
const (
	EsriTileTemplate   = "https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"
	GoogleTileTemplate = "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}&key={key}"
	BingTileTemplate   = "https://ecn.t0.tiles.virtualearth.net/tiles/a{q}.jpeg?g=1"
	GIBSWMSEndpoint    = "https://gibs.earthdata.nasa.gov/wms/epsg4326/best/wms.cgi"

	// GIBSLayer is the true-colour layer requested from NASA GIBS
	GIBSLayer = "VIIRS_SNPP_CorrectedReflectance_TrueColor"

	// GIBSImageSize is the edge of the WMS image in pixels
	GIBSImageSize = 1024

	// UserAgent sent with every imagery request
	UserAgent = "Mozilla/5.0 (compatible; Helioscope/1.0)"
)

// Endpoints holds the URL templates for each provider.
// Templates accept {x}, {y}, {z}, {q} (quadkey) and {key}.
type Endpoints struct {
	Esri   string
	Google string
	Bing   string
	GIBS   string
}

// DefaultEndpoints returns the public provider endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Esri:   EsriTileTemplate,
		Google: GoogleTileTemplate,
		Bing:   BingTileTemplate,
		GIBS:   GIBSWMSEndpoint,
	}
}

// TileURL builds the download URL for one tile of a tiled provider
func (e Endpoints) TileURL(provider common.Provider, tile Tile, apiKey string) (string, error) {
	var template string
	switch provider {
	case common.ProviderEsri:
		template = e.Esri
	case common.ProviderGoogle:
		if apiKey == "" {
			return "", fmt.Errorf("google provider requires an API key")
		}
		template = e.Google
	case common.ProviderBing:
		template = e.Bing
	case common.ProviderGIBS:
		return "", fmt.Errorf("gibs is served as a single WMS image, not tiles")
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	r := strings.NewReplacer(
		"{x}", strconv.Itoa(tile.X),
		"{y}", strconv.Itoa(tile.Y),
		"{z}", strconv.Itoa(tile.Z),
		"{q}", QuadKey(tile),
		"{key}", url.QueryEscape(apiKey),
	)
	return r.Replace(template), nil
}

// GIBSURL builds a WMS 1.3.0 GetMap request for a bounding box.
// EPSG:4326 in WMS 1.3.0 uses lat/lon axis order.
func (e Endpoints) GIBSURL(bbox BoundingBox) string {
	q := url.Values{}
	q.Set("service", "WMS")
	q.Set("request", "GetMap")
	q.Set("version", "1.3.0")
	q.Set("layers", GIBSLayer)
	q.Set("styles", "")
	q.Set("crs", "EPSG:4326")
	q.Set("format", "image/jpeg")
	q.Set("transparent", "false")
	q.Set("width", strconv.Itoa(GIBSImageSize))
	q.Set("height", strconv.Itoa(GIBSImageSize))
	q.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", bbox.South, bbox.West, bbox.North, bbox.East))
	return e.GIBS + "?" + q.Encode()
}
