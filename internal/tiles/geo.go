package tiles

import (
	"fmt"
	"math"
	"strings"
)

// TileSize is the pixel edge of a slippy-map tile
const TileSize = 256

// Tile is a standard XYZ tile address (Y from the top)
type Tile struct {
	X, Y, Z int
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// BoundingBox is a WGS84 extent in degrees
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// LatLonToTile converts latitude/longitude to tile coordinates
func LatLonToTile(lat, lon float64, zoom int) (x, y int) {
	n := math.Pow(2, float64(zoom))
	x = int((lon + 180.0) / 360.0 * n)
	latRad := lat * math.Pi / 180.0
	y = int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	// Clamp to valid range
	maxTile := int(n) - 1
	x = clamp(x, 0, maxTile)
	y = clamp(y, 0, maxTile)

	return x, y
}

// TileToLatLon returns the north-west corner of a tile
func TileToLatLon(x, y, zoom int) (lat, lon float64) {
	n := math.Pow(2, float64(zoom))
	lon = float64(x)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	lat = latRad * 180.0 / math.Pi
	return lat, lon
}

// Grid returns the (2r+1)x(2r+1) tiles centred on the tile containing lat/lon,
// ordered row by row from the north-west corner. Columns wrap at the antimeridian;
// rows past the poles are an error.
func Grid(lat, lon float64, zoom, radius int) ([][]Tile, error) {
	if radius < 0 {
		return nil, fmt.Errorf("radius must not be negative: %d", radius)
	}
	cx, cy := LatLonToTile(lat, lon, zoom)
	n := 1 << zoom

	rows := make([][]Tile, 0, 2*radius+1)
	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= n {
			return nil, fmt.Errorf("tile grid row %d outside map at zoom %d", y, zoom)
		}
		row := make([]Tile, 0, 2*radius+1)
		for dx := -radius; dx <= radius; dx++ {
			x := ((cx+dx)%n + n) % n
			row = append(row, Tile{X: x, Y: y, Z: zoom})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GridBounds returns the WGS84 extent covered by a grid from Grid
func GridBounds(grid [][]Tile) (BoundingBox, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return BoundingBox{}, fmt.Errorf("no tiles provided")
	}
	first := grid[0][0]
	lastRow := grid[len(grid)-1]
	last := lastRow[len(lastRow)-1]

	north, west := TileToLatLon(first.X, first.Y, first.Z)
	south, east := TileToLatLon(last.X+1, last.Y+1, last.Z)
	if east < west {
		// grid crosses the antimeridian
		east += 360
	}
	return BoundingBox{South: south, West: west, North: north, East: east}, nil
}

// QuadKey returns the Bing quadkey for a tile
func QuadKey(t Tile) string {
	var quadkey strings.Builder
	for i := t.Z; i > 0; i-- {
		digit := 0
		mask := 1 << (i - 1)
		if (t.X & mask) != 0 {
			digit++
		}
		if (t.Y & mask) != 0 {
			digit += 2
		}
		quadkey.WriteByte(byte('0' + digit))
	}
	return quadkey.String()
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
