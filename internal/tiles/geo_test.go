package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helioscope/internal/common"
)

func TestGridIsCentredAndOrdered(t *testing.T) {
	grid, err := Grid(12.8604075, 77.6625644, 18, 1)
	require.NoError(t, err)
	require.Len(t, grid, 3)

	cx, cy := LatLonToTile(12.8604075, 77.6625644, 18)
	assert.Equal(t, Tile{X: cx, Y: cy, Z: 18}, grid[1][1])
	assert.Equal(t, Tile{X: cx - 1, Y: cy - 1, Z: 18}, grid[0][0])
	assert.Equal(t, Tile{X: cx + 1, Y: cy + 1, Z: 18}, grid[2][2])
	for _, row := range grid {
		assert.Len(t, row, 3)
	}
}

func TestGridRadiusZeroIsSingleTile(t *testing.T) {
	grid, err := Grid(0, 0, 1, 0)
	require.NoError(t, err)
	require.Len(t, grid, 1)
	assert.Len(t, grid[0], 1)
}

func TestGridWrapsAntimeridian(t *testing.T) {
	grid, err := Grid(0, 179.99, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, grid[1][2].X)
}

func TestGridRejectsRowsBeyondPole(t *testing.T) {
	_, err := Grid(85, 0, 1, 2)
	assert.Error(t, err)
}

func TestQuadKey(t *testing.T) {
	assert.Equal(t, "213", QuadKey(Tile{X: 3, Y: 5, Z: 3}))
	assert.Equal(t, "", QuadKey(Tile{Z: 0}))
}

func TestGridBounds(t *testing.T) {
	grid, err := Grid(0.1, 0.1, 1, 0)
	require.NoError(t, err)
	bbox, err := GridBounds(grid)
	require.NoError(t, err)
	assert.InDelta(t, 0, bbox.West, 1e-9)
	assert.InDelta(t, 180, bbox.East, 1e-9)
	assert.InDelta(t, 0, bbox.South, 1e-9)
	assert.Greater(t, bbox.North, 85.0)
}

func TestTileURL(t *testing.T) {
	e := DefaultEndpoints()
	tile := Tile{X: 3, Y: 5, Z: 3}

	esri, err := e.TileURL(common.ProviderEsri, tile, "")
	require.NoError(t, err)
	assert.Equal(t, "https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/3/5/3", esri)

	bing, err := e.TileURL(common.ProviderBing, tile, "")
	require.NoError(t, err)
	assert.Contains(t, bing, "/a213.jpeg")

	_, err = e.TileURL(common.ProviderGoogle, tile, "")
	assert.Error(t, err)
	google, err := e.TileURL(common.ProviderGoogle, tile, "k&y")
	require.NoError(t, err)
	assert.Contains(t, google, "key=k%26y")

	_, err = e.TileURL(common.ProviderGIBS, tile, "")
	assert.Error(t, err)
}

func TestGIBSURL(t *testing.T) {
	u := DefaultEndpoints().GIBSURL(BoundingBox{South: 1, West: 2, North: 3, East: 4})
	assert.Contains(t, u, "request=GetMap")
	assert.Contains(t, u, "crs=EPSG%3A4326")
	assert.Contains(t, u, "bbox=1.000000%2C2.000000%2C3.000000%2C4.000000")
}
