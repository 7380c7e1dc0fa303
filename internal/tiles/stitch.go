package tiles

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // tile decoders
	"image/png"
	"sync"
)

// tileResult represents a downloaded tile
type tileResult struct {
	row, col int
	data     []byte
	err      error
}

// fetchFunc downloads the bytes of one tile
type fetchFunc func(ctx context.Context, tile Tile) ([]byte, error)

// downloadGrid downloads every tile of a grid using a worker pool.
// The returned slice mirrors the grid layout. The first failure cancels the rest.
func downloadGrid(ctx context.Context, grid [][]Tile, workers int, fetch fetchFunc) ([][][]byte, error) {
	total := 0
	for _, row := range grid {
		total += len(row)
	}
	if total == 0 {
		return nil, fmt.Errorf("no tiles to download")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		row, col int
		tile     Tile
	}

	// Channels for worker pool
	jobs := make(chan job, total)
	results := make(chan tileResult, total)

	// Determine worker count (min of workers setting and total tiles)
	workerCount := workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if total < workerCount {
		workerCount = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- tileResult{row: j.row, col: j.col, err: ctx.Err()}
					continue
				}
				data, err := fetch(ctx, j.tile)
				if err != nil {
					err = fmt.Errorf("tile %s: %w", j.tile, err)
				}
				results <- tileResult{row: j.row, col: j.col, data: data, err: err}
			}
		}()
	}

	for r, row := range grid {
		for c, tile := range row {
			jobs <- job{row: r, col: c, tile: tile}
		}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][][]byte, len(grid))
	for r, row := range grid {
		out[r] = make([][]byte, len(row))
	}

	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		out[result.row][result.col] = result.data
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// stitch decodes tile images and lays them out row by row from the top-left.
// Every tile must decode; a partial mosaic is never returned.
func stitch(tileData [][][]byte) (image.Image, error) {
	if len(tileData) == 0 || len(tileData[0]) == 0 {
		return nil, fmt.Errorf("no tiles to stitch")
	}

	rows := len(tileData)
	cols := len(tileData[0])
	outputImg := image.NewRGBA(image.Rect(0, 0, cols*TileSize, rows*TileSize))

	for r, row := range tileData {
		for c, data := range row {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("failed to decode tile at row %d col %d: %w", r, c, err)
			}

			xOffset := c * TileSize
			yOffset := r * TileSize
			destRect := image.Rect(xOffset, yOffset, xOffset+TileSize, yOffset+TileSize)
			draw.Draw(outputImg, destRect, img, img.Bounds().Min, draw.Src)
		}
	}

	return outputImg, nil
}

// encodePNG encodes an image as PNG bytes
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
