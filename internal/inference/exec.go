package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"helioscope/internal/common"
)

// ExecRunner runs a local model script: `<python> <script> <image> <model>`.
// The script prints log lines followed by one JSON object on its last stdout line.
type ExecRunner struct {
	python string
	script string
	model  string
	tmpDir string
}

// NewExecRunner creates a runner; tmpDir may be empty to use the OS default
func NewExecRunner(python, script, model, tmpDir string) *ExecRunner {
	return &ExecRunner{python: python, script: script, model: model, tmpDir: tmpDir}
}

// Infer writes the image to a temporary file and runs the model script on it
func (r *ExecRunner) Infer(ctx context.Context, img common.StitchedImage) (json.RawMessage, error) {
	if img.Empty() {
		return nil, fmt.Errorf("no image to analyse")
	}
	if _, err := os.Stat(r.script); err != nil {
		return nil, fmt.Errorf("model runner not found at %s: %w", r.script, err)
	}

	dir, err := os.MkdirTemp(r.tmpDir, "helioscope-infer-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	imagePath := filepath.Join(dir, "tile.png")
	if err := os.WriteFile(imagePath, img.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.python, r.script, imagePath, r.model)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("model runner cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("model runner failed: %w: %s", err, truncate(stderr.Bytes(), 500))
	}

	line := lastLine(stdout.String())
	if line == "" {
		return nil, fmt.Errorf("model runner produced no output")
	}
	if !json.Valid([]byte(line)) {
		return nil, fmt.Errorf("model runner output is not JSON: %s", truncate([]byte(line), 200))
	}

	log.Printf("[Inference] Model runner finished (%d bytes)", len(line))
	return json.RawMessage(line), nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
