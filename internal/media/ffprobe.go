package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// Static errors for probing.
var (
	// ErrNoVideoStream is returned when ffprobe reports no video streams.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrInvalidDimensions is returned when the reported dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid stream dimensions")
)

// ProbeError represents a failed ffprobe invocation or unparseable output,
// including the tool's stderr for operability. Probe failures are fatal to
// the run: a malformed input does not become parseable on retry.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("probe %s: %v\nstderr: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// FFprobeInspector implements Inspector using the ffprobe CLI.
type FFprobeInspector struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFprobeInspector creates a new FFprobeInspector.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobeInspector(ffprobePath string) *FFprobeInspector {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeInspector{ffprobePath: ffprobePath}
}

// Classify probes the file at path and buckets it by aspect ratio.
func (i *FFprobeInspector) Classify(ctx context.Context, path string) (Classification, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, i.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", &ProbeError{Path: path, Stderr: stderr.String(), Err: err}
	}

	width, height, err := ParseDimensions(stdout.Bytes())
	if err != nil {
		return "", &ProbeError{Path: path, Err: err}
	}

	return Classify(width, height), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParseDimensions extracts the primary stream's width and height from raw
// ffprobe JSON output. Exported for testing without a real ffprobe binary.
func ParseDimensions(data []byte) (width, height int, err error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	if len(raw.Streams) == 0 {
		return 0, 0, ErrNoVideoStream
	}

	s := raw.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, s.Width, s.Height)
	}
	return s.Width, s.Height, nil
}
