package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// processedSuffix is appended to the input path to form the output path.
// The suffix is fixed so a failed run leaves at most one predictable sibling
// file to clean up.
const processedSuffix = ".processed"

// TranscodeError represents a failed ffmpeg invocation, including the tool's
// stderr output for operability.
type TranscodeError struct {
	Path   string
	Args   []string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v\nargs: %v\nstderr: %s", e.Path, e.Err, e.Args, e.Stderr)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// FFmpegNormalizer implements Normalizer using the ffmpeg CLI.
type FFmpegNormalizer struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegNormalizer creates a new FFmpegNormalizer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegNormalizer(ffmpegPath string) *FFmpegNormalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegNormalizer{ffmpegPath: ffmpegPath}
}

// ProcessedPath returns the output path Normalize will produce for the given
// input path.
func ProcessedPath(inputPath string) string {
	return inputPath + processedSuffix
}

// Normalize remuxes the file for fast-start playback. All streams are copied
// unmodified; only the container index moves to the front of the file.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, path string) (string, error) {
	outputPath := ProcessedPath(path)

	args := []string{
		"-y",       // Overwrite output file without asking
		"-i", path, // Input file
		"-movflags", "faststart", // Move the moov atom to the front
		"-map_metadata", "0", // Preserve input metadata
		"-codec", "copy", // Copy all streams, no re-encode
		"-f", "mp4", // Force mp4 container
		outputPath,
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A failed or killed run may have partially written the output file;
		// remove it so callers never have to clean up after a failure.
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = fmt.Errorf("%w (removing partial output: %v)", err, rmErr)
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return "", &TranscodeError{
			Path:   path,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return outputPath, nil
}
