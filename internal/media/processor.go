// Package media provides video inspection and normalization backed by the
// ffprobe and ffmpeg CLIs. It defines narrow Inspector and Normalizer ports
// so the upload pipeline can be tested without the real tools installed.
package media

import "context"

// Classification is the aspect-ratio bucket of a video's primary stream.
type Classification string

const (
	// ClassLandscape covers ratios strictly between 1.6 and 1.9 (e.g. 16:9).
	ClassLandscape Classification = "landscape"
	// ClassPortrait covers ratios strictly between 0.4 and 0.6 (e.g. 9:16).
	ClassPortrait Classification = "portrait"
	// ClassOther covers everything else, including the exact boundary ratios.
	ClassOther Classification = "other"
)

// Classify buckets the given dimensions by width/height ratio.
// The bounds are exclusive: a ratio of exactly 1.6, 1.9, 0.4 or 0.6 falls
// into ClassOther. Existing object keys depend on these exact cutoffs.
func Classify(width, height int) Classification {
	if width <= 0 || height <= 0 {
		return ClassOther
	}

	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1.6 && ratio < 1.9:
		return ClassLandscape
	case ratio > 0.4 && ratio < 0.6:
		return ClassPortrait
	default:
		return ClassOther
	}
}

// Inspector classifies a local video file by its primary stream's aspect ratio.
type Inspector interface {
	// Classify probes the file at path and returns its aspect-ratio bucket.
	// Failures (tool exit, unparseable output, missing stream) are returned
	// as *ProbeError and are not retryable.
	Classify(ctx context.Context, path string) (Classification, error)
}

// Normalizer rewrites a video container for streaming without re-encoding.
type Normalizer interface {
	// Normalize remuxes the file at path with the container index moved to
	// the front ("fast start") and returns the path of the new file, a
	// deterministic sibling of the input. The input file is left in place.
	// On error no output file remains: implementations remove any partially
	// written output before returning.
	Normalize(ctx context.Context, path string) (string, error)
}
