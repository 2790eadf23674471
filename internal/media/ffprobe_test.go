package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   Classification
	}{
		{"1920x1080 is landscape", 1920, 1080, ClassLandscape},
		{"1080x1920 is portrait", 1080, 1920, ClassPortrait},
		{"1700x1000 is landscape", 1700, 1000, ClassLandscape},
		{"500x1000 is portrait", 500, 1000, ClassPortrait},
		{"4:3 is other", 800, 600, ClassOther},
		{"square is other", 1000, 1000, ClassOther},
		{"ultrawide is other", 2100, 1000, ClassOther},
		// Boundary ratios are excluded on both ranges.
		{"exactly 1.6 is other", 1600, 1000, ClassOther},
		{"exactly 1.9 is other", 1900, 1000, ClassOther},
		{"exactly 0.4 is other", 400, 1000, ClassOther},
		{"exactly 0.6 is other", 600, 1000, ClassOther},
		{"zero width is other", 0, 1080, ClassOther},
		{"zero height is other", 1920, 0, ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.width, tt.height))
		})
	}
}

func TestParseDimensions(t *testing.T) {
	t.Run("valid output", func(t *testing.T) {
		data := []byte(`{"streams":[{"width":1920,"height":1080}]}`)

		w, h, err := ParseDimensions(data)
		require.NoError(t, err)
		assert.Equal(t, 1920, w)
		assert.Equal(t, 1080, h)
	})

	t.Run("extra streams use the first", func(t *testing.T) {
		data := []byte(`{"streams":[{"width":1080,"height":1920},{"width":640,"height":480}]}`)

		w, h, err := ParseDimensions(data)
		require.NoError(t, err)
		assert.Equal(t, 1080, w)
		assert.Equal(t, 1920, h)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, _, err := ParseDimensions([]byte(`not json`))
		require.Error(t, err)
	})

	t.Run("no streams", func(t *testing.T) {
		_, _, err := ParseDimensions([]byte(`{"streams":[]}`))
		assert.ErrorIs(t, err, ErrNoVideoStream)
	})

	t.Run("zero dimensions", func(t *testing.T) {
		_, _, err := ParseDimensions([]byte(`{"streams":[{"width":0,"height":1080}]}`))
		assert.ErrorIs(t, err, ErrInvalidDimensions)
	})
}

func TestNewFFprobeInspector_DefaultPath(t *testing.T) {
	i := NewFFprobeInspector("")
	assert.Equal(t, "ffprobe", i.ffprobePath)

	i = NewFFprobeInspector("/opt/ffprobe")
	assert.Equal(t, "/opt/ffprobe", i.ffprobePath)
}

func TestFFprobeInspector_Classify_MissingBinary(t *testing.T) {
	i := NewFFprobeInspector(filepath.Join(t.TempDir(), "no-such-ffprobe"))

	_, err := i.Classify(context.Background(), "/tmp/input.mp4")
	require.Error(t, err)

	var pErr *ProbeError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "/tmp/input.mp4", pErr.Path)
}

func TestProbeError_Message(t *testing.T) {
	err := &ProbeError{
		Path:   "/tmp/in.mp4",
		Stderr: "Invalid data found when processing input",
		Err:    errors.New("exit status 1"),
	}

	assert.Contains(t, err.Error(), "/tmp/in.mp4")
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Contains(t, err.Error(), "exit status 1")
}
