package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub writes an executable shell script standing in for ffmpeg/ffprobe.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func touchFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestParseProbeOutput(t *testing.T) {
	t.Run("full output", func(t *testing.T) {
		info, err := parseProbeOutput([]byte(`{"streams":[{"width":1280,"height":720}],"format":{"duration":"42.5"}}`))
		require.NoError(t, err)
		assert.Equal(t, 42.5, info.Duration)
		assert.Equal(t, 1280, info.Width)
		assert.Equal(t, 720, info.Height)
	})

	t.Run("missing duration is zero", func(t *testing.T) {
		info, err := parseProbeOutput([]byte(`{"streams":[{"width":800,"height":600}],"format":{}}`))
		require.NoError(t, err)
		assert.Zero(t, info.Duration)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{"streams":[],"format":{"duration":"forty"}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duration")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{not json`))
		require.Error(t, err)
	})
}

func TestProbe(t *testing.T) {
	t.Run("missing video", func(t *testing.T) {
		f := NewFFmpeg()
		_, err := f.Probe(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
		require.Error(t, err)
	})

	t.Run("stubbed ffprobe", func(t *testing.T) {
		video := touchFile(t, t.TempDir(), "session.mp4")
		f := &FFmpeg{
			FFprobePath: writeStub(t, `printf '{"streams":[{"width":1920,"height":1080}],"format":{"duration":"12.25"}}'`),
		}

		info, err := f.Probe(context.Background(), video)
		require.NoError(t, err)
		assert.Equal(t, 12.25, info.Duration)
		assert.Equal(t, 1920, info.Width)
	})

	t.Run("ffprobe failure includes stderr", func(t *testing.T) {
		video := touchFile(t, t.TempDir(), "session.mp4")
		f := &FFmpeg{
			FFprobePath: writeStub(t, `echo "boom" >&2; exit 1`),
		}

		_, err := f.Probe(context.Background(), video)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestSample(t *testing.T) {
	// Stub that writes three frame files into the directory of the output
	// pattern (always the last argument).
	stub := `for last; do :; done
dir=$(dirname "$last")
: > "$dir/frame_0001.jpg"
: > "$dir/frame_0002.jpg"
: > "$dir/frame_0003.jpg"`

	t.Run("frames ordered with interval timestamps", func(t *testing.T) {
		f := &FFmpeg{FFmpegPath: writeStub(t, stub)}
		outDir := t.TempDir()

		frames, err := f.Sample(context.Background(), "session.mp4", outDir, models.SamplingConfig{FrameIntervalSec: 2})
		require.NoError(t, err)
		require.Len(t, frames, 3)

		for i, frame := range frames {
			assert.Equal(t, i, frame.Index)
			assert.Equal(t, float64(i)*2, frame.Timestamp)
			assert.FileExists(t, frame.Path)
		}
	})

	t.Run("defaults applied when sampling is zero", func(t *testing.T) {
		f := &FFmpeg{FFmpegPath: writeStub(t, stub)}

		frames, err := f.Sample(context.Background(), "session.mp4", t.TempDir(), models.SamplingConfig{})
		require.NoError(t, err)
		require.Len(t, frames, 3)
		assert.Equal(t, DefaultFrameIntervalSec, frames[1].Timestamp)
	})

	t.Run("no frames produced", func(t *testing.T) {
		f := &FFmpeg{FFmpegPath: writeStub(t, "exit 0")}

		_, err := f.Sample(context.Background(), "session.mp4", t.TempDir(), models.SamplingConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no frames")
	})

	t.Run("ffmpeg failure includes stderr", func(t *testing.T) {
		f := &FFmpeg{FFmpegPath: writeStub(t, `echo "codec error" >&2; exit 1`)}

		_, err := f.Sample(context.Background(), "session.mp4", t.TempDir(), models.SamplingConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "codec error")
	})
}

func TestFramesFromDir(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, dir, "frame_0002.jpg")
	touchFile(t, dir, "frame_0001.jpg")
	touchFile(t, dir, "frame_0010.jpg")
	touchFile(t, dir, "notes.txt")

	frames, err := framesFromDir(dir, 1.5)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, "frame_0001.jpg", filepath.Base(frames[0].Path))
	assert.Equal(t, "frame_0010.jpg", filepath.Base(frames[2].Path))
	assert.Equal(t, 3.0, frames[2].Timestamp)
}
