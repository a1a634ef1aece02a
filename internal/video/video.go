// Package video samples frames from a recorded session using the ffmpeg
// toolchain. Probing and extraction shell out to ffprobe/ffmpeg, so both are
// context-aware and surface the subprocess stderr on failure.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/richardpark-msft/vigil/internal/models"
)

// Defaults applied when the plan's sampling section leaves a field unset.
const (
	DefaultFrameIntervalSec = 2.0
	DefaultMaxFrames        = 50
)

// Info describes a probed session video.
type Info struct {
	Duration float64
	Width    int
	Height   int
}

// Sampler extracts evenly spaced frames from a session recording.
type Sampler interface {
	Probe(ctx context.Context, path string) (Info, error)
	Sample(ctx context.Context, path, outDir string, cfg models.SamplingConfig) ([]models.Frame, error)
}

// FFmpeg is the default Sampler, backed by the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	// FFmpegPath and FFprobePath override the binaries resolved from PATH.
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpeg returns a sampler that resolves ffmpeg and ffprobe from PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Probe reads duration and dimensions of the video at path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	if _, err := os.Stat(path); err != nil {
		return Info{}, fmt.Errorf("session video: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w; stderr: %s", filepath.Base(path), err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (Info, error) {
	var probe struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Info{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	info := Info{}
	if len(probe.Streams) > 0 {
		info.Width = probe.Streams[0].Width
		info.Height = probe.Streams[0].Height
	}
	if probe.Format.Duration != "" {
		d, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return Info{}, fmt.Errorf("parsing video duration %q: %w", probe.Format.Duration, err)
		}
		info.Duration = d
	}
	return info, nil
}

// Sample extracts frames at the configured interval into outDir/frames and
// returns them in chronological order. Frame timestamps are derived from the
// extraction interval.
func (f *FFmpeg) Sample(ctx context.Context, path, outDir string, cfg models.SamplingConfig) ([]models.Frame, error) {
	interval := cfg.FrameIntervalSec
	if interval <= 0 {
		interval = DefaultFrameIntervalSec
	}
	maxFrames := cfg.MaxFrames
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}

	framesDir := filepath.Join(outDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating frames directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vf", fmt.Sprintf("fps=1/%g", interval),
		"-frames:v", strconv.Itoa(maxFrames),
		"-q:v", "2",
		filepath.Join(framesDir, "frame_%04d.jpg"),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w; stderr: %s", filepath.Base(path), err, stderr.String())
	}

	frames, err := framesFromDir(framesDir, interval)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frames from %s", path)
	}
	return frames, nil
}

// framesFromDir lists extracted frame files in name order and assigns each
// an index and a timestamp derived from the sampling interval.
func framesFromDir(dir string, interval float64) ([]models.Frame, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	sort.Strings(matches)

	frames := make([]models.Frame, 0, len(matches))
	for i, p := range matches {
		frames = append(frames, models.Frame{
			Index:     i,
			Timestamp: float64(i) * interval,
			Path:      p,
		})
	}
	return frames, nil
}
