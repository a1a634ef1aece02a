// Package ocr extracts on-screen text from sampled frames. Recognition
// failures on individual frames are absorbed: a frame without text hints
// still participates in timeline construction.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/richardpark-msft/vigil/internal/models"
)

const (
	defaultLanguages     = "eng"
	defaultMinConfidence = 0.3
	defaultConcurrency   = 3
)

// Recognizer extracts visible text per frame, keyed by frame index.
type Recognizer interface {
	RecognizeFrames(ctx context.Context, frames []models.Frame) (map[int][]string, error)
}

// Noop recognizes nothing. Used when OCR is disabled or the binary is absent.
type Noop struct{}

func (Noop) RecognizeFrames(context.Context, []models.Frame) (map[int][]string, error) {
	return map[int][]string{}, nil
}

// Tesseract shells out to the tesseract binary once per frame, a bounded
// number of frames at a time.
type Tesseract struct {
	// Path overrides the binary resolved from PATH.
	Path string
	// Languages is the tesseract -l argument.
	Languages string
	// MinConfidence drops recognized words below this confidence (0..1).
	MinConfidence float64
	// Concurrency bounds parallel tesseract processes.
	Concurrency int
}

// NewTesseract returns a recognizer with the default language, confidence
// threshold, and concurrency.
func NewTesseract() *Tesseract {
	return &Tesseract{
		Path:          "tesseract",
		Languages:     defaultLanguages,
		MinConfidence: defaultMinConfidence,
		Concurrency:   defaultConcurrency,
	}
}

// Available reports whether the tesseract binary can be resolved.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.binary())
	return err == nil
}

// RecognizeFrames runs OCR over all frames and returns the recognized text
// lines keyed by frame index. Frames without a stored image or whose OCR run
// fails are skipped with a warning.
func (t *Tesseract) RecognizeFrames(ctx context.Context, frames []models.Frame) (map[int][]string, error) {
	results := make([][]string, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency())

	for i, frame := range frames {
		if frame.Path == "" {
			continue
		}
		g.Go(func() error {
			lines, err := t.recognizeOne(gctx, frame.Path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("OCR failed for frame", "frame", frame.Index, "error", err)
				return nil
			}
			results[i] = lines
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int][]string, len(frames))
	found := 0
	for i, frame := range frames {
		if len(results[i]) > 0 {
			out[frame.Index] = results[i]
			found++
		}
	}
	slog.Debug("OCR complete", "frames", len(frames), "with_text", found)
	return out, nil
}

func (t *Tesseract) recognizeOne(ctx context.Context, imagePath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, t.binary(), imagePath, "stdout", "-l", t.languages(), "tsv")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract: %w; stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseTSV(stdout.String(), t.minConfidence()), nil
}

// parseTSV groups tesseract word rows back into visual lines, dropping words
// below the confidence threshold. TSV columns: level page block par line word
// left top width height conf text; word rows carry level 5 and conf 0..100.
func parseTSV(output string, minConfidence float64) []string {
	type lineKey struct{ block, par, line string }

	var order []lineKey
	words := make(map[lineKey][]string)

	for i, row := range strings.Split(output, "\n") {
		if i == 0 {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < minConfidence*100 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		key := lineKey{block: cols[2], par: cols[3], line: cols[4]}
		if _, seen := words[key]; !seen {
			order = append(order, key)
		}
		words[key] = append(words[key], text)
	}

	lines := make([]string, 0, len(order))
	for _, key := range order {
		lines = append(lines, strings.Join(words[key], " "))
	}
	return lines
}

func (t *Tesseract) binary() string {
	if t.Path != "" {
		return t.Path
	}
	return "tesseract"
}

func (t *Tesseract) languages() string {
	if t.Languages != "" {
		return t.Languages
	}
	return defaultLanguages
}

func (t *Tesseract) minConfidence() float64 {
	if t.MinConfidence > 0 {
		return t.MinConfidence
	}
	return defaultMinConfidence
}

func (t *Tesseract) concurrency() int {
	if t.Concurrency > 0 {
		return t.Concurrency
	}
	return defaultConcurrency
}
