package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	1280	720	-1
5	1	1	1	1	1	10	10	80	20	96.5	Add
5	1	1	1	1	2	95	10	60	20	91.2	to
5	1	1	1	1	3	160	10	90	20	88.7	Cart
5	1	1	2	1	1	10	60	120	20	12.0	smudge
5	1	2	1	1	1	10	120	200	20	75.0	Checkout
4	1	2	1	2	0	10	160	200	20	-1
5	1	2	1	2	1	10	160	90	20	82.3	Total:
5	1	2	1	2	2	110	160	60	20	80.1	$42.00`

func TestParseTSV(t *testing.T) {
	t.Run("groups words into lines", func(t *testing.T) {
		lines := parseTSV(sampleTSV, 0.3)
		require.Equal(t, []string{"Add to Cart", "Checkout", "Total: $42.00"}, lines)
	})

	t.Run("confidence threshold drops words", func(t *testing.T) {
		lines := parseTSV(sampleTSV, 0.9)
		require.Equal(t, []string{"Add to"}, lines)
	})

	t.Run("empty output", func(t *testing.T) {
		assert.Empty(t, parseTSV("", 0.3))
		assert.Empty(t, parseTSV("level\tpage_num\n", 0.3))
	})
}

func TestNoop(t *testing.T) {
	out, err := Noop{}.RecognizeFrames(context.Background(), []models.Frame{{Index: 0}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func writeStubTesseract(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tesseract-stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestRecognizeFrames(t *testing.T) {
	tsv := strings.ReplaceAll(sampleTSV, "\n", `\n`)

	t.Run("text keyed by frame index", func(t *testing.T) {
		rec := &Tesseract{Path: writeStubTesseract(t, `printf '`+tsv+`'`)}

		frames := []models.Frame{
			{Index: 0, Path: "frame_0000.jpg"},
			{Index: 3, Path: "frame_0003.jpg"},
			{Index: 5},
		}

		out, err := rec.RecognizeFrames(context.Background(), frames)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Contains(t, out[0], "Add to Cart")
		assert.Contains(t, out[3], "Checkout")
		assert.NotContains(t, out, 5)
	})

	t.Run("per-frame failure absorbed", func(t *testing.T) {
		rec := &Tesseract{Path: writeStubTesseract(t, `echo "no image" >&2; exit 1`)}

		out, err := rec.RecognizeFrames(context.Background(), []models.Frame{{Index: 0, Path: "missing.jpg"}})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rec := &Tesseract{Path: writeStubTesseract(t, `exit 1`)}
		_, err := rec.RecognizeFrames(ctx, []models.Frame{{Index: 0, Path: "frame.jpg"}})
		require.Error(t, err)
	})
}

func TestTesseractDefaults(t *testing.T) {
	rec := NewTesseract()
	assert.Equal(t, "tesseract", rec.binary())
	assert.Equal(t, defaultLanguages, rec.languages())
	assert.Equal(t, defaultMinConfidence, rec.minConfidence())
	assert.Equal(t, defaultConcurrency, rec.concurrency())

	zero := &Tesseract{}
	assert.Equal(t, "tesseract", zero.binary())
	assert.Equal(t, defaultConcurrency, zero.concurrency())
}
