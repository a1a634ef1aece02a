package spinner

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerWritesAndClears(t *testing.T) {
	var buf syncBuffer

	s := Start(&buf, "Verifying session")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, "Verifying session")
	assert.True(t, strings.HasSuffix(out, "\r"), "stop should clear the line")
}

func TestSpinnerUpdateSwapsMessage(t *testing.T) {
	var buf syncBuffer

	s := Start(&buf, "Sampling frames")
	time.Sleep(120 * time.Millisecond)
	s.Update("Building timeline (40%)")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, "Sampling frames")
	assert.Contains(t, out, "Building timeline (40%)")
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var buf syncBuffer

	s := Start(&buf, "working")
	s.Stop()
	assert.NotPanics(t, func() { s.Stop() })
}
