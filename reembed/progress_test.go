package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Advance(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Advance(25, 20)
	tracker.Advance(25, 25)
	tracker.Advance(50, 49)

	seen, embedded := tracker.Counts()
	assert.Equal(t, 100, seen)
	assert.Equal(t, 94, embedded)
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))

	output := buf.String()
	assert.Contains(t, output, "100/100 units")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "94 embedded")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Advance(75, 75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish should set to total")
	assert.Contains(t, output, "75 embedded", "finish should not invent embeddings")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0 units (0.0%)")
}

func TestProgressTracker_AdvanceBeyondTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 5)

	tracker.Start()
	tracker.Advance(15, 15)

	seen, embedded := tracker.Counts()
	assert.Equal(t, 10, seen, "seen should cap at total")
	assert.Equal(t, 10, embedded, "embedded should cap at seen")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Advance(50, 50)
	tracker.Finish()

	assert.Empty(t, buf.String(), "should not report before Start")
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 20)

	tracker.Start()
	tracker.Advance(10, 10)
	assert.Empty(t, buf.String(), "below interval should not report")

	tracker.Advance(10, 10)
	assert.Equal(t, 1, strings.Count(buf.String(), "Progress:"))

	tracker.Advance(5, 5)
	assert.Equal(t, 1, strings.Count(buf.String(), "Progress:"))

	tracker.Advance(15, 15)
	assert.Equal(t, 2, strings.Count(buf.String(), "Progress:"))
}

func TestProgressTracker_InvalidInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 3, 0)

	tracker.Start()
	tracker.Advance(1, 1)
	assert.Contains(t, buf.String(), "1/3 units")
}
