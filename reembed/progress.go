// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how many units have been seen and embedded.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	seen           int
	embedded       int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of units to process
// reportInterval: report progress every N units
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start resets the counters and starts the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.seen = 0
	p.embedded = 0
	p.lastReported = 0
}

// Advance records a processed batch: seen units, of which embedded were written.
func (p *ProgressTracker) Advance(seen, embedded int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.seen = min(p.seen+seen, p.total)
	p.embedded = min(p.embedded+embedded, p.seen)

	if p.seen-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.seen
	}
}

// Finish prints the final line. Units never seen are not counted as embedded.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.seen = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Counts returns the units seen and embedded so far.
func (p *ProgressTracker) Counts() (seen, embedded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen, p.embedded
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.seen) / elapsed.Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.seen) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d units (%.1f%%), %d embedded - %.1f units/s",
		p.seen, p.total, percentage, p.embedded, rate)
}
