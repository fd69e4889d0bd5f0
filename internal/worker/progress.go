package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/congestionmap/internal/metrics"
)

// Progress tracks and displays batch analysis progress, including how
// many points landed in each congestion level.
type Progress struct {
	startTime time.Time
	output    io.Writer
	total     int
	completed int
	failed    int
	levels    map[metrics.Level]int
	last      string
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a progress tracker writing to stderr.
func NewProgress(total int, enabled bool) *Progress {
	return NewProgressTo(os.Stderr, total, enabled)
}

// NewProgressTo creates a progress tracker writing to w.
func NewProgressTo(w io.Writer, total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    w,
		levels:    make(map[metrics.Level]int),
		enabled:   enabled,
	}
}

// Update records the completion of a task.
func (p *Progress) Update(last Result, completed, total, failed int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.failed = failed
	p.last = last.Task.Label
	if last.Err == nil && last.Analysis != nil {
		p.levels[last.Analysis.Score.Level]++
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Levels returns how many successful analyses fell into each level.
func (p *Progress) Levels() map[metrics.Level]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[metrics.Level]int, len(p.levels))
	for k, v := range p.levels {
		out[k] = v
	}
	return out
}

// Print displays the current progress to output.
func (p *Progress) Print() {
	p.mu.RLock()
	completed, total, failed := p.completed, p.total, p.failed
	last := p.last
	elapsed := time.Since(p.startTime)
	p.mu.RUnlock()

	var eta time.Duration
	if completed > 0 && completed < total {
		perTask := elapsed / time.Duration(completed)
		eta = perTask * time.Duration(total-completed)
	}

	const barWidth = 30
	filled := 0
	if total > 0 {
		filled = completed * barWidth / total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %d/%d points", bar, completed, total)
	if failed > 0 {
		line += fmt.Sprintf(" (%d failed)", failed)
	}
	if last != "" {
		line += " - last: " + last
	}
	if eta > 0 {
		line += " - ETA: " + formatDuration(eta)
	}
	if completed == total {
		line += " - Done in " + formatDuration(elapsed)
	}

	// Pad to clear previous line content
	line += "          "

	fmt.Fprint(p.output, line)
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.RLock()
	completed, total, failed := p.completed, p.total, p.failed
	high, medium, low := p.levels[metrics.LevelHigh], p.levels[metrics.LevelMedium], p.levels[metrics.LevelLow]
	elapsed := time.Since(p.startTime)
	p.mu.RUnlock()

	return fmt.Sprintf("Analyzed %d/%d points (%d failed) in %s: %d HIGH, %d MEDIUM, %d LOW",
		completed-failed, total, failed, formatDuration(elapsed), high, medium, low)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
