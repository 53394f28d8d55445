package exporter

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
)

// progressLine redraws a single status line on a terminal. It is silent when
// the output is not a character device.
type progressLine struct {
	out      io.Writer
	enabled  bool
	total    int
	done     int
	phase    string
	drawnLen int
	bar      progress.Model
}

func newProgressLine(total int) *progressLine {
	return newProgressLineTo(os.Stderr, isTerminal(os.Stderr), total)
}

func newProgressLineTo(out io.Writer, enabled bool, total int) *progressLine {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = barWidth(os.Getenv("COLUMNS"))
	return &progressLine{out: out, enabled: enabled, total: max(total, 1), bar: bar}
}

// barWidth leaves room for the counters next to the bar.
func barWidth(columns string) int {
	cols, err := strconv.Atoi(strings.TrimSpace(columns))
	if err != nil || cols <= 0 {
		return 36
	}
	return min(max(cols-40, 16), 64)
}

func (p *progressLine) Step(phase string) {
	p.done = min(p.done+1, p.total)
	p.phase = phase
	p.draw()
}

func (p *progressLine) Done(phase string) {
	p.done = p.total
	p.phase = phase
	p.draw()
	p.newline()
}

func (p *progressLine) Close() { p.newline() }

func (p *progressLine) newline() {
	if p.enabled && p.drawnLen > 0 {
		fmt.Fprintln(p.out)
		p.drawnLen = 0
	}
}

func (p *progressLine) draw() {
	if !p.enabled {
		return
	}
	ratio := float64(p.done) / float64(p.total)
	line := fmt.Sprintf("%s %3.0f%% %d/%d %s", p.bar.ViewAs(ratio), ratio*100, p.done, p.total, p.phase)
	pad := strings.Repeat(" ", max(p.drawnLen-len(line), 0))
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
	p.drawnLen = len(line)
}

func isTerminal(f *os.File) bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
