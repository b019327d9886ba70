package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/schollz/progressbar/v3"
)

// ConsultationProgress shows how far the consultation agent has got,
// on a 0 to 100 scale.
type ConsultationProgress struct {
	bar     *progressbar.ProgressBar
	writer  io.Writer
	current int
}

// NewConsultationProgress creates a progress bar writing to w.
func NewConsultationProgress(w io.Writer) *ConsultationProgress {
	p := &ConsultationProgress{writer: w}
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[magenta][bold]Scent profile[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[magenta]=[reset]",
			SaucerHead:    "[magenta]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Update moves the bar to progress, a fraction in [0, 1]. The bar never
// moves backwards.
func (p *ConsultationProgress) Update(progress float64) {
	target := int(math.Round(math.Max(0, math.Min(progress, 1)) * 100))
	if target <= p.current {
		return
	}
	if err := p.bar.Set(target); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
		return
	}
	p.current = target
	if target < 100 {
		if _, err := fmt.Fprintln(p.writer); err != nil {
			slog.Warn("Failed to write newline after progress bar", "error", err)
		}
	}
}

// Percent returns the last rendered percentage.
func (p *ConsultationProgress) Percent() int {
	return p.current
}
