package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Veraticus/aromance/internal/engine"
)

// Toaster prints engine notices as one-line toasts.
type Toaster struct {
	writer io.Writer
	mu     sync.Mutex
}

var _ engine.Notifier = (*Toaster)(nil)

// NewToaster creates a toaster writing to w.
func NewToaster(w io.Writer) *Toaster {
	return &Toaster{writer: w}
}

// Notify implements engine.Notifier.
func (t *Toaster) Notify(n engine.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintln(t.writer, FormatNotice(n)); err != nil {
		slog.Warn("Failed to write notice", "op", n.Op, "error", err)
	}
}

var noticeTones = map[engine.Level]tone{
	engine.LevelSuccess: successTone,
	engine.LevelWarning: warningTone,
	engine.LevelError:   errorTone,
	engine.LevelInfo:    infoTone,
}

// FormatNotice renders a notice with its level style and optional action.
// Unknown levels render as info.
func FormatNotice(n engine.Notice) string {
	t, ok := noticeTones[n.Level]
	if !ok {
		t = infoTone
	}
	line := t.render(n.Message)
	if n.Action != "" {
		line += " " + SubtleStyle.Render("("+n.Action+")")
	}
	return line
}
