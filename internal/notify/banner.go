package notify

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

// DefaultBannerDuration is how long a banner stays visible.
const DefaultBannerDuration = 5 * time.Second

// bannerWidth is the widest content line inside the banner box.
const bannerWidth = 48

// ActiveBanner is the banner currently on screen.
type ActiveBanner struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Banner draws a transient boxed notice and dismisses it on its own.
type Banner struct {
	out      io.Writer
	duration time.Duration

	mu      sync.Mutex
	current *ActiveBanner
	seq     uint64
}

// NewBanner creates a banner writer; a non-positive duration uses the default.
func NewBanner(out io.Writer, duration time.Duration) *Banner {
	if duration <= 0 {
		duration = DefaultBannerDuration
	}
	return &Banner{out: out, duration: duration}
}

// Show draws the banner and arms its dismissal. A newer banner replaces an
// older one; the older one's dismissal then does nothing.
func (b *Banner) Show(title, text string) {
	now := time.Now()

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.current = &ActiveBanner{Title: title, Text: text, ShownAt: now, ExpiresAt: now.Add(b.duration)}
	if _, err := io.WriteString(b.out, renderBox(title, text)); err != nil {
		slog.Warn("Banner.Show: write failed", "error", err)
	}
	b.mu.Unlock()

	time.AfterFunc(b.duration, func() { b.dismiss(seq) })
}

func (b *Banner) dismiss(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seq != seq || b.current == nil {
		return
	}
	b.current = nil
	slog.Debug("Banner dismissed")
}

// Current returns the visible banner, if any.
func (b *Banner) Current() (ActiveBanner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return ActiveBanner{}, false
	}
	return *b.current, true
}

// renderBox frames title and text, wrapping on display width so wide scripts
// line up.
func renderBox(title, text string) string {
	lines := append([]string{title, ""}, wrap(text, bannerWidth)...)
	width := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > width {
			width = w
		}
	}

	var sb strings.Builder
	sb.WriteString("╭" + strings.Repeat("─", width+2) + "╮\n")
	for _, l := range lines {
		sb.WriteString("│ " + runewidth.FillRight(l, width) + " │\n")
	}
	sb.WriteString("╰" + strings.Repeat("─", width+2) + "╯\n")
	return sb.String()
}

// wrap breaks text into lines no wider than width columns. Words wider than
// width are hard-cut.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			for runewidth.StringWidth(word) > width {
				head := runewidth.Truncate(word, width, "")
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				lines = append(lines, head)
				word = word[len(head):]
			}
			switch {
			case line == "":
				line = word
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// Alert is the last-resort notice used when no platform is configured.
type Alert struct {
	out  io.Writer
	bell bool
}

// NewAlert writes alerts to out, ringing the bell when out is a terminal.
func NewAlert(out io.Writer) *Alert {
	a := &Alert{out: out}
	if f, ok := out.(*os.File); ok {
		a.bell = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return a
}

// Show writes the alert line.
func (a *Alert) Show(title, text string) {
	prefix := ""
	if a.bell {
		prefix = "\a"
	}
	if _, err := fmt.Fprintf(a.out, "%s%s: %s\n", prefix, title, text); err != nil {
		slog.Warn("Alert.Show: write failed", "error", err)
	}
}
