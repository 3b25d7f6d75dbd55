// Package display provides terminal formatting for assist output.
package display

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	UrgentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	NotUrgentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))

	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ProcessedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb"))
	ResolvedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))

	PositiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	NegativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	NeutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))

	BodyBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6b7280")).
		Padding(0, 1)
)

// PriorityDot returns a colored dot for a priority; unanalyzed records get
// a dim placeholder.
func PriorityDot(p *types.Priority) string {
	if p == nil {
		return Dim.Render("·")
	}
	switch *p {
	case types.PriorityUrgent:
		return UrgentStyle.Render("●")
	default:
		return NotUrgentStyle.Render("○")
	}
}

// PriorityLabel returns a fixed-width priority label.
func PriorityLabel(p *types.Priority) string {
	if p == nil {
		return Dim.Render(fmt.Sprintf("%-10s", "-"))
	}
	label := fmt.Sprintf("%-10s", string(*p))
	if *p == types.PriorityUrgent {
		return UrgentStyle.Render(label)
	}
	return NotUrgentStyle.Render(label)
}

// StatusLabel returns a fixed-width status label.
func StatusLabel(s types.Status) string {
	label := fmt.Sprintf("%-9s", string(s))
	switch s {
	case types.StatusPending:
		return PendingStyle.Render(label)
	case types.StatusProcessed:
		return ProcessedStyle.Render(label)
	case types.StatusResolved:
		return ResolvedStyle.Render(label)
	default:
		return label
	}
}

// SentimentLabel returns a colored sentiment, or "-" before analysis.
func SentimentLabel(s *types.Sentiment) string {
	if s == nil {
		return Dim.Render("-")
	}
	switch *s {
	case types.SentimentPositive:
		return PositiveStyle.Render(string(*s))
	case types.SentimentNegative:
		return NegativeStyle.Render(string(*s))
	default:
		return NeutralStyle.Render(string(*s))
	}
}

// SenderName returns the display name of a From header, falling back to
// the address and then the raw value.
func SenderName(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	if addr.Name != "" {
		return addr.Name
	}
	return addr.Address
}

// TimeAgo formats t relative to now.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens s to maxLen runes, adding an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	fmt.Println(Success.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

// InboxRow renders one record as a single list line.
func InboxRow(r *types.EmailRecord, now time.Time) string {
	return fmt.Sprintf("  %s %s %s %-5d %-22s %s  %s",
		PriorityDot(r.Priority),
		PriorityLabel(r.Priority),
		StatusLabel(r.Status),
		r.ID,
		Truncate(SenderName(r.Sender), 22),
		Truncate(r.Subject, 50),
		Dim.Render(TimeAgo(r.ReceivedAt, now)),
	)
}

// Distribution writes one bar per key, largest first, scaled to width.
func Distribution(w io.Writer, counts map[string]int, width int) {
	keys := make([]string, 0, len(counts))
	total, top := 0, 0
	for k, n := range counts {
		keys = append(keys, k)
		total += n
		if n > top {
			top = n
		}
	}
	if total == 0 {
		fmt.Fprintln(w, Dim.Render("  (none)"))
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		n := counts[k]
		bar := strings.Repeat("█", n*width/top)
		fmt.Fprintf(w, "  %-11s %s %d (%.0f%%)\n", k, Muted.Render(bar), n, 100*float64(n)/float64(total))
	}
}
