// Package display provides terminal formatting for mailassist output.
package display

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/daviddao/mailassist/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	UnreadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb"))
	ImportantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	SpamStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
)

// StatusDot returns a colored dot summarizing a message's system labels.
func StatusDot(labels []string) string {
	switch {
	case slices.Contains(labels, "SPAM"):
		return SpamStyle.Render("◌")
	case slices.Contains(labels, "UNREAD"):
		return UnreadStyle.Render("●")
	case slices.Contains(labels, "IMPORTANT"):
		return ImportantStyle.Render("○")
	default:
		return Dim.Render("·")
	}
}

// LabelList renders labels, hiding Gmail's CATEGORY_ bookkeeping labels.
func LabelList(labels []string) string {
	var out []string
	for _, l := range labels {
		if strings.HasPrefix(l, "CATEGORY_") {
			continue
		}
		switch l {
		case "UNREAD":
			out = append(out, UnreadStyle.Render(l))
		case "IMPORTANT", "STARRED":
			out = append(out, ImportantStyle.Render(l))
		default:
			out = append(out, Dim.Render(l))
		}
	}
	return strings.Join(out, " ")
}

// SenderName returns the display name of a From header, falling back to the
// address (e.g. "Ada <ada@example.com>" -> "Ada").
func SenderName(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from
	}
	if addr.Name != "" {
		return addr.Name
	}
	return addr.Address
}

// TimeAgo formats a Gmail internalDate (epoch milliseconds) as a relative time.
func TimeAgo(internalDate string) string {
	ms, err := strconv.ParseInt(internalDate, 10, 64)
	if err != nil || ms <= 0 {
		return ""
	}
	return timeAgo(time.UnixMilli(ms), time.Now())
}

func timeAgo(t, now time.Time) string {
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

// Truncate shortens a string to maxLen runes, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, Success.Render("✓")+" "+msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Muted.Render(title))
}

// EmailLine prints a one-message summary row used by list output.
func EmailLine(w io.Writer, e types.EmailMessage) {
	from := SenderName(e.Header("From"))
	if from == "" {
		from = "(unknown sender)"
	}
	subject := e.Header("Subject")
	if subject == "" {
		subject = "(no subject)"
	}

	fmt.Fprintf(w, "%s %s  %s  %s\n",
		StatusDot(e.LabelIDs),
		Muted.Render(e.ID),
		Bold.Render(Truncate(from, 28)),
		Dim.Render(TimeAgo(e.InternalDate)),
	)
	fmt.Fprintf(w, "    %s\n", Truncate(subject, 76))
	if e.Snippet != "" {
		fmt.Fprintf(w, "    %s\n", Dim.Render(Truncate(e.Snippet, 76)))
	}
}

// PartTree prints the MIME structure of a message payload.
func PartTree(w io.Writer, node *types.MessageNode) {
	if node == nil {
		return
	}
	fmt.Fprintln(w, partLabel(node))
	printParts(w, node.Parts, "")
}

func printParts(w io.Writer, parts []*types.MessageNode, indent string) {
	for i, p := range parts {
		connector, next := "├─", "│  "
		if i == len(parts)-1 {
			connector, next = "└─", "   "
		}
		fmt.Fprintf(w, "%s%s %s\n", Muted.Render(indent), Muted.Render(connector), partLabel(p))
		printParts(w, p.Parts, indent+next)
	}
}

func partLabel(p *types.MessageNode) string {
	label := p.MimeType
	if p.Filename != "" {
		label += " " + Bold.Render(p.Filename)
	}
	if p.Body.Size > 0 {
		label += " " + Dim.Render(fmt.Sprintf("(%d bytes)", p.Body.Size))
	}
	return label
}

// Body prints message text indented under a rule, capped at maxLines
// (0 means no cap).
func Body(w io.Writer, body string, maxLines int) {
	fmt.Fprintln(w, Muted.Render(strings.Repeat("─", 60)))
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i, line := range lines {
		if maxLines > 0 && i >= maxLines {
			fmt.Fprintln(w, Dim.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)))
			break
		}
		fmt.Fprintln(w, strings.TrimRight(line, "\r"))
	}
}
