// Package report renders sorted inboxes and run summaries for the
// terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/mailtriage/internal/autoresponse"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/theme"
)

const (
	subjectWidth   = 48
	receivedLayout = "2006-01-02 15:04"
)

// now stands in for messages without a received date.
var now = time.Now

// Inbox renders the per-category counts followed by the messages of
// every non-empty category.
func Inbox(w io.Writer, account string, categorized model.Categorized) error {
	var sb strings.Builder

	sb.WriteString(theme.HeaderStyle.Render(fmt.Sprintf("%s: %d unread", account, categorized.Total())))
	sb.WriteString("\n\n")

	counts := newTable().Headers("Category", "Messages")
	for _, cat := range categorized.OrderedKeys() {
		counts.Row(cat.DisplayName(), strconv.Itoa(len(categorized[cat])))
	}
	counts.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return theme.TableHeaderStyle
		}
		return theme.CellStyle
	})
	sb.WriteString(counts.Render())
	sb.WriteString("\n")

	for _, cat := range categorized.OrderedKeys() {
		msgs := categorized[cat]
		if len(msgs) == 0 {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(theme.CategoryStyle(string(cat)).Render(cat.DisplayName()))
		sb.WriteString("\n")
		for _, tm := range msgs {
			fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
				theme.HelpStyle.Render(tm.Message.ReceivedAtOr(now()).Format(receivedLayout)),
				truncate(tm.Message.Subject, subjectWidth),
				theme.HelpStyle.Render(tm.Message.Sender),
				theme.HelpStyle.Render(fmt.Sprintf("%.2f", tm.Classification.Confidence)),
			)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Summary renders one run: totals and the ordered outcome list.
func Summary(w io.Writer, s autoresponse.RunSummary) error {
	var sb strings.Builder

	sb.WriteString(theme.HeaderStyle.Render(fmt.Sprintf("Run %s", shortID(s.RunID))))
	sb.WriteString("\n")
	sb.WriteString(theme.BorderStyle.Render(fmt.Sprintf(
		"account: %s\nseen: %d  responded: %d  failed: %d  fallbacks: %d",
		s.Account, s.MessagesSeen, s.AutoResponded, s.Failed, s.Fallbacks,
	)))
	sb.WriteString("\n")

	if len(s.Outcomes) == 0 {
		sb.WriteString(theme.HelpStyle.Render("No messages processed."))
		sb.WriteString("\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	t := newTable().Headers("Message", "Category", "Subject", "Outcome")
	for _, mo := range s.Outcomes {
		outcome := string(mo.Outcome)
		if mo.UsedFallback {
			outcome += " (fallback)"
		}
		t.Row(mo.MessageID, mo.Category.DisplayName(), truncate(mo.Subject, subjectWidth), outcome)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return theme.TableHeaderStyle
		}
		if col == 3 {
			return theme.OutcomeStyle(string(s.Outcomes[row].Outcome)).Padding(0, 1)
		}
		return theme.CellStyle
	})
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// History renders run headers, one per row.
func History(w io.Writer, runs []autoresponse.RunSummary) error {
	if len(runs) == 0 {
		_, err := io.WriteString(w, theme.HelpStyle.Render("No runs recorded yet.")+"\n")
		return err
	}

	t := newTable().Headers("Run", "Account", "Started", "Duration", "Seen", "Responded", "Failed")
	for _, r := range runs {
		t.Row(
			shortID(r.RunID),
			r.Account,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Duration().Round(time.Second).String(),
			strconv.Itoa(r.MessagesSeen),
			strconv.Itoa(r.AutoResponded),
			strconv.Itoa(r.Failed),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return theme.TableHeaderStyle
		}
		return theme.CellStyle
	})

	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder))
}

// truncate cuts s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
