package discord

import (
	"fmt"

	"github.com/eternisai/assignment-relay/internal/assignments"
)

const (
	messageHeader = "📘 **新しい課題が追加されました！**"
	unknownTitle  = "タイトル不明"
	noDueDate     = "なし"
	dueDateLayout = "2006-01-02 15:04(UTC)"
)

// RenderMessage formats the announcement for a newly added assignment.
// Downstream consumers parse this text, so the layout is fixed.
func RenderMessage(a assignments.Assignment) string {
	title := unknownTitle
	if a.HasTitle() {
		title = a.Title
	}

	return fmt.Sprintf("%s\n**タイトル：** %s\n**締切：** %s\n", messageHeader, title, formatDue(a))
}

func formatDue(a assignments.Assignment) string {
	if !a.HasDueDate() {
		return noDueDate
	}
	due, err := a.DueTimeUTC()
	if err != nil {
		// Show what the API sent rather than dropping the line.
		return a.DueAt
	}
	return due.Format(dueDateLayout)
}
