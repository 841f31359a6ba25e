package vault

import (
	"regexp"
	"strings"
	"time"

	"github.com/mindvault/mindvault/internal/note"
)

var (
	checkboxPattern = regexp.MustCompile(`^\s*[-*]\s+\[([ xX-])\]\s+(.+)$`)
	duePattern      = regexp.MustCompile(`(?:due:|📅\s*)(\d{4}-\d{2}-\d{2})`)
	remindPattern   = regexp.MustCompile(`(?:remind:|⏰\s*)(\d{4}-\d{2}-\d{2})`)
	bangPattern     = regexp.MustCompile(`\s(!{1,3})\s*$`)
)

// ExtractTasks finds checkbox items in markdown content. "[x]" is done,
// "[-]" is cancelled, trailing "!" marks raise priority, and a
// "due:YYYY-MM-DD" or calendar-emoji date sets the due date.
func ExtractTasks(docID, content string) []note.Task {
	var tasks []note.Task
	for lineNo, line := range strings.Split(content, "\n") {
		m := checkboxPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		status := note.TaskPending
		switch m[1] {
		case "x", "X":
			status = note.TaskDone
		case "-":
			status = note.TaskCancelled
		}

		body := strings.TrimSpace(m[2])
		var due *time.Time
		if dm := duePattern.FindStringSubmatch(body); dm != nil {
			if t, err := time.Parse("2006-01-02", dm[1]); err == nil {
				due = &t
			}
			body = strings.TrimSpace(duePattern.ReplaceAllString(body, ""))
		}

		priority := 0
		if pm := bangPattern.FindStringSubmatch(body); pm != nil {
			priority = len(pm[1])
			body = strings.TrimSpace(bangPattern.ReplaceAllString(body, ""))
		}

		if body == "" {
			continue
		}
		tasks = append(tasks, note.Task{
			DocumentID: docID,
			Content:    body,
			Status:     status,
			DueDate:    due,
			Priority:   priority,
			SourceLine: lineNo + 1,
		})
	}
	return tasks
}

// ExtractReminders finds reminder lines, marked with "remind:YYYY-MM-DD" or
// an alarm-clock emoji date.
func ExtractReminders(docID, content string) []note.Reminder {
	var reminders []note.Reminder
	for _, line := range strings.Split(content, "\n") {
		m := remindPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		body := strings.TrimSpace(remindPattern.ReplaceAllString(line, ""))
		body = strings.TrimLeft(body, "-* ")
		if body == "" {
			continue
		}
		reminders = append(reminders, note.Reminder{
			DocumentID:  docID,
			Content:     body,
			TriggerDate: &t,
		})
	}
	return reminders
}
