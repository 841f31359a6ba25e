package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindvault/mindvault/internal/note"
)

// SchedulerConfig controls when the scheduler fires.
type SchedulerConfig struct {
	// BriefingTime is the local wall-clock time for the daily briefing,
	// formatted "15:04".
	BriefingTime string
	// ReminderInterval is how often due reminders are checked.
	ReminderInterval time.Duration
}

// Scheduler drives time-based behavior: periodic reminder checks and the
// daily briefing. It owns no state beyond the last briefing date; due
// bookkeeping lives in the metadata store so restarts never double-fire.
type Scheduler struct {
	service  *Service
	notifier Notifier
	config   SchedulerConfig

	now func() time.Time
}

// NewScheduler creates a scheduler. A nil notifier falls back to the log.
func NewScheduler(service *Service, notifier Notifier, cfg SchedulerConfig) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = 15 * time.Minute
	}
	if cfg.BriefingTime == "" {
		cfg.BriefingTime = "07:00"
	}
	return &Scheduler{
		service:  service,
		notifier: notifier,
		config:   cfg,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, checking reminders every interval and
// delivering the briefing once per day at or after the configured time.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.ReminderInterval)
	defer ticker.Stop()

	var lastBriefing time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.checkReminders(ctx); err != nil {
				slog.Warn("reminder check failed", "error", err)
			}
			if s.briefingDue(lastBriefing) {
				if err := s.deliverBriefing(ctx); err != nil {
					slog.Warn("briefing delivery failed", "error", err)
				} else {
					lastBriefing = s.now()
				}
			}
		}
	}
}

// briefingDue reports whether today's briefing time has passed without a
// delivery today.
func (s *Scheduler) briefingDue(last time.Time) bool {
	now := s.now()
	target, err := time.ParseInLocation("15:04", s.config.BriefingTime, now.Location())
	if err != nil {
		return false
	}
	todayTarget := time.Date(now.Year(), now.Month(), now.Day(),
		target.Hour(), target.Minute(), 0, 0, now.Location())

	if now.Before(todayTarget) {
		return false
	}
	return last.IsZero() || last.Before(todayTarget)
}

// checkReminders notifies each due reminder and marks it triggered so it
// fires once.
func (s *Scheduler) checkReminders(ctx context.Context) error {
	due, err := s.service.metadata.DueReminders(ctx, s.now())
	if err != nil {
		return fmt.Errorf("query due reminders: %w", err)
	}
	for _, r := range due {
		if err := s.notifier.Notify(ctx, "Reminder", r.Content); err != nil {
			// Leave untriggered so the next tick retries delivery.
			slog.Warn("reminder notification failed", "id", r.ID, "error", err)
			continue
		}
		if err := s.service.metadata.MarkReminderTriggered(ctx, r.ID); err != nil {
			return fmt.Errorf("mark reminder %d triggered: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Scheduler) deliverBriefing(ctx context.Context) error {
	b, err := s.service.Briefing(ctx, s.now())
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, "Daily briefing", FormatBriefing(b))
}

// FormatBriefing renders a briefing as plain text for notification bodies
// and the CLI.
func FormatBriefing(b *note.Briefing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Briefing for %s\n", b.Date.Format("Monday, 2 January 2006"))

	if len(b.TasksDue) == 0 && len(b.Reminders) == 0 {
		sb.WriteString("Nothing due today.\n")
		return sb.String()
	}
	if b.Summary != "" {
		sb.WriteString(b.Summary)
		sb.WriteString("\n\n")
	}
	if len(b.TasksDue) > 0 {
		sb.WriteString("Tasks due:\n")
		for _, t := range b.TasksDue {
			marker := strings.Repeat("!", t.Priority)
			if marker != "" {
				marker = " " + marker
			}
			fmt.Fprintf(&sb, "  - %s%s\n", t.Content, marker)
		}
	}
	if len(b.Reminders) > 0 {
		sb.WriteString("Reminders:\n")
		for _, r := range b.Reminders {
			fmt.Fprintf(&sb, "  - %s\n", r.Content)
		}
	}
	return sb.String()
}
