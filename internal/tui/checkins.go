package tui

import (
	"fmt"
	"strings"
	"time"
)

func (a *App) renderCheckins(height int) string {
	if len(a.checkins) == 0 {
		return "\n  No check-ins scheduled. Type: checkin <HH:MM|1h 30m> [description]\n"
	}

	now := time.Now()
	lines := make([]string, 0, len(a.checkins))
	for i, c := range a.checkins {
		when := c.ScheduledAt.Format("Mon 15:04")
		in := formatUntil(c.ScheduledAt.Sub(now))
		desc := c.Description
		if desc == "" {
			desc = mutedStyle.Render("(no description)")
		}
		if i == a.checkinIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s  %-8s %s", shortID(c.ID), when, in, c.Description)))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s  %-8s %s", mutedStyle.Render(shortID(c.ID)), when, in, desc)))
		}
	}
	return strings.Join(window(lines, a.checkinIdx, height), "\n")
}

func formatUntil(d time.Duration) string {
	if d < 0 {
		return "due"
	}
	d = d.Round(time.Minute)
	if d < time.Hour {
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	}
	return fmt.Sprintf("in %dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
