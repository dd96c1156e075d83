package utils

import (
	"fmt"
	"time"
)

// IsWithinWorkingHours checks if current time is within working hours.
// Windows crossing midnight (e.g. 22:00 to 06:00) wrap around.
func IsWithinWorkingHours(startTime, endTime string) (bool, error) {
	now := time.Now()

	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return false, fmt.Errorf("invalid start time format: %w", err)
	}

	end, err := time.Parse("15:04", endTime)
	if err != nil {
		return false, fmt.Errorf("invalid end time format: %w", err)
	}

	startToday := time.Date(now.Year(), now.Month(), now.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	endToday := time.Date(now.Year(), now.Month(), now.Day(), end.Hour(), end.Minute(), 0, 0, now.Location())

	if endToday.Before(startToday) {
		if now.Before(endToday) {
			now = now.Add(24 * time.Hour)
		}
		endToday = endToday.Add(24 * time.Hour)
	}

	return !now.Before(startToday) && now.Before(endToday), nil
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
