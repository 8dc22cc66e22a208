package validate

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the storage and model-facing date format.
	DateLayout = "2006-01-02"
	// DayFirstLayout is the display format, also accepted on update.
	DayFirstLayout = "02-01-2006"
)

// Clock is a time of day with second precision.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// String renders the 24-hour storage form, e.g. 14:05:00.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Hour12 returns the hour on a 12-hour dial (1-12).
func (c Clock) Hour12() int {
	h := c.Hour % 12
	if h == 0 {
		return 12
	}
	return h
}

// Twelve renders the 12-hour form with seconds and no meridiem, e.g. 02:05:00.
func (c Clock) Twelve() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour12(), c.Minute, c.Second)
}

// Short renders hours without padding and drops seconds, e.g. 9:05.
func (c Clock) Short() string {
	return fmt.Sprintf("%d:%02d", c.Hour, c.Minute)
}

// Add returns the clock shifted by d, wrapping around midnight.
func (c Clock) Add(d time.Duration) Clock {
	const day = 24 * time.Hour
	total := (c.duration() + d) % day
	if total < 0 {
		total += day
	}
	return Clock{
		Hour:   int(total / time.Hour),
		Minute: int(total % time.Hour / time.Minute),
		Second: int(total % time.Minute / time.Second),
	}
}

func (c Clock) duration() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute + time.Duration(c.Second)*time.Second
}

// ParseClock reads the stored HH:MM:SS form.
func ParseClock(value string) (Clock, error) {
	t, err := time.Parse("15:04:05", strings.TrimSpace(value))
	if err != nil {
		return Clock{}, fmt.Errorf("validate: parse clock %q: %w", value, err)
	}
	return clockOf(t), nil
}

func clockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Date accepts an ISO YYYY-MM-DD calendar date.
func Date(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, newError("appointment_date", "Invalid date. It must be in the format YYYY-MM-DD")
	}
	return d, nil
}

// FlexibleDate accepts DD-MM-YYYY or YYYY-MM-DD, in that order of preference.
func FlexibleDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if d, err := time.Parse(DayFirstLayout, value); err == nil {
		return d, nil
	}
	if d, err := time.Parse(DateLayout, value); err == nil {
		return d, nil
	}
	return time.Time{}, newError("appointment_date", "Invalid date. It must be in the format YYYY-MM-DD or DD-MM-YYYY")
}

// Time accepts a 24-hour HH:MM:SS or HH:MM time of day.
func Time(raw string) (Clock, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return clockOf(t), nil
		}
	}
	return Clock{}, newError("appointment_time", "Invalid time. It must be in H:M:S and 12 hour format.")
}
