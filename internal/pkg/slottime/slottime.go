package slottime

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// SlotLength is the duration of a single availability slot or booking.
const SlotLength = time.Hour

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// TimeOfDay is a wall-clock offset from midnight, in minutes.
type TimeOfDay int

// At returns the TimeOfDay for the given hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// Parse accepts "HH:MM" or "HH:MM:SS". Seconds must be zero.
func Parse(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		nums[i] = n
	}
	if len(nums) == 3 && nums[2] != 0 {
		return 0, fmt.Errorf("invalid time of day %q: seconds are not supported", s)
	}

	t := At(nums[0], nums[1])
	if nums[1] >= 60 || !t.Valid() {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// IsWholeHour reports whether t falls exactly on the hour.
func (t TimeOfDay) IsWholeHour() bool {
	return t%60 == 0
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// Add returns t shifted by d, truncated to minutes. The result may leave the day.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FromPgTime converts a postgres TIME value.
func FromPgTime(pt pgtype.Time) TimeOfDay {
	return TimeOfDay(pt.Microseconds / int64(time.Minute/time.Microsecond))
}

// PgTime converts t into a postgres TIME value.
func (t TimeOfDay) PgTime() pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

// Sort orders hours ascending in place.
func Sort(hours []TimeOfDay) {
	sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })
}

// Strings formats hours for display and error details.
func Strings(hours []TimeOfDay) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = h.String()
	}
	return out
}

// Date truncates t to its calendar day, expressed as midnight UTC.
// This is the same shape pgx returns for DATE columns.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateIn returns the calendar day of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return Date(t.In(loc))
}

// ParseDate parses a "2006-01-02" day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// Start returns the instant a slot on the given day and time of day begins in loc.
// The result is the wall-clock time in loc, so hours keep their label on days
// the clocks change.
func Start(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(tod)/60, int(tod)%60, 0, 0, loc)
}
