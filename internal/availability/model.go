package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	ErrInvalidDayOfWeek = errors.New("day of week must be between 0 (Sunday) and 6 (Saturday)")
	ErrInvalidRange     = errors.New("range end is before its start")
	ErrInvalidRule      = errors.New("rule must start before it ends")
)

// DayOfWeek follows time.Weekday numbering: 0 is Sunday
type DayOfWeek int

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func NewDayOfWeek(n int) (DayOfWeek, error) {
	if n < int(Sunday) || n > int(Saturday) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDayOfWeek, n)
	}
	return DayOfWeek(n), nil
}

func (d DayOfWeek) String() string {
	return time.Weekday(d).String()
}

// Date is a civil calendar date with no clock or zone attached
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// ParseDate accepts YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Weekday() DayOfWeek {
	return DayOfWeek(d.midnight(time.UTC).Weekday())
}

// Time returns midnight UTC of d, the form used for date columns
func (d Date) Time() time.Time {
	return d.midnight(time.UTC)
}

// At places a wall-clock time of day on d in loc. Times skipped by a DST
// jump normalize forward, as time.Date does.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, int(tod)/60, int(tod)%60, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.midnight(time.UTC).Before(o.midnight(time.UTC))
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// TimeOfDay counts minutes after midnight; 24:00 is allowed as an end bound
type TimeOfDay int

const endOfDay TimeOfDay = 24 * 60

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	tod := TimeOfDay(hour*60 + minute)
	if hour < 0 || minute < 0 || minute > 59 || tod > endOfDay {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidTimeOfDay, hour, minute)
	}
	return tod, nil
}

// ParseTimeOfDay accepts HH:MM
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if n, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || n != 2 || len(s) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return NewTimeOfDay(h, m)
}

// TimeOfDayOf returns the clock position of t in its own location
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// DateRange is inclusive on both ends
type DateRange struct {
	Start Date
	End   Date
}

func NewDateRange(start, end Date) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: %s..%s", ErrInvalidRange, start, end)
	}
	return DateRange{Start: start, End: end}, nil
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Slot is a concrete bookable interval
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

type Provider struct {
	ID                     uuid.UUID
	Name                   string
	Specialty              string
	ConsultationPriceCents int64
	Approved               bool
	SlotMinutes            *int // per-provider granularity; nil falls back to the configured default
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Rule is a weekly recurring window; rules are deactivated, never deleted
type Rule struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Day        DayOfWeek
	Start      TimeOfDay
	End        TimeOfDay
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewRule(providerID uuid.UUID, day DayOfWeek, start, end TimeOfDay) (Rule, error) {
	if start >= end || end > endOfDay {
		return Rule{}, fmt.Errorf("%w: %s-%s", ErrInvalidRule, start, end)
	}
	return Rule{
		ID:         uuid.New(),
		ProviderID: providerID,
		Day:        day,
		Start:      start,
		End:        end,
		Active:     true,
	}, nil
}

type BlockedRange struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Range      DateRange
	Reason     string
	CreatedAt  time.Time
}

// SlotOverride replaces rule-derived slots for its date. AppointmentID is set
// once a booking has consumed it.
type SlotOverride struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	Date          Date
	Start         TimeOfDay
	End           TimeOfDay
	Available     bool
	AppointmentID *uuid.UUID
}

type Result struct {
	Slots   []Slot
	Blocked bool
}
