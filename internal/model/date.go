package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component, always held at 00:00 UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date. Out-of-range days normalize the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ClampedDate builds a Date, capping day to the last day of the month.
func ClampedDate(year int, month time.Month, day int) Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(first.Year(), first.Month(), day)
}

// DateOf drops the clock part of t, keeping its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "2006-01-02" and full RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	if len(s) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
}

// DaysInMonth returns the number of calendar days of the given month (28-31).
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths keeps the day of month, capped to the target month's length.
func (d Date) AddMonths(n int) Date {
	return ClampedDate(d.Year(), d.Month()+time.Month(n), d.Day())
}

// MonthKey returns the "YYYY-MM" bucket key of the date.
func (d Date) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as "YYYY-MM-DD" text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}
