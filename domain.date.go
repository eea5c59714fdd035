package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the ISO-8601 layout used to serialize dates.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

var dateInputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// Date is a calendar date. It is kept in UTC with millisecond precision
// which is what the document stores can faithfully persist.
type Date struct {
	time.Time
}

// NewDate returns the Date of t normalized to UTC milliseconds.
func NewDate(t time.Time) *Date {
	return &Date{t.UTC().Truncate(time.Millisecond)}
}

// ParseDate parses s using the accepted input layouts.
func ParseDate(s string) (*Date, error) {
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t), nil
		}
	}
	return nil, fmt.Errorf("invalid date value %q", s)
}

// String formats the date like `1925-04-10T00:00:00.000Z`.
func (d Date) String() string {
	return d.Time.UTC().Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null is handled
// by the decoder itself and leaves a *Date field nil.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("publishedDate: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("publishedDate: %w", err)
	}
	*d = *parsed
	return nil
}
