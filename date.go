package gofat32

import (
	"time"
)

// ParseDate decodes a FAT date stamp:
//  bits 0-4   day of month, 1-31
//  bits 5-8   month, 1-12
//  bits 9-15  years since 1980
// Day or month 0 is invalid and returns time.Time{}, so IsZero can be used.
// A month above 12 carries over into the next year.
func ParseDate(input uint16) time.Time {
	day := int(input & 0x1F)
	month := int(input>>5&0x0F)
	year := 1980 + int(input>>9)

	if day == 0 || month == 0 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ParseTime decodes a FAT time stamp on January 1, year 1:
//  bits 0-4    seconds / 2, 0-29
//  bits 5-10   minutes, 0-59
//  bits 11-15  hours, 0-23
// Out of range values are clamped to 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := int(input>>5&0x3F)
	hours := int(input >> 11)

	if seconds > 59 || minutes > 59 || hours > 23 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}
	return time.Date(1, 1, 1, hours, minutes, seconds, 0, time.UTC)
}

// timestamp joins a date and a time stamp. An invalid date gives time.Time{}.
func timestamp(date, clock uint16) time.Time {
	d := ParseDate(date)
	if d.IsZero() {
		return time.Time{}
	}
	c := ParseTime(clock)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
}
