// Package timefmt converts between elapsed exercise seconds and HH:MM:SS strings.
//
// Two parsers exist on purpose. ParseHMS is for elapsed-time fields (due times, ETAs,
// the master clock) where hours are unbounded. ParseWallClock is for time-of-day fields
// such as the exercise finish time where hours must stay below 24.
package timefmt

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	elapsedPattern   = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})$`)
	wallClockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)
)

// FormatHMS renders seconds as zero-padded HH:MM:SS. Hours are not wrapped at 24.
// Negative input is clamped to zero.
func FormatHMS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseHMS parses an elapsed time string into seconds.
// The boolean is false when the text is not H+:MM:SS or minutes/seconds are >= 60.
func ParseHMS(text string) (int, bool) {
	return parse(elapsedPattern, text, -1)
}

// ParseWallClock parses a time-of-day string (H:MM:SS or HH:MM:SS, hours < 24) into seconds.
func ParseWallClock(text string) (int, bool) {
	return parse(wallClockPattern, text, 24)
}

func parse(pattern *regexp.Regexp, text string, maxHours int) (int, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	if mins >= 60 || sec >= 60 {
		return 0, false
	}
	if maxHours > 0 && h >= maxHours {
		return 0, false
	}
	// h*3600 must not wrap
	if h > (math.MaxInt-3599)/3600 {
		return 0, false
	}
	return h*3600 + mins*60 + sec, true
}
