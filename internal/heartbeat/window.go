// Package heartbeat runs Maestro's unprompted check-ins: once a minute it
// decides whether enough time has passed to act on its own, and if so feeds
// a synthetic prompt through the same conversation a real user message takes
// (§4.F).
package heartbeat

import "time"

const (
	workHourStart = 7
	workHourEnd   = 18
	offHourEnd    = 22

	workIntervalMinutes = 30
	offIntervalMinutes  = 60

	scheduleLookaheadDays    = 2
	boredomAdventurousStreak = 3
)

// isSilentHours reports whether t falls in the 22:00-07:00 window where
// Maestro never initiates contact.
func isSilentHours(t time.Time) bool {
	h := t.Hour()
	return h >= offHourEnd || h < workHourStart
}

// isWorkHours reports whether t falls in the 07:00-18:00 window.
func isWorkHours(t time.Time) bool {
	h := t.Hour()
	return h >= workHourStart && h < workHourEnd
}

// intervalMinutes is the minimum gap between heartbeats for t's time of day:
// 30 during work hours, 60 off-hours, 0 (never) during the silent window.
func intervalMinutes(t time.Time) int {
	switch {
	case isSilentHours(t):
		return 0
	case isWorkHours(t):
		return workIntervalMinutes
	default:
		return offIntervalMinutes
	}
}

// shouldHeartbeat reports whether enough time has passed since the last
// heartbeat to act again, given t as "now". Silent hours never fire; outside
// them, a never-recorded last heartbeat always fires.
func shouldHeartbeat(lastHeartbeat *time.Time, t time.Time) bool {
	interval := intervalMinutes(t)
	if interval == 0 {
		return false
	}
	if lastHeartbeat == nil {
		return true
	}
	return t.Sub(*lastHeartbeat) >= time.Duration(interval)*time.Minute
}
