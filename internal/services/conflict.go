package services

import (
	"event-workflow/models"
)

// HasConflict reports whether candidate overlaps any entry of existing at the
// same location and date. Intervals are half-open, so touching endpoints do
// not conflict. The entry whose ID equals excludeID is ignored.
//
// Callers pass Active events only. Any time that cannot be parsed counts as
// a conflict: an unverifiable slot is never treated as free.
func HasConflict(candidate models.Slot, existing []models.Slot, excludeID string) bool {
	start, err := models.ParseClock(candidate.Start)
	if err != nil {
		return true
	}
	end, err := models.ParseClock(candidate.End)
	if err != nil {
		return true
	}

	for _, other := range existing {
		if other.Location != candidate.Location || other.Date != candidate.Date {
			continue
		}
		if excludeID != "" && other.ID == excludeID {
			continue
		}

		otherStart, err := models.ParseClock(other.Start)
		if err != nil {
			return true
		}
		otherEnd, err := models.ParseClock(other.End)
		if err != nil {
			return true
		}

		if start.Before(otherEnd) && end.After(otherStart) {
			return true
		}
	}
	return false
}
