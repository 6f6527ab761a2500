package handlers

import (
	"time"

	"github.com/cleanstreak/litter-map-api/models"
)

// Kind values select which collection an Entity handler operates on.
const (
	KindMission   = "mission"
	KindChallenge = "challenge"
)

// entityIsOngoing reports whether an entity accepts membership and counter
// changes right now. A zero startTime means the entity starts immediately, a
// zero endTime means it never ends.
func entityIsOngoing(e *models.Entity, now time.Time) bool {
	if e == nil {
		return false
	}
	if e.StartTime != 0 && now.Before(e.StartTime.Time()) {
		return false
	}
	if e.EndTime != 0 && !now.Before(e.EndTime.Time()) {
		return false
	}
	return true
}

// entityHasEnded reports whether the entity's end time has passed. Entities
// that have not started yet are not "ended", joins are rejected for those via
// entityIsOngoing instead.
func entityHasEnded(e *models.Entity, now time.Time) bool {
	if e == nil {
		return false
	}
	return e.EndTime != 0 && !now.Before(e.EndTime.Time())
}
