package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cleanstreak/litter-map-api/models"
)

func TestEntityIsOngoing(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	dt := func(t time.Time) primitive.DateTime { return primitive.NewDateTimeFromTime(t) }

	tests := []struct {
		name   string
		entity *models.Entity
		want   bool
	}{
		{"nil entity", nil, false},
		{"no window set", &models.Entity{}, true},
		{"inside window", &models.Entity{StartTime: dt(now.Add(-time.Hour)), EndTime: dt(now.Add(time.Hour))}, true},
		{"not started yet", &models.Entity{StartTime: dt(now.Add(time.Hour))}, false},
		{"already ended", &models.Entity{EndTime: dt(now.Add(-time.Minute))}, false},
		{"ends exactly now", &models.Entity{EndTime: dt(now)}, false},
		{"starts exactly now", &models.Entity{StartTime: dt(now)}, true},
		{"open ended after start", &models.Entity{StartTime: dt(now.Add(-24 * time.Hour))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entityIsOngoing(tt.entity, now))
		})
	}
}

func TestEntityHasEnded(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	dt := func(t time.Time) primitive.DateTime { return primitive.NewDateTimeFromTime(t) }

	assert.False(t, entityHasEnded(nil, now))
	assert.False(t, entityHasEnded(&models.Entity{}, now))
	assert.False(t, entityHasEnded(&models.Entity{EndTime: dt(now.Add(time.Hour))}, now))
	assert.True(t, entityHasEnded(&models.Entity{EndTime: dt(now.Add(-time.Hour))}, now))
	// an entity that never started can still not be "ended"
	assert.False(t, entityHasEnded(&models.Entity{StartTime: dt(now.Add(time.Hour))}, now))
}
