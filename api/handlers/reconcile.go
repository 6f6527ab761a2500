package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cleanstreak/litter-map-api/databases"
	"github.com/cleanstreak/litter-map-api/models"
)

// Reconciler moves a moderated photo's piece count out of the pending bucket
// on every mission and challenge the photo references. Entities are updated
// independently and concurrently, a failure on one never rolls back or blocks
// the others.
type Reconciler struct {
	Missions   databases.EntityDatabase
	Challenges databases.EntityDatabase
	Live       *LiveHub
}

// Apply reconciles the counters for one approved photo. For each referenced
// entity: if the photo is published and the uploader is still a member, the
// pieces move from pendingPieces into totalPieces and the member's personal
// count. Otherwise the pieces only drain out of pendingPieces. Returns the
// number of entities that could not be updated.
func (rc *Reconciler) Apply(ctx context.Context, photo *models.Photo) int {
	if photo.Pieces == 0 || (len(photo.MissionIDs) == 0 && len(photo.ChallengeIDs) == 0) {
		return 0
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	run := func(db databases.EntityDatabase, entityID string) {
		defer wg.Done()
		if err := rc.applyToEntity(ctx, db, entityID, photo); err != nil {
			zap.S().Errorw("failed to reconcile photo pieces",
				"photoID", photo.ID.Hex(),
				"collection", db.Collection(),
				"entityID", entityID,
				"error", err)
			mu.Lock()
			failed++
			mu.Unlock()
		}
	}

	for _, id := range photo.MissionIDs {
		wg.Add(1)
		go run(rc.Missions, id)
	}
	for _, id := range photo.ChallengeIDs {
		wg.Add(1)
		go run(rc.Challenges, id)
	}
	wg.Wait()

	return failed
}

func (rc *Reconciler) applyToEntity(ctx context.Context, db databases.EntityDatabase, entityID string, photo *models.Photo) error {
	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		return err
	}

	now := primitive.NewDateTimeFromTime(time.Now())

	if photo.Published {
		// Credit the member branch first. The membership guard is part of the
		// filter, so an uploader that has since left falls through to the
		// drain-only branch below.
		res, err := db.UpdateOne(ctx,
			bson.M{
				"_id": eID,
				"totalUserPieces." + photo.OwnerID: bson.M{"$exists": true},
			},
			bson.M{
				"$inc": bson.M{
					"totalPieces":   photo.Pieces,
					"pendingPieces": -photo.Pieces,
					"totalUserPieces." + photo.OwnerID + ".pieces": photo.Pieces,
				},
				"$set": bson.M{"updatedAt": now},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			rc.broadcast(ctx, db, eID)
			return nil
		}
	}

	// Unpublished photo, or the uploader is no longer a member. The pieces
	// were provisionally counted at upload time and only need to drain.
	res, err := db.UpdateOne(ctx,
		bson.M{"_id": eID, "pendingPieces": bson.M{"$gte": photo.Pieces}},
		bson.M{
			"$inc": bson.M{"pendingPieces": -photo.Pieces},
			"$set": bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("entity missing or pendingPieces would go negative")
	}
	rc.broadcast(ctx, db, eID)
	return nil
}

// broadcast pushes the entity's fresh counters to any live watchers. Best
// effort, a read failure here never fails the reconciliation.
func (rc *Reconciler) broadcast(ctx context.Context, db databases.EntityDatabase, eID primitive.ObjectID) {
	if rc.Live == nil {
		return
	}
	entity, err := db.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		zap.S().Debugw("failed to read counters for live broadcast",
			"collection", db.Collection(),
			"entityID", eID.Hex(),
			"error", err)
		return
	}
	rc.Live.BroadcastCounters(eID.Hex(), CounterUpdate{
		EntityID:      eID.Hex(),
		Collection:    db.Collection(),
		TotalPieces:   entity.TotalPieces,
		PendingPieces: entity.PendingPieces,
	})
}
